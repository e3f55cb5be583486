package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"banter/internal/model"
	"banter/internal/pkg/id"
)

// MessageRepo 消息日志仓库
// 只追加；seq 从所属对话的计数器分配，单个对话内严格递增
type MessageRepo struct {
	messages      *mongo.Collection
	conversations *mongo.Collection
}

// NewMessageRepo 创建消息仓库
func NewMessageRepo(db *mongo.Database) *MessageRepo {
	return &MessageRepo{
		messages:      db.Collection("messages"),
		conversations: db.Collection("conversations"),
	}
}

// Append 追加一条消息，提交成功后才返回
// seq 通过对话文档上的 $inc 计数器分配，调用方不能指定
func (r *MessageRepo) Append(ctx context.Context, conversationID, sender, content string) (*model.Message, error) {
	seq, err := r.nextSeq(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("allocate seq for conversation %s: %w", conversationID, err)
	}

	msg := &model.Message{
		ID:             id.New(),
		ConversationID: conversationID,
		Sender:         sender,
		Content:        content,
		Seq:            seq,
		CreatedAt:      time.Now(),
	}

	if _, err := r.messages.InsertOne(ctx, msg); err != nil {
		return nil, fmt.Errorf("insert message (conversation %s seq %d): %w", conversationID, seq, err)
	}

	return msg, nil
}

// nextSeq 原子递增对话的消息序号计数器
func (r *MessageRepo) nextSeq(ctx context.Context, conversationID string) (int64, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var conv model.Conversation
	err := r.conversations.FindOneAndUpdate(ctx,
		bson.M{"_id": conversationID},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&conv)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
		}
		return 0, err
	}

	return conv.Seq, nil
}

// Recent 查询最近 limit 条消息，按时间正序（最旧在前）返回
// 每次调用重新读取当前状态，不是活动流
func (r *MessageRepo) Recent(ctx context.Context, conversationID string, limit int64) ([]model.Message, error) {
	opts := options.Find().
		SetSort(bson.D{bson.E{Key: "seq", Value: -1}}).
		SetLimit(limit)

	cursor, err := r.messages.Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var messages []model.Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}

	// 倒序读出，翻回正序
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}
