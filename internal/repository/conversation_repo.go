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

// ConversationRepo 对话仓库
// (user_id, persona_id) 上有唯一索引，一个用户对一个角色只有一个对话
type ConversationRepo struct {
	collection *mongo.Collection
}

// NewConversationRepo 创建对话仓库
func NewConversationRepo(db *mongo.Database) *ConversationRepo {
	return &ConversationRepo{
		collection: db.Collection("conversations"),
	}
}

// GetOrCreate 按 (userID, personaID) 获取对话，不存在则创建
// 幂等：同一对重复调用返回同一个对话
// 并发首次创建撞唯一索引时回退为按对重查，不会产生重复对话
func (r *ConversationRepo) GetOrCreate(ctx context.Context, userID, personaID string) (*model.Conversation, error) {
	now := time.Now()
	filter := bson.M{"user_id": userID, "persona_id": personaID}
	update := bson.M{
		"$setOnInsert": bson.M{
			"_id":           id.New(),
			"user_id":       userID,
			"persona_id":    personaID,
			"last_message":  "",
			"message_count": int64(0),
			"seq":           int64(0),
			"active":        true,
			"created_at":    now,
			"updated_at":    now,
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var conv model.Conversation
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&conv)
	if err != nil {
		// upsert 与并发 upsert 竞争时可能报唯一键冲突，此时对话已经存在，重查即可
		if mongo.IsDuplicateKeyError(err) {
			return r.FindByPair(ctx, userID, personaID)
		}
		return nil, err
	}

	return &conv, nil
}

// FindByPair 按 (userID, personaID) 查询对话
func (r *ConversationRepo) FindByPair(ctx context.Context, userID, personaID string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.collection.FindOne(ctx, bson.M{"user_id": userID, "persona_id": personaID}).Decode(&conv)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("conversation %s/%s: %w", userID, personaID, ErrNotFound)
		}
		return nil, err
	}
	return &conv, nil
}

// Touch 刷新对话元数据（最后一条消息快照、消息计数、活跃标记）
// 尽力而为：调用方对失败只记日志，不影响交换事务语义
func (r *ConversationRepo) Touch(ctx context.Context, conversationID, lastMessage string) error {
	_, err := r.collection.UpdateByID(ctx, conversationID, touchUpdate(lastMessage, time.Now()))
	return err
}

// touchUpdate 组装 Touch 的更新文档
// 一次成功交换追加 user/bot 两条消息，计数一次补齐两条
func touchUpdate(lastMessage string, now time.Time) bson.M {
	return bson.M{
		"$set": bson.M{
			"last_message": lastMessage,
			"active":       true,
			"updated_at":   now,
		},
		"$inc": bson.M{"message_count": int64(2)},
	}
}
