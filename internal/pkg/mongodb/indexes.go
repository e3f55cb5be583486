package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes 创建所有集合的索引
// 应用启动时统一调用
func EnsureIndexes(db *mongo.Database) error {
	ctx := context.Background()

	// conversations 集合索引
	// (user_id, persona_id) 唯一：一个用户对一个角色只允许一个对话，
	// 并发首次创建靠它收敛
	convColl := db.Collection("conversations")
	convIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{bson.E{Key: "user_id", Value: 1}, bson.E{Key: "persona_id", Value: 1}},
			Options: options.Index().SetName("idx_user_persona").SetUnique(true),
		},
		{
			Keys:    bson.D{bson.E{Key: "user_id", Value: 1}, bson.E{Key: "updated_at", Value: -1}},
			Options: options.Index().SetName("idx_user_updated"),
		},
	}

	if err := CreateIndexes(ctx, convColl, convIndexes); err != nil {
		return err
	}

	// messages 集合索引
	// (conversation_id, seq) 唯一：消息日志只追加，序号在单个对话内严格递增
	msgColl := db.Collection("messages")
	msgIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{bson.E{Key: "conversation_id", Value: 1}, bson.E{Key: "seq", Value: 1}},
			Options: options.Index().SetName("idx_conversation_seq").SetUnique(true),
		},
		{
			Keys:    bson.D{bson.E{Key: "conversation_id", Value: 1}, bson.E{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_conversation_created"),
		},
	}

	if err := CreateIndexes(ctx, msgColl, msgIndexes); err != nil {
		return err
	}

	// personas 集合：string _id 自带主键索引，额外按名称排序查询
	personaColl := db.Collection("personas")
	personaIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{bson.E{Key: "name", Value: 1}},
			Options: options.Index().SetName("idx_name"),
		},
	}

	return CreateIndexes(ctx, personaColl, personaIndexes)
}
