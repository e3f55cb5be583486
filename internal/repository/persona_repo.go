package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"banter/internal/model"
)

// ErrNotFound 实体不存在
var ErrNotFound = errors.New("not found")

// PersonaRepo 角色仓库
// 角色由外部管理流程写入，这里只读 + 启动期种子
type PersonaRepo struct {
	collection *mongo.Collection
}

// NewPersonaRepo 创建角色仓库
func NewPersonaRepo(db *mongo.Database) *PersonaRepo {
	return &PersonaRepo{
		collection: db.Collection("personas"),
	}
}

// Get 根据ID查询角色
func (r *PersonaRepo) Get(ctx context.Context, id string) (*model.Persona, error) {
	var persona model.Persona
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&persona)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("persona %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &persona, nil
}

// List 查询全部角色
func (r *PersonaRepo) List(ctx context.Context) ([]model.Persona, error) {
	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var personas []model.Persona
	if err := cursor.All(ctx, &personas); err != nil {
		return nil, err
	}
	return personas, nil
}

// Seed 写入种子角色（已存在则跳过）
// 用于开发/测试环境引导，生产角色由管理后台维护
func (r *PersonaRepo) Seed(ctx context.Context, personas []model.Persona) error {
	for _, p := range personas {
		now := time.Now()
		p.CreatedAt = now
		p.UpdatedAt = now

		_, err := r.collection.InsertOne(ctx, p)
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				continue
			}
			return err
		}
	}
	return nil
}

// SeedPersonas 默认角色集
func SeedPersonas() []model.Persona {
	return []model.Persona{
		{
			ID:          "luna",
			Name:        "Luna",
			Personality: "You are Luna, a warm and playful conversationalist. You answer with curiosity and gentle humor, and you keep replies short and personal.",
		},
		{
			ID:          "professor-abel",
			Name:        "Professor Abel",
			Personality: "You are Professor Abel, a patient teacher. You explain ideas step by step, ask clarifying questions, and never talk down to the user.",
		},
	}
}
