package model

import "time"

// 消息发送方角色
const (
	SenderUser = "user"
	SenderBot  = "bot"
)

// Persona AI 角色配置
// 由外部管理后台创建/编辑，本服务只读
type Persona struct {
	ID          string    `bson:"_id" json:"id"`
	Name        string    `bson:"name" json:"name"`
	Personality string    `bson:"personality" json:"personality"` // 系统提示词
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updated_at"`
}

// Conversation 对话实体
// (user_id, persona_id) 唯一，首次交互时创建，之后只更新元数据
type Conversation struct {
	ID           string    `bson:"_id" json:"id"`
	UserID       string    `bson:"user_id" json:"user_id"`
	PersonaID    string    `bson:"persona_id" json:"persona_id"`
	LastMessage  string    `bson:"last_message" json:"last_message"`
	MessageCount int64     `bson:"message_count" json:"message_count"`
	Seq          int64     `bson:"seq" json:"-"` // 消息序号计数器，由 MessageRepo 递增
	Active       bool      `bson:"active" json:"active"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
}

// Message 消息实体
// 只追加不修改；seq 由 MessageRepo 分配，单个对话内严格递增
type Message struct {
	ID             string    `bson:"_id" json:"id"`
	ConversationID string    `bson:"conversation_id" json:"conversation_id"`
	Sender         string    `bson:"sender" json:"sender"`
	Content        string    `bson:"content" json:"content"`
	Seq            int64     `bson:"seq" json:"seq"`
	CreatedAt      time.Time `bson:"created_at" json:"timestamp"`
}
