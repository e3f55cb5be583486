package model

import "time"

// SendMessageResponse 发送消息成功响应
type SendMessageResponse struct {
	BotResponse      string    `json:"botResponse"`
	CreditsRemaining int       `json:"creditsRemaining"`
	ConversationID   string    `json:"conversationId"`
	BotName          string    `json:"botName"`
	Timestamp        time.Time `json:"timestamp"`
}

// HistoryMessage 历史消息条目
type HistoryMessage struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryResponse 对话历史响应
type HistoryResponse struct {
	ConversationID string           `json:"conversationId"`
	Messages       []HistoryMessage `json:"messages"`
}

// TypingSignalResponse 输入状态信号响应
type TypingSignalResponse struct {
	ConversationID string     `json:"conversationId"`
	UserID         string     `json:"userId"`
	IsTyping       bool       `json:"isTyping"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
}

// TypingQueryResponse 输入状态查询响应
type TypingQueryResponse struct {
	IsTyping       bool     `json:"isTyping"`
	ActiveSessions []string `json:"activeSessions"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Code             int    `json:"code"`
	Message          string `json:"message"`
	Detail           string `json:"detail,omitempty"`
	CreditsRemaining *int   `json:"creditsRemaining,omitempty"` // 余额不足时回传
}
