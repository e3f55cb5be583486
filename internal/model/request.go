package model

// SendMessageRequest 发送消息请求
type SendMessageRequest struct {
	UserID       string `json:"userId" binding:"required"`
	BotProfileID string `json:"botProfileId" binding:"required"`
	Message      string `json:"message" binding:"required"`
}

// TypingSignalRequest 输入状态信号
type TypingSignalRequest struct {
	ConversationID string `json:"conversationId" binding:"required"`
	UserID         string `json:"userId" binding:"required"`
	IsTyping       bool   `json:"isTyping"`
}

// CreditActionRequest 积分操作透传请求
type CreditActionRequest struct {
	Action string `json:"action" binding:"required"` // balance / debit / credit
	UserID string `json:"userId" binding:"required"`
	Amount int    `json:"amount,omitempty"`
}
