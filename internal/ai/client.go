package ai

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"banter/internal/config"
	"banter/internal/model"
)

// Client AI 能力层客户端
// 职责: 封装对话生成能力，提供统一接口
// 不做内部重试，重试/超时策略归上层编排
type Client struct {
	cfg       *config.AIConfig
	chatChain *ChatChain
}

// NewClient 创建 AI 客户端
func NewClient(ctx context.Context, cfg *config.AIConfig) (*Client, error) {
	if cfg.APIKey == "" {
		log.Warn().Msg("AI API key not configured, completion calls will fail")
	}

	chatChain, err := NewChatChain(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat chain: %w", err)
	}

	return &Client{
		cfg:       cfg,
		chatChain: chatChain,
	}, nil
}

// Generate 基于角色与上下文窗口生成回复
func (c *Client) Generate(ctx context.Context, persona *model.Persona, latestUserMessage string, contextWindow []model.Message) (string, error) {
	return c.chatChain.Run(ctx, persona, latestUserMessage, contextWindow)
}

// Close 关闭客户端
func (c *Client) Close() error {
	// 清理资源
	return nil
}
