package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"banter/internal/ai/component"
	"banter/internal/config"
	"banter/internal/model"
)

// ChatChain 对话链 - 封装 Eino Chain
// 职责: 角色系统提示词 + 历史上下文 + 用户消息 → 模型回复
type ChatChain struct {
	cfg   *config.AIConfig
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewChatChain 创建对话链
func NewChatChain(ctx context.Context, cfg *config.AIConfig) (*ChatChain, error) {
	chatModel, err := component.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile chat chain: %w", err)
	}

	return &ChatChain{
		cfg:   cfg,
		chain: runnable,
	}, nil
}

// Run 同步执行对话
func (c *ChatChain) Run(ctx context.Context, persona *model.Persona, userMessage string, history []model.Message) (string, error) {
	input := map[string]any{
		"system":  BuildSystemPrompt(persona),
		"history": buildHistoryMessages(history),
		"query":   userMessage,
	}

	response, err := c.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("run chat chain: %w", err)
	}
	if response == nil || response.Content == "" {
		return "", fmt.Errorf("chat chain returned empty reply")
	}

	return response.Content, nil
}

// BuildSystemPrompt 组装角色系统提示词
func BuildSystemPrompt(persona *model.Persona) string {
	return fmt.Sprintf(`%s

You are %s. Stay in character at all times, answer as %s would, and never reveal that you are an AI language model.`,
		persona.Personality, persona.Name, persona.Name)
}

// buildHistoryMessages 将消息历史转换为模型消息
// 上下文窗口已包含刚落库的用户消息，这里去掉末尾那条，避免和 query 重复
func buildHistoryMessages(history []model.Message) []*schema.Message {
	if len(history) > 0 && history[len(history)-1].Sender == model.SenderUser {
		history = history[:len(history)-1]
	}

	messages := make([]*schema.Message, 0, len(history))
	for _, msg := range history {
		switch msg.Sender {
		case model.SenderUser:
			messages = append(messages, schema.UserMessage(msg.Content))
		case model.SenderBot:
			messages = append(messages, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return messages
}
