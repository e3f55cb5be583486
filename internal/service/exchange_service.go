package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"banter/internal/config"
	"banter/internal/ledger"
	"banter/internal/model"
	"banter/internal/repository"
)

// CreditLedger 积分账本能力
type CreditLedger interface {
	GetBalance(ctx context.Context, userID string) (ledger.Balance, error)
	HasEnough(ctx context.Context, userID string, cost int) (bool, error)
	Debit(ctx context.Context, userID string, amount int) (ledger.Balance, error)
}

// PersonaDirectory 角色目录能力
type PersonaDirectory interface {
	Get(ctx context.Context, id string) (*model.Persona, error)
}

// ConversationDirectory 对话目录能力
type ConversationDirectory interface {
	GetOrCreate(ctx context.Context, userID, personaID string) (*model.Conversation, error)
	FindByPair(ctx context.Context, userID, personaID string) (*model.Conversation, error)
	Touch(ctx context.Context, conversationID, lastMessage string) error
}

// MessageLog 消息日志能力
type MessageLog interface {
	Append(ctx context.Context, conversationID, sender, content string) (*model.Message, error)
	Recent(ctx context.Context, conversationID string, limit int64) ([]model.Message, error)
}

// ReplyGenerator AI 回复生成能力
type ReplyGenerator interface {
	Generate(ctx context.Context, persona *model.Persona, latestUserMessage string, contextWindow []model.Message) (string, error)
}

// InsufficientCreditsError 余额不足
// 携带当前余额供 UI 回显
type InsufficientCreditsError struct {
	Remaining int
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits (remaining %d)", e.Remaining)
}

func (e *InsufficientCreditsError) Unwrap() error {
	return ErrInsufficientCredits
}

// ExchangeService 消息交换编排服务
//
// 每条入站消息走一条固定顺序的状态链：
// 校验 → 查余额 → 取角色 → 取/建对话 → 落用户消息 → 组上下文
// → 生成回复 → 落回复 → 扣积分 → 刷元数据
//
// 失败策略以"用户消息落库"为分界：落库前的失败无副作用直接上报；
// 落库后的失败不得丢已提交的消息；回复落库之后的失败一律降级为警告，
// 交换仍按成功返回（用户已经拿到了回复，不能为未完成的记账回滚体验）
type ExchangeService struct {
	ledger   CreditLedger
	personas PersonaDirectory
	convs    ConversationDirectory
	messages MessageLog
	aiClient ReplyGenerator
	cfg      *config.ChatConfig
}

// NewExchangeService 创建消息交换服务
func NewExchangeService(
	creditLedger CreditLedger,
	personas PersonaDirectory,
	convs ConversationDirectory,
	messages MessageLog,
	aiClient ReplyGenerator,
	cfg *config.ChatConfig,
) *ExchangeService {
	return &ExchangeService{
		ledger:   creditLedger,
		personas: personas,
		convs:    convs,
		messages: messages,
		aiClient: aiClient,
		cfg:      cfg,
	}
}

// Send 处理一次完整的消息交换
func (s *ExchangeService) Send(ctx context.Context, req *model.SendMessageRequest) (*model.SendMessageResponse, error) {
	// 1. ValidateInput：无副作用
	if err := validateSendRequest(req); err != nil {
		return nil, err
	}

	logger := log.With().
		Str("user_id", req.UserID).
		Str("persona_id", req.BotProfileID).
		Logger()

	cost := s.messageCost()

	// 2. CheckCredits：查询失败是"无法确认"，不是"余额不足"
	enough, err := s.ledger.HasEnough(ctx, req.UserID, cost)
	if err != nil {
		logger.Error().Err(err).Msg("credit check failed")
		return nil, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	if !enough {
		remaining := 0
		if balance, err := s.ledger.GetBalance(ctx, req.UserID); err == nil {
			remaining = balance.Total()
		}
		logger.Info().Int("remaining", remaining).Msg("exchange rejected, insufficient credits")
		return nil, &InsufficientCreditsError{Remaining: remaining}
	}

	// 3. LoadPersona
	persona, err := s.personas.Get(ctx, req.BotProfileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPersonaNotFound, req.BotProfileID)
		}
		return nil, fmt.Errorf("%w: load persona: %v", ErrPersistence, err)
	}

	// 4. GetOrCreateConversation
	conv, err := s.convs.GetOrCreate(ctx, req.UserID, req.BotProfileID)
	if err != nil {
		logger.Error().Err(err).Msg("get or create conversation failed")
		return nil, fmt.Errorf("%w: conversation: %v", ErrPersistence, err)
	}

	logger = logger.With().Str("conversation_id", conv.ID).Logger()

	// 5. PersistUserMessage：从这里起用户消息不允许丢
	if _, err := s.messages.Append(ctx, conv.ID, model.SenderUser, req.Message); err != nil {
		logger.Error().Err(err).Msg("persist user message failed")
		return nil, fmt.Errorf("%w: append user message: %v", ErrPersistence, err)
	}

	// 6. BuildContext：recent 已包含刚落库的用户消息
	// 读取失败按持久化失败终止：不生成、不扣款，已落库的用户消息保持可检索
	window := s.contextWindow()
	history, err := s.messages.Recent(ctx, conv.ID, int64(window))
	if err != nil {
		logger.Error().Err(err).Msg("read recent history failed")
		return nil, fmt.Errorf("%w: read recent history: %v", ErrPersistence, err)
	}
	contextWindow := BuildContextWindow(history, window)

	// 7. GenerateReply：超时按生成失败处理；已落库的用户消息保持可检索
	genCtx, cancel := context.WithTimeout(ctx, s.generationTimeout())
	reply, err := s.aiClient.Generate(genCtx, persona, req.Message, contextWindow)
	cancel()
	if err != nil {
		logger.Error().Err(err).Msg("reply generation failed")
		return nil, fmt.Errorf("%w: %v", ErrAIGeneration, err)
	}

	// 8. PersistBotMessage：失败则回复丢失，但不扣积分、不丢用户消息
	botMsg, err := s.messages.Append(ctx, conv.ID, model.SenderBot, reply)
	if err != nil {
		logger.Error().Err(err).Msg("persist bot message failed")
		return nil, fmt.Errorf("%w: append bot message: %v", ErrPersistence, err)
	}

	// 9. DeductCredits：用户已拿到回复，扣款失败只降级为警告
	remaining := 0
	if balance, err := s.ledger.Debit(ctx, req.UserID, cost); err != nil {
		logger.Warn().Err(err).Int("amount", cost).Msg("debit failed after successful exchange")
		if balance, err := s.ledger.GetBalance(ctx, req.UserID); err == nil {
			remaining = balance.Total()
		}
	} else {
		remaining = balance.Total()
	}

	// 10. UpdateConversationMetadata：尽力而为
	if err := s.convs.Touch(ctx, conv.ID, reply); err != nil {
		logger.Warn().Err(err).Msg("conversation metadata touch failed")
	}

	logger.Info().
		Int64("seq", botMsg.Seq).
		Int("remaining", remaining).
		Msg("exchange completed")

	// 11. Success
	return &model.SendMessageResponse{
		BotResponse:      reply,
		CreditsRemaining: remaining,
		ConversationID:   conv.ID,
		BotName:          persona.Name,
		Timestamp:        botMsg.CreatedAt,
	}, nil
}

// History 查询一个 (user, persona) 对话的消息历史
// 对话尚不存在时返回空列表，不视为错误
func (s *ExchangeService) History(ctx context.Context, userID, personaID string) (*model.HistoryResponse, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(personaID) == "" {
		return nil, fmt.Errorf("%w: userId and botProfileId are required", ErrValidation)
	}

	conv, err := s.convs.FindByPair(ctx, userID, personaID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &model.HistoryResponse{Messages: []model.HistoryMessage{}}, nil
		}
		return nil, fmt.Errorf("%w: find conversation: %v", ErrPersistence, err)
	}

	messages, err := s.messages.Recent(ctx, conv.ID, s.historyLimit())
	if err != nil {
		return nil, fmt.Errorf("%w: read history: %v", ErrPersistence, err)
	}

	items := make([]model.HistoryMessage, 0, len(messages))
	for _, msg := range messages {
		items = append(items, model.HistoryMessage{
			ID:        msg.ID,
			Sender:    msg.Sender,
			Content:   msg.Content,
			Timestamp: msg.CreatedAt,
		})
	}

	return &model.HistoryResponse{
		ConversationID: conv.ID,
		Messages:       items,
	}, nil
}

func validateSendRequest(req *model.SendMessageRequest) error {
	if req == nil {
		return fmt.Errorf("%w: empty request", ErrValidation)
	}
	if strings.TrimSpace(req.UserID) == "" {
		return fmt.Errorf("%w: userId is required", ErrValidation)
	}
	if strings.TrimSpace(req.BotProfileID) == "" {
		return fmt.Errorf("%w: botProfileId is required", ErrValidation)
	}
	if strings.TrimSpace(req.Message) == "" {
		return fmt.Errorf("%w: message is required", ErrValidation)
	}
	return nil
}

func (s *ExchangeService) messageCost() int {
	if s.cfg != nil && s.cfg.MessageCost > 0 {
		return s.cfg.MessageCost
	}
	return 1
}

func (s *ExchangeService) contextWindow() int {
	if s.cfg != nil && s.cfg.ContextWindow > 0 {
		return s.cfg.ContextWindow
	}
	return DefaultContextWindow
}

func (s *ExchangeService) historyLimit() int64 {
	if s.cfg != nil && s.cfg.HistoryLimit > 0 {
		return s.cfg.HistoryLimit
	}
	return 200
}

func (s *ExchangeService) generationTimeout() time.Duration {
	if s.cfg != nil && s.cfg.GenerationTimeout > 0 {
		return s.cfg.GenerationTimeout
	}
	return 30 * time.Second
}
