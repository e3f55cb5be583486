package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"banter/internal/pkg/cache"
)

// DefaultTypingTTL typing 信号默认过期时间
const DefaultTypingTTL = 5 * time.Second

// PresenceStore 按 key 过期的临时状态存储
// 生产实现是 Redis（原生 TTL，多实例共享），测试用内存假实现
type PresenceStore interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, keys ...string) error
	ScanKeys(ctx context.Context, prefix string) ([]string, error)
}

// PresenceService 输入状态跟踪
//
// 每个 (conversationId, userId) 一个状态机：
// Idle → start → Typing(expiresAt) → stop/超时 → Idle
// 重复 start 覆盖已有过期时间（重置计时），不叠加
// 状态纯临时，从不落盘，也不影响消息/对话数据
type PresenceService struct {
	store PresenceStore
	ttl   time.Duration
	now   func() time.Time
}

// NewPresenceService 创建输入状态服务
func NewPresenceService(store PresenceStore, ttl time.Duration) *PresenceService {
	if ttl <= 0 {
		ttl = DefaultTypingTTL
	}
	return &PresenceService{
		store: store,
		ttl:   ttl,
		now:   time.Now,
	}
}

// Start 记录开始输入信号，返回过期时刻
// 已在输入中时重置过期时间
func (s *PresenceService) Start(ctx context.Context, conversationID, userID string) (time.Time, error) {
	expiresAt := s.now().Add(s.ttl)
	key := cache.TypingKey(conversationID, userID)

	if err := s.store.Set(ctx, key, expiresAt, s.ttl); err != nil {
		return time.Time{}, err
	}

	log.Debug().
		Str("conversation_id", conversationID).
		Str("user_id", userID).
		Time("expires_at", expiresAt).
		Msg("typing started")
	return expiresAt, nil
}

// Stop 显式结束输入
func (s *PresenceService) Stop(ctx context.Context, conversationID, userID string) error {
	return s.store.Delete(ctx, cache.TypingKey(conversationID, userID))
}

// IsTyping 查询当前是否在输入（未过期即为真）
func (s *PresenceService) IsTyping(ctx context.Context, conversationID, userID string) (bool, error) {
	return s.store.Exists(ctx, cache.TypingKey(conversationID, userID))
}

// Active 列出当前所有未过期的 typing 会话 key（诊断用途）
func (s *PresenceService) Active(ctx context.Context) ([]string, error) {
	keys, err := s.store.ScanKeys(ctx, cache.TypingKeyPrefix)
	if err != nil {
		return nil, err
	}
	if keys == nil {
		keys = []string{}
	}
	return keys, nil
}
