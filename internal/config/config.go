package config

import (
	"errors"
	"time"
)

// Config 应用配置根结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	AI       AIConfig       `mapstructure:"ai"`
	Log      LogConfig      `mapstructure:"log"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Chat     ChatConfig     `mapstructure:"chat"`
	Presence PresenceConfig `mapstructure:"presence"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// AIConfig AI 服务配置
type AIConfig struct {
	Provider string          `mapstructure:"provider"`
	APIKey   string          `mapstructure:"api_key"`
	Model    string          `mapstructure:"model"`
	BaseURL  string          `mapstructure:"base_url"`
	Options  AIOptionsConfig `mapstructure:"options"`
}

// AIOptionsConfig AI 模型参数
type AIOptionsConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	TopP        float64 `mapstructure:"top_p"`
}

// LogConfig 日志配置 (Zerolog)
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	TimeFormat string `mapstructure:"time_format"`
}

// MongoConfig MongoDB 配置
type MongoConfig struct {
	URI         string `mapstructure:"uri"`
	Database    string `mapstructure:"database"`
	MaxPoolSize uint64 `mapstructure:"max_pool_size"`
	MinPoolSize uint64 `mapstructure:"min_pool_size"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LedgerConfig 外部积分账本服务配置
type LedgerConfig struct {
	BaseURL string        `mapstructure:"base_url"` // 账本服务地址
	Timeout time.Duration `mapstructure:"timeout"`  // 单次请求超时
}

// ChatConfig 对话业务配置
type ChatConfig struct {
	MessageCost       int           `mapstructure:"message_cost"`       // 每条消息扣除积分
	ContextWindow     int           `mapstructure:"context_window"`     // 上下文窗口条数上限
	HistoryLimit      int64         `mapstructure:"history_limit"`      // 历史查询返回条数上限
	GenerationTimeout time.Duration `mapstructure:"generation_timeout"` // AI 生成超时
}

// PresenceConfig 输入状态（typing）配置
type PresenceConfig struct {
	TypingTTL time.Duration `mapstructure:"typing_ttl"` // typing 信号过期时间
}

// Validate 验证配置有效性
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("invalid server port")
	}

	validModes := map[string]bool{"debug": true, "release": true, "test": true}
	if !validModes[c.Server.Mode] {
		return errors.New("invalid server mode, must be debug/release/test")
	}

	if c.Chat.MessageCost <= 0 {
		return errors.New("chat.message_cost must be positive")
	}
	if c.Chat.ContextWindow <= 0 {
		return errors.New("chat.context_window must be positive")
	}
	if c.Presence.TypingTTL <= 0 {
		return errors.New("presence.typing_ttl must be positive")
	}

	return nil
}
