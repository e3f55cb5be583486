package service

import "errors"

// 业务失败分类
// Handler 层通过 errors.Is 映射到 HTTP 状态码
var (
	ErrValidation          = errors.New("validation failed")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrPersonaNotFound     = errors.New("persona not found")
	ErrPersistence         = errors.New("persistence failure")
	ErrAIGeneration        = errors.New("ai generation failure")
	ErrLedgerUnavailable   = errors.New("ledger unavailable")
)
