package service

import "banter/internal/model"

// DefaultContextWindow 默认上下文窗口条数
// 控制提示词成本，同时保留足够轮次保证回复连贯
const DefaultContextWindow = 15

// BuildContextWindow 从最近历史裁剪出上下文窗口
// 纯函数：最多保留 maxSize 条最新消息，时间顺序不变
func BuildContextWindow(history []model.Message, maxSize int) []model.Message {
	if maxSize <= 0 {
		maxSize = DefaultContextWindow
	}
	if len(history) <= maxSize {
		return history
	}
	return history[len(history)-maxSize:]
}
