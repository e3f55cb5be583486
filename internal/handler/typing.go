package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"banter/internal/model"
	"banter/internal/service"
)

// TypingHandler 输入状态处理器
type TypingHandler struct {
	presence *service.PresenceService
}

// NewTypingHandler 创建输入状态处理器
func NewTypingHandler(presence *service.PresenceService) *TypingHandler {
	return &TypingHandler{presence: presence}
}

// Signal 输入状态信号接口
// isTyping=true 开始/续期，false 显式结束
func (h *TypingHandler) Signal(c *gin.Context) {
	var req model.TypingSignalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Code:    40001,
			Message: "Invalid request body",
			Detail:  err.Error(),
		})
		return
	}

	resp := model.TypingSignalResponse{
		ConversationID: req.ConversationID,
		UserID:         req.UserID,
		IsTyping:       req.IsTyping,
	}

	ctx := c.Request.Context()
	if req.IsTyping {
		expiresAt, err := h.presence.Start(ctx, req.ConversationID, req.UserID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, model.ErrorResponse{
				Code:    50001,
				Message: "Failed to record typing state",
			})
			return
		}
		resp.ExpiresAt = &expiresAt
	} else {
		if err := h.presence.Stop(ctx, req.ConversationID, req.UserID); err != nil {
			c.JSON(http.StatusInternalServerError, model.ErrorResponse{
				Code:    50001,
				Message: "Failed to clear typing state",
			})
			return
		}
	}

	c.JSON(http.StatusOK, resp)
}

// Query 输入状态查询接口
// 附带当前所有活跃 typing 会话 key，便于诊断
func (h *TypingHandler) Query(c *gin.Context) {
	conversationID := c.Query("conversationId")
	userID := c.Query("userId")
	if conversationID == "" || userID == "" {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Code:    40001,
			Message: "conversationId and userId are required",
		})
		return
	}

	ctx := c.Request.Context()
	isTyping, err := h.presence.IsTyping(ctx, conversationID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Code:    50001,
			Message: "Failed to query typing state",
		})
		return
	}

	active, err := h.presence.Active(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Code:    50001,
			Message: "Failed to list typing sessions",
		})
		return
	}

	c.JSON(http.StatusOK, model.TypingQueryResponse{
		IsTyping:       isTyping,
		ActiveSessions: active,
	})
}
