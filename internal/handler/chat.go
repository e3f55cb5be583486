package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"banter/internal/model"
	"banter/internal/service"
)

// ChatHandler 消息交换处理器
type ChatHandler struct {
	exchange *service.ExchangeService
}

// NewChatHandler 创建消息交换处理器
func NewChatHandler(exchange *service.ExchangeService) *ChatHandler {
	return &ChatHandler{exchange: exchange}
}

// Send 发送消息接口
// 失败状态映射：400 参数校验 / 402 余额不足 / 404 角色不存在
// / 500 持久化或生成失败 / 503 账本不可达
func (h *ChatHandler) Send(c *gin.Context) {
	var req model.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Code:    40001,
			Message: "Invalid request body",
			Detail:  err.Error(),
		})
		return
	}

	resp, err := h.exchange.Send(c.Request.Context(), &req)
	if err != nil {
		h.writeSendError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *ChatHandler) writeSendError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Code:    40001,
			Message: "Invalid request",
			Detail:  err.Error(),
		})
	case errors.Is(err, service.ErrInsufficientCredits):
		resp := model.ErrorResponse{
			Code:    40201,
			Message: "Insufficient credits",
		}
		var insufficient *service.InsufficientCreditsError
		if errors.As(err, &insufficient) {
			resp.CreditsRemaining = &insufficient.Remaining
		}
		c.JSON(http.StatusPaymentRequired, resp)
	case errors.Is(err, service.ErrPersonaNotFound):
		c.JSON(http.StatusNotFound, model.ErrorResponse{
			Code:    40401,
			Message: "Persona not found",
		})
	case errors.Is(err, service.ErrLedgerUnavailable):
		c.JSON(http.StatusServiceUnavailable, model.ErrorResponse{
			Code:    50301,
			Message: "Credit ledger unavailable",
		})
	case errors.Is(err, service.ErrAIGeneration):
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Code:    50002,
			Message: "Failed to generate reply, your message was saved - please retry",
		})
	default:
		// 持久化失败与未预期错误
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Code:    50001,
			Message: "Internal error",
		})
	}
}

// History 对话历史接口
func (h *ChatHandler) History(c *gin.Context) {
	userID := c.Query("userId")
	personaID := c.Query("botProfileId")

	resp, err := h.exchange.History(c.Request.Context(), userID, personaID)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			c.JSON(http.StatusBadRequest, model.ErrorResponse{
				Code:    40001,
				Message: "userId and botProfileId are required",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Code:    50001,
			Message: "Failed to load history",
		})
		return
	}

	c.JSON(http.StatusOK, resp)
}
