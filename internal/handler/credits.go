package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"banter/internal/ledger"
	"banter/internal/model"
)

// CreditsHandler 积分操作透传处理器
// 请求转发给外部账本服务，响应体原样回传
// 账本不可达时返回本地降级结果 {success:false, credits:0}
type CreditsHandler struct {
	ledger *ledger.Client
}

// NewCreditsHandler 创建积分透传处理器
func NewCreditsHandler(client *ledger.Client) *CreditsHandler {
	return &CreditsHandler{ledger: client}
}

// Do 积分操作接口 (balance/debit/credit)
func (h *CreditsHandler) Do(c *gin.Context) {
	var req model.CreditActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Code:    40001,
			Message: "Invalid request body",
			Detail:  err.Error(),
		})
		return
	}

	result := h.ledger.Do(c.Request.Context(), req.Action, req.UserID, req.Amount)
	c.JSON(http.StatusOK, result.Body)
}
