package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"banter/internal/model"
	"banter/internal/repository"
)

// PersonaHandler 角色目录处理器
type PersonaHandler struct {
	repo *repository.PersonaRepo
}

// NewPersonaHandler 创建角色目录处理器
func NewPersonaHandler(repo *repository.PersonaRepo) *PersonaHandler {
	return &PersonaHandler{repo: repo}
}

// List 角色列表接口
func (h *PersonaHandler) List(c *gin.Context) {
	personas, err := h.repo.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Code:    50001,
			Message: "Failed to list personas",
		})
		return
	}
	if personas == nil {
		personas = []model.Persona{}
	}

	c.JSON(http.StatusOK, personas)
}
