package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"identity-registry/internal/domains/admin"
	"identity-registry/internal/shared/response"
	"identity-registry/pkg/logger"
)

type AdminHandler struct {
	service admin.Service
}

func NewAdminHandler(service admin.Service) *AdminHandler {
	return &AdminHandler{service: service}
}

// Login handles POST /admin/auth/login
func (h *AdminHandler) Login(c *gin.Context) {
	var req admin.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_FAILED", "request validation failed", err)
		return
	}

	result, err := h.service.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, admin.ErrInvalidCredentials) {
			response.Unauthorized(c, err.Error())
			return
		}
		logger.Error("admin login internal error", err)
		response.InternalError(c, "internal server error")
		return
	}
	response.Success(c, http.StatusOK, result)
}
