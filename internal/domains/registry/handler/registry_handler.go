package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"identity-registry/internal/domains/registry"
	"identity-registry/internal/shared/response"
	"identity-registry/pkg/logger"
)

// RegistryHandler serves the lookup surface and the owner-gated registry
// administration. Stateless - only holds the service dependency.
type RegistryHandler struct {
	service registry.Service
}

func NewRegistryHandler(service registry.Service) *RegistryHandler {
	return &RegistryHandler{service: service}
}

// ========================================
// LOOKUP ENDPOINTS
// ========================================

// GetByUsername handles GET /identities/username/:username
func (h *RegistryHandler) GetByUsername(c *gin.Context) {
	identity, err := h.service.GetByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, registry.ToIdentityDTO(identity))
}

// GetByAddress handles GET /identities/address/:address
func (h *RegistryHandler) GetByAddress(c *gin.Context) {
	address, err := registry.ParseAddress(c.Param("address"))
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	identity, err := h.service.GetByAddress(c.Request.Context(), address)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, registry.ToIdentityDTO(identity))
}

// GetByTokenID handles GET /identities/token/:tokenID
func (h *RegistryHandler) GetByTokenID(c *gin.Context) {
	tokenID, err := registry.ParseTokenID(c.Param("tokenID"))
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	identity, err := h.service.GetByTokenID(c.Request.Context(), tokenID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, registry.ToIdentityDTO(identity))
}

// GetTokenURI handles GET /identities/token/:tokenID/uri
func (h *RegistryHandler) GetTokenURI(c *gin.Context) {
	tokenID, err := registry.ParseTokenID(c.Param("tokenID"))
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	uri, err := h.service.TokenURI(c.Request.Context(), tokenID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"token_id": string(tokenID), "uri": uri})
}

// Transfer handles POST /identities/transfer.
// Bound tokens never move, so for any existing token this endpoint answers
// with the soulbound rejection; it exists so wallets probing transferability
// get a clear, machine-readable answer.
func (h *RegistryHandler) Transfer(c *gin.Context) {
	var req registry.TransferRequest
	if err := h.bindAndValidate(c, &req); err != nil {
		return
	}

	from, err := registry.ParseAddress(req.From)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	to, err := registry.ParseAddress(req.To)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	tokenID, err := registry.ParseTokenID(req.TokenID)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.service.Transfer(c.Request.Context(), from, to, tokenID); err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"transferred": true})
}

// ========================================
// ADMIN ENDPOINTS (owner-gated by middleware)
// ========================================

// GetSettings handles GET /admin/registry/settings
func (h *RegistryHandler) GetSettings(c *gin.Context) {
	settings, err := h.service.Settings(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, registry.ToSettingsDTO(settings))
}

// SetController handles PUT /admin/registry/controller
func (h *RegistryHandler) SetController(c *gin.Context) {
	var req registry.SetControllerRequest
	if err := h.bindAndValidate(c, &req); err != nil {
		return
	}

	if err := h.service.SetController(c.Request.Context(), registry.Caller(req.Controller)); err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"controller": req.Controller})
}

// SetDuration handles PUT /admin/registry/duration
func (h *RegistryHandler) SetDuration(c *gin.Context) {
	var req registry.SetDurationRequest
	if err := h.bindAndValidate(c, &req); err != nil {
		return
	}

	duration := time.Duration(req.Days) * 24 * time.Hour
	if err := h.service.SetRegistrationDuration(c.Request.Context(), duration); err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"days": req.Days})
}

// SetExpiryEnforcement handles PUT /admin/registry/expiry-enforcement
func (h *RegistryHandler) SetExpiryEnforcement(c *gin.Context) {
	var req registry.SetExpiryEnforcementRequest
	if err := h.bindAndValidate(c, &req); err != nil {
		return
	}

	if err := h.service.SetExpiryEnforcement(c.Request.Context(), *req.Enabled); err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"enabled": *req.Enabled})
}

// SetMetadataBase handles PUT /admin/registry/metadata-base
func (h *RegistryHandler) SetMetadataBase(c *gin.Context) {
	var req registry.SetMetadataBaseRequest
	if err := h.bindAndValidate(c, &req); err != nil {
		return
	}

	if err := h.service.SetMetadataBase(c.Request.Context(), req.Base); err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"base": req.Base})
}

// ========================================
// HELPERS
// ========================================

func (h *RegistryHandler) bindAndValidate(c *gin.Context, req interface{ Validate() error }) error {
	if err := c.ShouldBindJSON(req); err != nil {
		response.BadRequest(c, "invalid request body")
		return err
	}
	if err := req.Validate(); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_FAILED", "request validation failed", err)
		return err
	}
	return nil
}

// handleError maps domain errors onto HTTP status codes. Every rejected
// path surfaces as a distinct, diagnosable condition.
func (h *RegistryHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, registry.ErrNotRegistered):
		response.NotFound(c, err.Error())
	case errors.Is(err, registry.ErrRegistrationExpired):
		response.Gone(c, err.Error())
	case errors.Is(err, registry.ErrAlreadyOwned),
		errors.Is(err, registry.ErrNotOwner),
		errors.Is(err, registry.ErrExpiryEnforcementDisabled),
		errors.Is(err, registry.ErrZeroYears):
		response.Conflict(c, err.Error())
	case errors.Is(err, registry.ErrSoulbound):
		response.ErrorResponse(c, http.StatusConflict, "SOULBOUND", err.Error())
	case errors.Is(err, registry.ErrNotController):
		response.Forbidden(c, err.Error())
	case errors.Is(err, registry.ErrInvalidAddress),
		errors.Is(err, registry.ErrInvalidTokenID),
		errors.Is(err, registry.ErrInvalidUsername),
		errors.Is(err, registry.ErrInvalidDuration):
		response.BadRequest(c, err.Error())
	default:
		logger.Error("registry handler internal error", err)
		response.InternalError(c, "internal server error")
	}
}
