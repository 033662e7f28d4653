package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"identity-registry/internal/domains/issuance"
	"identity-registry/internal/domains/registry"
	"identity-registry/internal/shared/response"
	"identity-registry/pkg/logger"
)

// IssuanceHandler serves the signed submission surface, the nonce lookup, and
// the owner-gated controller administration.
type IssuanceHandler struct {
	service issuance.Service
}

func NewIssuanceHandler(service issuance.Service) *IssuanceHandler {
	return &IssuanceHandler{service: service}
}

// ========================================
// SIGNED SUBMISSIONS
// ========================================

// Mint handles POST /identities/mint
func (h *IssuanceHandler) Mint(c *gin.Context) {
	var req issuance.MintRequest
	if err := h.bindAndValidate(c, &req); err != nil {
		return
	}

	submission, err := req.ToSubmission()
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	identity, err := h.service.MintWithAuthorization(c.Request.Context(), submission)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, registry.ToIdentityDTO(identity))
}

// Renew handles POST /identities/renew
func (h *IssuanceHandler) Renew(c *gin.Context) {
	var req issuance.RenewRequest
	if err := h.bindAndValidate(c, &req); err != nil {
		return
	}

	submission, err := req.ToSubmission()
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	identity, err := h.service.RenewWithAuthorization(c.Request.Context(), submission)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, registry.ToIdentityDTO(identity))
}

// GetNonce handles GET /nonces/:address
func (h *IssuanceHandler) GetNonce(c *gin.Context) {
	address, err := registry.ParseAddress(c.Param("address"))
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	nonce, err := h.service.NextNonce(c.Request.Context(), address)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, issuance.NonceDTO{
		Address: address.String(),
		Nonce:   nonce,
	})
}

// ========================================
// ADMIN ENDPOINTS (owner-gated by middleware)
// ========================================

// GetState handles GET /admin/controller/state
func (h *IssuanceHandler) GetState(c *gin.Context) {
	state, err := h.service.State(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, issuance.ToStateDTO(state))
}

// SetSigner handles PUT /admin/controller/signer
func (h *IssuanceHandler) SetSigner(c *gin.Context) {
	var req issuance.SetSignerRequest
	if err := h.bindAndValidate(c, &req); err != nil {
		return
	}

	if err := h.service.SetSigner(c.Request.Context(), req.Signer); err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"signer": req.Signer})
}

// SetMintFee handles PUT /admin/controller/mint-fee
func (h *IssuanceHandler) SetMintFee(c *gin.Context) {
	var req issuance.SetFeeRequest
	if err := h.bindAndValidate(c, &req); err != nil {
		return
	}

	fee, err := req.ParseFee()
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.service.SetMintFee(c.Request.Context(), fee); err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"mint_fee": req.Fee})
}

// SetRenewalFee handles PUT /admin/controller/renewal-fee
func (h *IssuanceHandler) SetRenewalFee(c *gin.Context) {
	var req issuance.SetFeeRequest
	if err := h.bindAndValidate(c, &req); err != nil {
		return
	}

	fee, err := req.ParseFee()
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.service.SetRenewalFee(c.Request.Context(), fee); err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"renewal_fee_per_year": req.Fee})
}

// Withdraw handles POST /admin/controller/withdraw
func (h *IssuanceHandler) Withdraw(c *gin.Context) {
	drained, err := h.service.Withdraw(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"withdrawn": drained.String()})
}

// ========================================
// HELPERS
// ========================================

func (h *IssuanceHandler) bindAndValidate(c *gin.Context, req interface{ Validate() error }) error {
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

// handleError maps controller and registry errors onto HTTP status codes.
// Authorization failures are 401 (a fresh signed payload is needed), funding
// failures are 402, and registry conflicts keep their registry mapping.
func (h *IssuanceHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, issuance.ErrChainMismatch),
		errors.Is(err, issuance.ErrAuthorizationExpired),
		errors.Is(err, issuance.ErrInvalidSignature):
		response.Unauthorized(c, err.Error())
	case errors.Is(err, issuance.ErrInsufficientPayment):
		response.PaymentRequired(c, err.Error())
	case errors.Is(err, issuance.ErrInvalidSigner),
		errors.Is(err, issuance.ErrNegativeFee):
		response.BadRequest(c, err.Error())
	case errors.Is(err, registry.ErrNotRegistered):
		response.NotFound(c, err.Error())
	case errors.Is(err, registry.ErrRegistrationExpired):
		response.Gone(c, err.Error())
	case errors.Is(err, registry.ErrAlreadyOwned),
		errors.Is(err, registry.ErrZeroYears),
		errors.Is(err, registry.ErrExpiryEnforcementDisabled):
		response.Conflict(c, err.Error())
	case errors.Is(err, registry.ErrNotController):
		response.Forbidden(c, err.Error())
	case errors.Is(err, registry.ErrInvalidAddress),
		errors.Is(err, registry.ErrInvalidUsername):
		response.BadRequest(c, err.Error())
	default:
		logger.Error("issuance handler internal error", err)
		response.InternalError(c, "internal server error")
	}
}
