package registry

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ========================================
// ADMIN DTOs
// ========================================

type SetControllerRequest struct {
	Controller string `json:"controller" binding:"required"`
}

func (r SetControllerRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Controller,
			validation.Required.Error("controller is required"),
			validation.Length(1, 128),
		),
	)
}

type SetDurationRequest struct {
	Days int `json:"days" binding:"required"`
}

func (r SetDurationRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Days,
			validation.Required.Error("days is required"),
			validation.Min(1).Error("duration must be at least one day"),
			validation.Max(3650),
		),
	)
}

type SetExpiryEnforcementRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func (r SetExpiryEnforcementRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Enabled, validation.NotNil.Error("enabled is required")),
	)
}

type SetMetadataBaseRequest struct {
	Base string `json:"base" binding:"required"`
}

func (r SetMetadataBaseRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Base,
			validation.Required.Error("base is required"),
			validation.Length(1, 512),
		),
	)
}

// ========================================
// TRANSFER DTO (soulbound surface)
// ========================================

type TransferRequest struct {
	TokenID string `json:"token_id" binding:"required"`
	From    string `json:"from" binding:"required"`
	To      string `json:"to" binding:"required"`
}

func (r TransferRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.TokenID, validation.Required, validation.Match(tokenIDPattern)),
		validation.Field(&r.From, validation.Required, validation.Match(addressPattern)),
		validation.Field(&r.To, validation.Required, validation.Match(addressPattern)),
	)
}

// ========================================
// RESPONSE DTOs
// ========================================

// IdentityDTO is the public projection of a binding.
type IdentityDTO struct {
	TokenID   string     `json:"token_id"`
	Owner     string     `json:"owner"`
	Username  string     `json:"username"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func ToIdentityDTO(i *Identity) *IdentityDTO {
	return &IdentityDTO{
		TokenID:   string(i.TokenID),
		Owner:     string(i.Owner),
		Username:  i.Username,
		ExpiresAt: i.ExpiresAt,
		CreatedAt: i.CreatedAt,
	}
}

type SettingsDTO struct {
	Controller        string    `json:"controller"`
	RegistrationDays  int       `json:"registration_days"`
	ExpiryEnforcement bool      `json:"expiry_enforcement"`
	MetadataBase      string    `json:"metadata_base"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func ToSettingsDTO(s *Settings) *SettingsDTO {
	return &SettingsDTO{
		Controller:        s.Controller,
		RegistrationDays:  int(s.RegistrationDuration / (24 * time.Hour)),
		ExpiryEnforcement: s.ExpiryEnforcement,
		MetadataBase:      s.MetadataBase,
		UpdatedAt:         s.UpdatedAt,
	}
}
