package service

import (
	"context"
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"identity-registry/internal/domains/admin"
	"identity-registry/pkg/jwt"
	"identity-registry/pkg/logger"
)

const ownerRole = "owner"

// adminService authenticates the single configured owner account. The
// password is stored as a bcrypt hash in the environment, never in the
// database.
type adminService struct {
	ownerEmail        string
	ownerPasswordHash string
	jwtManager        *jwt.Manager
}

func NewAdminService(ownerEmail, ownerPasswordHash string, jwtManager *jwt.Manager) admin.Service {
	return &adminService{
		ownerEmail:        strings.ToLower(ownerEmail),
		ownerPasswordHash: ownerPasswordHash,
		jwtManager:        jwtManager,
	}
}

func (s *adminService) Login(ctx context.Context, email, password string) (*admin.LoginResponse, error) {
	// Constant-time email comparison; both checks run on every attempt so a
	// wrong email and a wrong password are indistinguishable.
	emailMatch := subtle.ConstantTimeCompare([]byte(strings.ToLower(email)), []byte(s.ownerEmail)) == 1
	passwordErr := bcrypt.CompareHashAndPassword([]byte(s.ownerPasswordHash), []byte(password))

	if !emailMatch || passwordErr != nil {
		logger.Warn("rejected owner login attempt", map[string]interface{}{
			"email": email,
		})
		return nil, admin.ErrInvalidCredentials
	}

	token, err := s.jwtManager.GenerateAccessToken(s.ownerEmail, ownerRole)
	if err != nil {
		return nil, err
	}

	return &admin.LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.jwtManager.AccessExpiry().Seconds()),
	}, nil
}
