package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"identity-registry/internal/domains/admin"
	"identity-registry/pkg/jwt"
)

const (
	ownerEmail    = "owner@example.com"
	ownerPassword = "correct-horse-battery"
)

func newTestService(t *testing.T) (admin.Service, *jwt.Manager) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(ownerPassword), bcrypt.MinCost)
	require.NoError(t, err)

	manager := jwt.NewManager("test-secret", 15)
	return NewAdminService(ownerEmail, string(hash), manager), manager
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("issues an owner access token for valid credentials", func(t *testing.T) {
		svc, manager := newTestService(t)

		result, err := svc.Login(ctx, ownerEmail, ownerPassword)
		require.NoError(t, err)
		assert.Equal(t, "Bearer", result.TokenType)
		assert.Equal(t, 15*60, result.ExpiresIn)

		claims, err := manager.ValidateAccessToken(result.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, ownerEmail, claims.Subject)
		assert.Equal(t, "owner", claims.Role)
	})

	t.Run("email comparison is case-insensitive", func(t *testing.T) {
		svc, _ := newTestService(t)

		_, err := svc.Login(ctx, "Owner@Example.COM", ownerPassword)
		assert.NoError(t, err)
	})

	t.Run("rejects wrong password and wrong email alike", func(t *testing.T) {
		svc, _ := newTestService(t)

		_, err := svc.Login(ctx, ownerEmail, "wrong-password")
		assert.ErrorIs(t, err, admin.ErrInvalidCredentials)

		_, err = svc.Login(ctx, "intruder@example.com", ownerPassword)
		assert.ErrorIs(t, err, admin.ErrInvalidCredentials)
	})
}
