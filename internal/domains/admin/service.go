package admin

import "context"

// Service authenticates the deployment owner. There is a single owner
// account, configured through the environment; no user table exists.
type Service interface {
	// Login checks the credentials against the configured owner account and
	// returns a short-lived access token with the owner role.
	Login(ctx context.Context, email, password string) (*LoginResponse, error)
}
