// Package identity resolves bearer tokens into callers and issues sessions.
//
// Two strategies implement Provider. RemoteProvider delegates to a
// GoTrue-compatible identity service; LocalProvider keeps users in PostgreSQL
// and signs its own tokens. A deployment runs exactly one of them.
package identity

import (
	"context"

	"task-manager-api/internal/model"
)

type SignUpParams struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Provider errors are model sentinels: Verify reports model.ErrTokenExpired
// only when a refresh can recover the request and model.ErrInvalidToken for
// everything else.
type Provider interface {
	SignUp(ctx context.Context, params SignUpParams) (model.AuthUser, error)
	SignIn(ctx context.Context, email string, password string) (model.Session, error)
	Refresh(ctx context.Context, refreshToken string) (model.Session, error)
	Verify(ctx context.Context, accessToken string) (model.Identity, error)
}
