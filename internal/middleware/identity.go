package middleware

import (
	"context"
	"sync"

	"task-manager-api/internal/model"
)

type contextKey string

const (
	identityContextKey   contextKey = "identity"
	requestLogContextKey contextKey = "request_log"
)

// requestLog carries facts discovered deeper in the chain back to Logging,
// which only sees the outer request.
type requestLog struct {
	mu     sync.Mutex
	userID string
}

func (l *requestLog) setUserID(id string) {
	l.mu.Lock()
	l.userID = id
	l.mu.Unlock()
}

func (l *requestLog) getUserID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.userID
}

// WithIdentity attaches the authenticated caller to ctx.
func WithIdentity(ctx context.Context, ident model.Identity) context.Context {
	if l, ok := ctx.Value(requestLogContextKey).(*requestLog); ok {
		l.setUserID(ident.UserID)
	}
	return context.WithValue(ctx, identityContextKey, ident)
}

func IdentityFromContext(ctx context.Context) (model.Identity, bool) {
	ident, ok := ctx.Value(identityContextKey).(model.Identity)
	return ident, ok
}
