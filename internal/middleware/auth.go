package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"task-manager-api/internal/metrics"
	"task-manager-api/internal/model"
)

const (
	// AuthPathPrefix is the namespace served without a bearer token.
	AuthPathPrefix = "/api/auth"

	RefreshCookieName    = "refresh_token"
	NewAccessTokenHeader = "X-New-Access-Token"

	refreshCookieMaxAge = 30 * 24 * 60 * 60
	bearerPrefix        = "bearer "
)

const (
	msgAuthRequired   = "authentication required"
	msgInvalidHeader  = "invalid authorization header format"
	msgInvalidToken   = "invalid token"
	msgNoRefreshToken = "token expired and no refresh token found"
	msgRefreshFailed  = "failed to refresh token"
	msgForbidden      = "insufficient permissions"

	codeUnauthorized = "UNAUTHORIZED"
	codeForbidden    = "FORBIDDEN"
)

type sessionProvider interface {
	Verify(ctx context.Context, accessToken string) (model.Identity, error)
	Refresh(ctx context.Context, refreshToken string) (model.Session, error)
}

type AuthMiddleware struct {
	provider      sessionProvider
	secureCookies bool
}

// NewAuthMiddleware builds the request gate. secureCookies marks refresh
// cookies Secure and should be set in production.
func NewAuthMiddleware(provider sessionProvider, secureCookies bool) *AuthMiddleware {
	return &AuthMiddleware{provider: provider, secureCookies: secureCookies}
}

// RequireAuth admits a request only with a valid bearer token. An expired
// token is renewed from the refresh cookie when the provider reports it as
// recoverable; the new access token is returned in X-New-Access-Token and
// the cookie is rotated. Every rejection is a 401.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isAuthPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, msg := bearerToken(r.Header.Get("Authorization"))
		if msg != "" {
			m.reject(w, msg)
			return
		}

		ident, err := m.provider.Verify(r.Context(), token)
		switch {
		case err == nil:
			metrics.AuthDecisionsTotal.WithLabelValues(metrics.AuthPassed, "").Inc()
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), ident)))
		case errors.Is(err, model.ErrTokenExpired):
			m.refresh(w, r, next)
		default:
			slog.Debug("bearer token rejected", "path", r.URL.Path, "error", err)
			m.reject(w, msgInvalidToken)
		}
	})
}

func (m *AuthMiddleware) refresh(w http.ResponseWriter, r *http.Request, next http.Handler) {
	cookie, err := r.Cookie(RefreshCookieName)
	if err != nil || strings.TrimSpace(cookie.Value) == "" {
		m.reject(w, msgNoRefreshToken)
		return
	}

	session, err := m.provider.Refresh(r.Context(), cookie.Value)
	if err != nil || session.AccessToken == "" || session.RefreshToken == "" {
		slog.Warn("session refresh failed", "path", r.URL.Path, "error", err)
		m.reject(w, msgRefreshFailed)
		return
	}

	ident := session.User.Identity()
	if ident.UserID == "" {
		ident, err = m.provider.Verify(r.Context(), session.AccessToken)
		if err != nil {
			slog.Warn("refreshed token rejected", "path", r.URL.Path, "error", err)
			m.reject(w, msgRefreshFailed)
			return
		}
	}

	downstream := r.Clone(WithIdentity(r.Context(), ident))
	downstream.Header.Set("Authorization", "Bearer "+session.AccessToken)

	SetRefreshCookie(w, session.RefreshToken, m.secureCookies)
	w.Header().Set(NewAccessTokenHeader, session.AccessToken)

	metrics.AuthDecisionsTotal.WithLabelValues(metrics.AuthRefreshed, "").Inc()
	slog.Debug("session refreshed", "path", r.URL.Path, "user_id", ident.UserID)

	next.ServeHTTP(w, downstream)
}

// RequireRoles admits authenticated callers holding one of allowedRoles and
// answers 403 to everyone else.
func (m *AuthMiddleware) RequireRoles(allowedRoles ...string) func(http.Handler) http.Handler {
	roleSet := map[string]struct{}{}
	for _, role := range allowedRoles {
		roleSet[strings.ToLower(strings.TrimSpace(role))] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident, ok := IdentityFromContext(r.Context())
			if !ok {
				m.reject(w, msgAuthRequired)
				return
			}

			if _, exists := roleSet[strings.ToLower(ident.Role)]; !exists {
				writeErrorJSON(w, http.StatusForbidden, codeForbidden, msgForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SetRefreshCookie stores refreshToken in the HttpOnly refresh cookie.
func SetRefreshCookie(w http.ResponseWriter, refreshToken string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    refreshToken,
		Path:     "/",
		MaxAge:   refreshCookieMaxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *AuthMiddleware) reject(w http.ResponseWriter, message string) {
	metrics.AuthDecisionsTotal.WithLabelValues(metrics.AuthRejected, message).Inc()
	writeErrorJSON(w, http.StatusUnauthorized, codeUnauthorized, message)
}

// bearerToken extracts the token from an Authorization header value. A
// non-empty second result is the rejection message.
func bearerToken(header string) (string, string) {
	if header == "" {
		return "", msgAuthRequired
	}
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", msgInvalidHeader
	}

	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", msgAuthRequired
	}
	return token, ""
}

func isAuthPath(path string) bool {
	return path == AuthPathPrefix || strings.HasPrefix(path, AuthPathPrefix+"/")
}
