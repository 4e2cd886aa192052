package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-manager-api/internal/model"
)

func serviceToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("identity-service-secret"))
	require.NoError(t, err)
	return token
}

func newTestRemoteProvider(t *testing.T, handler http.HandlerFunc) *RemoteProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := NewRemoteProvider(RemoteOptions{
		BaseURL:     srv.URL + "/",
		APIKey:      "anon-key",
		RedirectURL: "http://localhost:3000",
		Timeout:     2 * time.Second,
		MaxRetries:  2,
		Backoff:     time.Millisecond,
	})
	require.NoError(t, err)
	return p
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestRemoteProvider_Verify(t *testing.T) {
	t.Run("resolves the user and its role", func(t *testing.T) {
		token := serviceToken(t, time.Now().Add(time.Hour))
		p := newTestRemoteProvider(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/auth/v1/user", r.URL.Path)
			assert.Equal(t, "anon-key", r.Header.Get("apikey"))
			assert.Equal(t, "Bearer "+token, r.Header.Get("Authorization"))
			writeJSON(w, http.StatusOK, map[string]any{
				"id":           "user-1",
				"email":        "ada@example.com",
				"app_metadata": map[string]any{"role": "admin"},
			})
		})

		ident, err := p.Verify(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, model.Identity{UserID: "user-1", Email: "ada@example.com", Role: model.RoleAdmin}, ident)
	})

	t.Run("role defaults to user", func(t *testing.T) {
		p := newTestRemoteProvider(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"id": "user-2", "email": "bob@example.com"})
		})

		ident, err := p.Verify(context.Background(), "opaque-token")
		require.NoError(t, err)
		assert.Equal(t, model.RoleUser, ident.Role)
	})

	t.Run("past exp is expired without a remote call", func(t *testing.T) {
		var calls atomic.Int32
		p := newTestRemoteProvider(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			writeJSON(w, http.StatusOK, map[string]any{"id": "user-1"})
		})

		_, err := p.Verify(context.Background(), serviceToken(t, time.Now().Add(-time.Minute)))
		assert.ErrorIs(t, err, model.ErrTokenExpired)
		assert.Zero(t, calls.Load())
	})

	t.Run("session_expired error code maps to expired", func(t *testing.T) {
		p := newTestRemoteProvider(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"code": 401, "error_code": "session_expired", "msg": "Session has expired",
			})
		})

		_, err := p.Verify(context.Background(), "opaque-token")
		assert.ErrorIs(t, err, model.ErrTokenExpired)
	})

	t.Run("an expiry wording without the code stays invalid", func(t *testing.T) {
		p := newTestRemoteProvider(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"code": 401, "error_code": "bad_jwt", "msg": "invalid JWT: token is expired",
			})
		})

		_, err := p.Verify(context.Background(), "opaque-token")
		assert.ErrorIs(t, err, model.ErrInvalidToken)
		assert.NotErrorIs(t, err, model.ErrTokenExpired)
	})
}

func TestRemoteProvider_Retries(t *testing.T) {
	t.Run("retries 503 then succeeds", func(t *testing.T) {
		var calls atomic.Int32
		p := newTestRemoteProvider(t, func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				writeJSON(w, http.StatusServiceUnavailable, map[string]any{"msg": "busy"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"id": "user-1"})
		})

		ident, err := p.Verify(context.Background(), "opaque-token")
		require.NoError(t, err)
		assert.Equal(t, "user-1", ident.UserID)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		var calls atomic.Int32
		p := newTestRemoteProvider(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			writeJSON(w, http.StatusTooManyRequests, map[string]any{"msg": "slow down"})
		})

		_, err := p.Verify(context.Background(), "opaque-token")
		assert.ErrorIs(t, err, model.ErrInvalidToken)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("does not retry client errors", func(t *testing.T) {
		var calls atomic.Int32
		p := newTestRemoteProvider(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error_code": "bad_jwt", "msg": "invalid JWT"})
		})

		_, err := p.Verify(context.Background(), "opaque-token")
		assert.ErrorIs(t, err, model.ErrInvalidToken)
		assert.Equal(t, int32(1), calls.Load())
	})
}

func TestRemoteProvider_SignIn(t *testing.T) {
	p := newTestRemoteProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/token", r.URL.Path)
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "secret1" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error_code": "invalid_credentials", "msg": "Invalid login credentials"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  "access-1",
			"refresh_token": "refresh-1",
			"expires_at":    1700000000,
			"user":          map[string]any{"id": "user-1", "email": body["email"]},
		})
	})

	session, err := p.SignIn(context.Background(), "ada@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "access-1", session.AccessToken)
	assert.Equal(t, "refresh-1", session.RefreshToken)
	assert.Equal(t, int64(1700000000), session.ExpiresAt)
	assert.Equal(t, "ada@example.com", session.User.Email)

	_, err = p.SignIn(context.Background(), "ada@example.com", "nope")
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)
}

func TestRemoteProvider_Refresh(t *testing.T) {
	p := newTestRemoteProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "refresh_token", r.URL.Query().Get("grant_type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["refresh_token"] != "refresh-1" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error_code": "refresh_token_not_found", "msg": "Invalid Refresh Token"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  "access-2",
			"refresh_token": "refresh-2",
			"expires_in":    3600,
			"user":          map[string]any{"id": "user-1", "app_metadata": map[string]any{"role": "admin"}},
		})
	})

	session, err := p.Refresh(context.Background(), "refresh-1")
	require.NoError(t, err)
	assert.Equal(t, "access-2", session.AccessToken)
	assert.Equal(t, "refresh-2", session.RefreshToken)
	assert.Greater(t, session.ExpiresAt, time.Now().Unix())
	assert.Equal(t, model.RoleAdmin, session.User.Identity().Role)

	_, err = p.Refresh(context.Background(), "stale")
	assert.ErrorIs(t, err, model.ErrRefreshFailed)
}

func TestRemoteProvider_SignUp(t *testing.T) {
	p := newTestRemoteProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/signup", r.URL.Path)
		assert.Equal(t, "http://localhost:3000", r.URL.Query().Get("redirect_to"))

		var body struct {
			Email string            `json:"email"`
			Data  map[string]string `json:"data"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body.Email == "taken@example.com" {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error_code": "user_already_exists", "msg": "User already registered"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"id":            "user-9",
			"email":         body.Email,
			"user_metadata": body.Data,
		})
	})

	user, err := p.SignUp(context.Background(), SignUpParams{Email: "new@example.com", Password: "secret1", FirstName: "New", LastName: "User"})
	require.NoError(t, err)
	assert.Equal(t, "user-9", user.ID)
	assert.Equal(t, "New", user.FirstName)

	_, err = p.SignUp(context.Background(), SignUpParams{Email: "taken@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, model.ErrUserAlreadyExists)
}

func TestRemoteProvider_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	p, err := NewRemoteProvider(RemoteOptions{BaseURL: srv.URL, MaxRetries: 1, Backoff: time.Millisecond})
	require.NoError(t, err)

	_, err = p.SignIn(context.Background(), "ada@example.com", "secret1")
	assert.ErrorIs(t, err, model.ErrIdentityUnavailable)
}
