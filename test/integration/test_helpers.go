//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"task-manager-api/internal/config"
	"task-manager-api/internal/database"
	"task-manager-api/internal/handler"
	"task-manager-api/internal/identity"
	"task-manager-api/internal/middleware"
	"task-manager-api/internal/model"
	"task-manager-api/internal/repository"
	"task-manager-api/internal/router"
	"task-manager-api/internal/service"
)

const testPassword = "Password123!"

type testEnv struct {
	db     *database.DB
	server *httptest.Server
	users  *repository.UserRepository
	tokens *repository.TokenRepository
}

// openDatabase connects to DATABASE_URL, applies migrations and empties every
// table. Tests are skipped when no database is configured.
func openDatabase(t *testing.T) *database.DB {
	t.Helper()

	url := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := database.New(ctx, database.Options{URL: url, MaxConns: 4, MinConns: 0})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.Migrate(ctx))
	_, err = db.Pool.Exec(ctx, `TRUNCATE tasks, refresh_tokens, users, audit_entries RESTART IDENTITY`)
	require.NoError(t, err)

	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := openDatabase(t)
	users := repository.NewUserRepository(db.Pool)
	tokens := repository.NewTokenRepository(db.Pool)

	provider, err := identity.NewLocalProvider(users, tokens, identity.LocalOptions{
		Secret:     "integration-secret",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
		BcryptCost: bcrypt.MinCost,
	})
	require.NoError(t, err)

	cfg := &config.Config{
		Environment:      "test",
		RequestTimeout:   10 * time.Second,
		CORSOrigins:      []string{"*"},
		RateLimitRPM:     1000,
		AuthRateLimitRPM: 1000,
	}

	errs := handler.ErrorWriter{ExposeDetails: true}
	auditService := service.NewAuditService(repository.NewAuditRepository(db.Pool))
	taskService := service.NewTaskService(repository.NewTaskRepository(db.Pool), auditService)

	server := httptest.NewServer(router.New(cfg, middleware.NewAuthMiddleware(provider, false), router.Handlers{
		Health: handler.NewHealthHandler(db),
		Auth:   handler.NewAuthHandler(service.NewAuthService(provider), false, errs),
		Task:   handler.NewTaskHandler(taskService, errs),
		Audit:  handler.NewAuditHandler(auditService, errs),
	}))
	t.Cleanup(server.Close)

	return &testEnv{db: db, server: server, users: users, tokens: tokens}
}

// createAdmin inserts an admin account directly; registration only creates users.
func (e *testEnv) createAdmin(t *testing.T, email string) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, e.users.Create(context.Background(), model.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    "Admin",
		LastName:     "User",
		Role:         model.RoleAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}))
}

func (e *testEnv) register(t *testing.T, email string) {
	t.Helper()

	resp := e.do(t, http.MethodPost, "/api/auth/register",
		`{"email":"`+email+`","password":"`+testPassword+`","first_name":"Test","last_name":"User"}`, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func (e *testEnv) login(t *testing.T, email string) (string, *http.Cookie) {
	t.Helper()

	resp := e.do(t, http.MethodPost, "/api/auth/login", `{"email":"`+email+`","password":"`+testPassword+`"}`, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var login model.LoginResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&login))

	for _, c := range resp.Cookies() {
		if c.Name == middleware.RefreshCookieName {
			return login.Session.AccessToken, c
		}
	}
	t.Fatal("login did not set a refresh cookie")
	return "", nil
}

func (e *testEnv) do(t *testing.T, method string, path string, body string, token string, cookies ...*http.Cookie) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, e.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}
