package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sethvargo/go-retry"

	"task-manager-api/internal/metrics"
	"task-manager-api/internal/model"
)

const (
	errorCodeSessionExpired     = "session_expired"
	errorCodeInvalidCredentials = "invalid_credentials"
	errorCodeUserAlreadyExists  = "user_already_exists"
	errorCodeEmailExists        = "email_exists"

	maxErrorBody = 64 << 10
)

type RemoteOptions struct {
	BaseURL     string
	APIKey      string
	RedirectURL string
	Timeout     time.Duration
	MaxRetries  int
	Backoff     time.Duration
	HTTPClient  *http.Client
}

// RemoteProvider talks to a GoTrue-compatible identity service over REST.
type RemoteProvider struct {
	baseURL     string
	apiKey      string
	redirectURL string
	timeout     time.Duration
	maxRetries  uint64
	backoff     time.Duration
	client      *http.Client
	now         func() time.Time
}

func NewRemoteProvider(opts RemoteOptions) (*RemoteProvider, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("remote identity provider requires a base URL")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("parse identity URL: %w", err)
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	retries := opts.MaxRetries
	if retries < 0 {
		retries = 0
	}

	return &RemoteProvider{
		baseURL:     base,
		apiKey:      opts.APIKey,
		redirectURL: opts.RedirectURL,
		timeout:     opts.Timeout,
		maxRetries:  uint64(retries),
		backoff:     backoff,
		client:      client,
		now:         time.Now,
	}, nil
}

type remoteUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	AppMetadata  map[string]any `json:"app_metadata"`
	UserMetadata map[string]any `json:"user_metadata"`
}

func (u remoteUser) authUser() model.AuthUser {
	out := model.AuthUser{ID: u.ID, Email: u.Email, Role: model.RoleUser}
	if role, ok := u.AppMetadata["role"].(string); ok && strings.TrimSpace(role) != "" {
		out.Role = role
	}
	out.FirstName, _ = u.UserMetadata["first_name"].(string)
	out.LastName, _ = u.UserMetadata["last_name"].(string)
	return out
}

type remoteSession struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	ExpiresIn    int64      `json:"expires_in"`
	ExpiresAt    int64      `json:"expires_at"`
	User         remoteUser `json:"user"`
}

// signupResponse covers both shapes returned by /signup: a bare user when
// email confirmation is on, and a session wrapping the user when it is off.
type signupResponse struct {
	remoteUser
	User *remoteUser `json:"user"`
}

type remoteError struct {
	Status           int    `json:"-"`
	ErrorCode        string `json:"error_code"`
	Message          string `json:"msg"`
	ErrorName        string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (r *remoteError) Error() string {
	return fmt.Sprintf("identity service returned %d: %s", r.Status, r.message())
}

// StatusError is returned when the identity service answers with a non-2xx
// status that has no more specific meaning.
type StatusError struct {
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("identity service returned %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("identity service returned %d: %s", e.Status, e.Message)
}

func (r *remoteError) message() string {
	for _, m := range []string{r.Message, r.ErrorDescription, r.ErrorName} {
		if strings.TrimSpace(m) != "" {
			return m
		}
	}
	return http.StatusText(r.Status)
}

func (p *RemoteProvider) SignUp(ctx context.Context, params SignUpParams) (model.AuthUser, error) {
	query := url.Values{}
	if p.redirectURL != "" {
		query.Set("redirect_to", p.redirectURL)
	}

	body := map[string]any{
		"email":    params.Email,
		"password": params.Password,
		"data": map[string]string{
			"first_name": params.FirstName,
			"last_name":  params.LastName,
		},
	}

	var resp signupResponse
	if err := p.call(ctx, "signup", http.MethodPost, "/auth/v1/signup", query, "", body, &resp); err != nil {
		var remoteErr *remoteError
		if errors.As(err, &remoteErr) {
			if remoteErr.ErrorCode == errorCodeUserAlreadyExists || remoteErr.ErrorCode == errorCodeEmailExists {
				return model.AuthUser{}, model.ErrUserAlreadyExists
			}
			return model.AuthUser{}, remoteErr.statusError()
		}
		return model.AuthUser{}, err
	}

	user := resp.remoteUser
	if resp.User != nil {
		user = *resp.User
	}
	return user.authUser(), nil
}

func (p *RemoteProvider) SignIn(ctx context.Context, email string, password string) (model.Session, error) {
	query := url.Values{"grant_type": {"password"}}
	body := map[string]string{"email": email, "password": password}

	var resp remoteSession
	if err := p.call(ctx, "sign_in", http.MethodPost, "/auth/v1/token", query, "", body, &resp); err != nil {
		var remoteErr *remoteError
		if errors.As(err, &remoteErr) {
			if remoteErr.ErrorCode == errorCodeInvalidCredentials || remoteErr.Status == http.StatusBadRequest ||
				remoteErr.Status == http.StatusUnauthorized {
				return model.Session{}, model.ErrInvalidCredentials
			}
			return model.Session{}, remoteErr.statusError()
		}
		return model.Session{}, err
	}

	return p.session(resp), nil
}

func (p *RemoteProvider) Refresh(ctx context.Context, refreshToken string) (model.Session, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return model.Session{}, model.ErrInvalidToken
	}

	query := url.Values{"grant_type": {"refresh_token"}}
	body := map[string]string{"refresh_token": refreshToken}

	var resp remoteSession
	if err := p.call(ctx, "refresh", http.MethodPost, "/auth/v1/token", query, "", body, &resp); err != nil {
		var remoteErr *remoteError
		if errors.As(err, &remoteErr) {
			return model.Session{}, fmt.Errorf("%w: %s", model.ErrRefreshFailed, remoteErr.message())
		}
		return model.Session{}, err
	}

	return p.session(resp), nil
}

// Verify resolves the caller behind accessToken. An exp claim in the past is
// reported as model.ErrTokenExpired without contacting the identity service.
func (p *RemoteProvider) Verify(ctx context.Context, accessToken string) (model.Identity, error) {
	if p.expired(accessToken) {
		return model.Identity{}, model.ErrTokenExpired
	}

	var user remoteUser
	if err := p.call(ctx, "verify", http.MethodGet, "/auth/v1/user", nil, accessToken, nil, &user); err != nil {
		var remoteErr *remoteError
		if errors.As(err, &remoteErr) {
			if remoteErr.ErrorCode == errorCodeSessionExpired {
				return model.Identity{}, model.ErrTokenExpired
			}
			return model.Identity{}, model.ErrInvalidToken
		}
		return model.Identity{}, err
	}
	if user.ID == "" {
		return model.Identity{}, model.ErrInvalidToken
	}

	return user.authUser().Identity(), nil
}

// expired reads exp without verifying the signature; the identity service
// stays the authority on validity. Tokens that do not parse as JWTs are left
// for the service to judge.
func (p *RemoteProvider) expired(accessToken string) bool {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims); err != nil {
		return false
	}
	return claims.ExpiresAt != nil && !claims.ExpiresAt.After(p.now())
}

func (p *RemoteProvider) session(s remoteSession) model.Session {
	expiresAt := s.ExpiresAt
	if expiresAt == 0 && s.ExpiresIn > 0 {
		expiresAt = p.now().Add(time.Duration(s.ExpiresIn) * time.Second).Unix()
	}

	return model.Session{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    expiresAt,
		User:         s.User.authUser(),
	}
}

func (p *RemoteProvider) call(ctx context.Context, operation string, method string, path string,
	query url.Values, bearer string, body any, out any) error {
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", operation, err)
		}
		payload = encoded
	}

	endpoint := p.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	started := time.Now()
	backoff := retry.WithMaxRetries(p.maxRetries, retry.NewExponential(p.backoff))
	attempts := 0

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		return p.attempt(ctx, method, endpoint, bearer, payload, out)
	})

	metrics.IdentityRequestDurationSeconds.WithLabelValues(operation).Observe(time.Since(started).Seconds())
	metrics.IdentityRequestsTotal.WithLabelValues(operation, callResult(err)).Inc()

	if err != nil {
		var remoteErr *remoteError
		if !errors.As(err, &remoteErr) {
			slog.Warn("identity service unreachable", "operation", operation, "attempts", attempts, "error", err)
			return fmt.Errorf("%w: %s: %v", model.ErrIdentityUnavailable, operation, err)
		}
		if remoteErr.Status >= http.StatusInternalServerError || remoteErr.Status == http.StatusTooManyRequests {
			slog.Warn("identity service error", "operation", operation, "attempts", attempts,
				"status", remoteErr.Status, "error_code", remoteErr.ErrorCode)
		}
		return err
	}
	return nil
}

func (p *RemoteProvider) attempt(ctx context.Context, method string, endpoint string, bearer string,
	payload []byte, out any) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build identity request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if p.apiKey != "" {
		req.Header.Set("apikey", p.apiKey)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled) {
			return err
		}
		return retry.RetryableError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode identity response: %w", err)
		}
		return nil
	}

	remoteErr := &remoteError{Status: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	_ = json.Unmarshal(raw, remoteErr)

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return retry.RetryableError(remoteErr)
	}
	return remoteErr
}

func (r *remoteError) statusError() error {
	return &StatusError{Status: r.Status, Code: r.ErrorCode, Message: r.message()}
}

func callResult(err error) string {
	if err == nil {
		return "ok"
	}
	var remoteErr *remoteError
	if errors.As(err, &remoteErr) {
		if remoteErr.Status >= http.StatusInternalServerError {
			return "server_error"
		}
		return "client_error"
	}
	return "unavailable"
}
