package identity

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"task-manager-api/internal/model"
)

type memoryUsers struct {
	mu   sync.Mutex
	byID map[string]model.User
}

func (m *memoryUsers) FindByID(_ context.Context, id string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return u, nil
}

func (m *memoryUsers) FindByEmail(_ context.Context, email string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			return u, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (m *memoryUsers) Create(_ context.Context, u model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if strings.EqualFold(existing.Email, u.Email) {
			return model.ErrUserAlreadyExists
		}
	}
	m.byID[u.ID] = u
	return nil
}

type storedToken struct {
	userID    string
	expiresAt time.Time
}

type memoryTokens struct {
	mu     sync.Mutex
	byHash map[string]storedToken
}

func (m *memoryTokens) Store(_ context.Context, tokenHash string, userID string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byHash[tokenHash] = storedToken{userID: userID, expiresAt: expiresAt}
	return nil
}

func (m *memoryTokens) Consume(_ context.Context, tokenHash string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.byHash[tokenHash]
	delete(m.byHash, tokenHash)
	if !ok || !tok.expiresAt.After(time.Now()) {
		return "", model.ErrTokenNotFound
	}
	return tok.userID, nil
}

func newTestLocalProvider(t *testing.T) (*LocalProvider, *memoryTokens) {
	t.Helper()

	tokens := &memoryTokens{byHash: map[string]storedToken{}}
	p, err := NewLocalProvider(&memoryUsers{byID: map[string]model.User{}}, tokens, LocalOptions{
		Secret:     "test-secret",
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
		BcryptCost: bcrypt.MinCost,
	})
	require.NoError(t, err)
	return p, tokens
}

func TestLocalProvider_SignUpAndSignIn(t *testing.T) {
	p, tokens := newTestLocalProvider(t)
	ctx := context.Background()

	user, err := p.SignUp(ctx, SignUpParams{Email: " Ada@Example.com ", Password: "secret1", FirstName: "Ada", LastName: "Lovelace"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, model.RoleUser, user.Role)

	_, err = p.SignUp(ctx, SignUpParams{Email: "ada@example.com", Password: "other12"})
	assert.ErrorIs(t, err, model.ErrUserAlreadyExists)

	session, err := p.SignIn(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, session.AccessToken)
	assert.NotEmpty(t, session.RefreshToken)
	assert.Equal(t, user.ID, session.User.ID)
	assert.Len(t, tokens.byHash, 1)
	assert.NotContains(t, tokens.byHash, session.RefreshToken, "refresh tokens are stored hashed")

	_, err = p.SignIn(ctx, "ada@example.com", "wrong-password")
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)

	_, err = p.SignIn(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)
}

func TestLocalProvider_VerifyCarriesClaims(t *testing.T) {
	p, _ := newTestLocalProvider(t)
	ctx := context.Background()

	user, err := p.SignUp(ctx, SignUpParams{Email: "bob@example.com", Password: "secret1"})
	require.NoError(t, err)
	session, err := p.SignIn(ctx, "bob@example.com", "secret1")
	require.NoError(t, err)

	ident, err := p.Verify(ctx, session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, model.Identity{UserID: user.ID, Email: "bob@example.com", Role: model.RoleUser}, ident)
}

func TestLocalProvider_VerifyRejects(t *testing.T) {
	p, _ := newTestLocalProvider(t)
	ctx := context.Background()

	sign := func(secret string, method jwt.SigningMethod, claims Claims) string {
		var key any = []byte(secret)
		if method == jwt.SigningMethodNone {
			key = jwt.UnsafeAllowNoneSignatureType
		}
		token, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return token
	}
	valid := func() Claims {
		return Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "user-1",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
			Role: model.RoleUser,
			Type: tokenTypeAccess,
		}
	}

	expired := valid()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	wrongType := valid()
	wrongType.Type = "refresh"
	noSubject := valid()
	noSubject.Subject = ""
	noExpiry := valid()
	noExpiry.ExpiresAt = nil

	cases := map[string]string{
		"garbage":        "not-a-jwt",
		"wrong secret":   sign("other-secret", jwt.SigningMethodHS256, valid()),
		"expired":        sign("test-secret", jwt.SigningMethodHS256, expired),
		"wrong type":     sign("test-secret", jwt.SigningMethodHS256, wrongType),
		"no subject":     sign("test-secret", jwt.SigningMethodHS256, noSubject),
		"no expiry":      sign("test-secret", jwt.SigningMethodHS256, noExpiry),
		"none algorithm": sign("", jwt.SigningMethodNone, valid()),
		"other hmac":     sign("test-secret", jwt.SigningMethodHS512, valid()),
	}

	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := p.Verify(ctx, token)
			assert.ErrorIs(t, err, model.ErrInvalidToken)
			assert.NotErrorIs(t, err, model.ErrTokenExpired)
		})
	}
}

func TestLocalProvider_RefreshRotates(t *testing.T) {
	p, tokens := newTestLocalProvider(t)
	ctx := context.Background()

	_, err := p.SignUp(ctx, SignUpParams{Email: "eve@example.com", Password: "secret1"})
	require.NoError(t, err)
	first, err := p.SignIn(ctx, "eve@example.com", "secret1")
	require.NoError(t, err)

	second, err := p.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.Equal(t, first.User.ID, second.User.ID)
	assert.Len(t, tokens.byHash, 1)

	_, err = p.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, model.ErrInvalidToken, "a consumed token cannot be replayed")

	_, err = p.Refresh(ctx, "")
	assert.ErrorIs(t, err, model.ErrInvalidToken)
}

func TestNewLocalProvider_RequiresSecret(t *testing.T) {
	_, err := NewLocalProvider(&memoryUsers{}, &memoryTokens{}, LocalOptions{Secret: "  "})
	assert.Error(t, err)
}
