package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"task-manager-api/internal/model"
)

const defaultBcryptCost = 12

type UserStore interface {
	FindByID(ctx context.Context, id string) (model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
	Create(ctx context.Context, u model.User) error
}

type RefreshTokenStore interface {
	Store(ctx context.Context, tokenHash string, userID string, expiresAt time.Time) error
	Consume(ctx context.Context, tokenHash string) (string, error)
}

type LocalOptions struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	BcryptCost int
}

type LocalProvider struct {
	users      UserStore
	tokens     RefreshTokenStore
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	bcryptCost int
	now        func() time.Time
}

func NewLocalProvider(users UserStore, tokens RefreshTokenStore, opts LocalOptions) (*LocalProvider, error) {
	if strings.TrimSpace(opts.Secret) == "" {
		return nil, errors.New("local identity provider requires a signing secret")
	}

	cost := opts.BcryptCost
	if cost == 0 {
		cost = defaultBcryptCost
	}

	return &LocalProvider{
		users:      users,
		tokens:     tokens,
		secret:     []byte(opts.Secret),
		accessTTL:  opts.AccessTTL,
		refreshTTL: opts.RefreshTTL,
		bcryptCost: cost,
		now:        time.Now,
	}, nil
}

func (p *LocalProvider) SignUp(ctx context.Context, params SignUpParams) (model.AuthUser, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), p.bcryptCost)
	if err != nil {
		return model.AuthUser{}, fmt.Errorf("hash password: %w", err)
	}

	now := p.now().UTC()
	user := model.User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(params.Email)),
		PasswordHash: string(hash),
		FirstName:    strings.TrimSpace(params.FirstName),
		LastName:     strings.TrimSpace(params.LastName),
		Role:         model.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := p.users.Create(ctx, user); err != nil {
		return model.AuthUser{}, err
	}

	return authUser(user), nil
}

func (p *LocalProvider) SignIn(ctx context.Context, email string, password string) (model.Session, error) {
	user, err := p.users.FindByEmail(ctx, email)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.Session{}, model.ErrInvalidCredentials
	}
	if err != nil {
		return model.Session{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return model.Session{}, model.ErrInvalidCredentials
	}

	return p.issueSession(ctx, user)
}

// Refresh rotates the refresh token: the presented token is consumed and a
// new pair is issued.
func (p *LocalProvider) Refresh(ctx context.Context, refreshToken string) (model.Session, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return model.Session{}, model.ErrInvalidToken
	}

	userID, err := p.tokens.Consume(ctx, hashToken(refreshToken))
	if errors.Is(err, model.ErrTokenNotFound) {
		return model.Session{}, model.ErrInvalidToken
	}
	if err != nil {
		return model.Session{}, err
	}

	user, err := p.users.FindByID(ctx, userID)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.Session{}, model.ErrInvalidToken
	}
	if err != nil {
		return model.Session{}, err
	}

	return p.issueSession(ctx, user)
}

// Verify checks signature, expiry and token type. Expired tokens are reported
// as invalid: local sessions are renewed through the refresh endpoint only.
func (p *LocalProvider) Verify(_ context.Context, accessToken string) (model.Identity, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(accessToken, claims, func(*jwt.Token) (any, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil || !parsed.Valid {
		return model.Identity{}, model.ErrInvalidToken
	}
	if claims.Type != tokenTypeAccess || claims.Subject == "" {
		return model.Identity{}, model.ErrInvalidToken
	}

	role := claims.Role
	if role == "" {
		role = model.RoleUser
	}

	return model.Identity{UserID: claims.Subject, Email: claims.Email, Role: role}, nil
}

func (p *LocalProvider) issueSession(ctx context.Context, user model.User) (model.Session, error) {
	now := p.now().UTC()
	expiresAt := now.Add(p.accessTTL)

	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email: user.Email,
		Role:  user.Role,
		Type:  tokenTypeAccess,
	}).SignedString(p.secret)
	if err != nil {
		return model.Session{}, fmt.Errorf("sign access token: %w", err)
	}

	refreshToken := strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
	if err := p.tokens.Store(ctx, hashToken(refreshToken), user.ID, now.Add(p.refreshTTL)); err != nil {
		return model.Session{}, err
	}

	return model.Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt.Unix(),
		User:         authUser(user),
	}, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func authUser(u model.User) model.AuthUser {
	return model.AuthUser{
		ID:        u.ID,
		Email:     u.Email,
		Role:      u.Role,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}
