package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"task-manager-api/internal/model"
)

// TokenRepository stores refresh tokens by hash. Plain tokens never reach the database.
type TokenRepository struct {
	pool *pgxpool.Pool
}

func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{pool: pool}
}

func (r *TokenRepository) Store(ctx context.Context, tokenHash string, userID string, expiresAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO refresh_tokens (token_hash, user_id, created_at, expires_at)
		 VALUES ($1, $2, $3, $4)`,
		tokenHash, userID, time.Now().UTC(), expiresAt)
	if err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

// Consume deletes the token and returns its owner. Each token can be consumed
// once; a missing or expired token yields model.ErrTokenNotFound.
func (r *TokenRepository) Consume(ctx context.Context, tokenHash string) (string, error) {
	var userID string
	var expiresAt time.Time
	err := r.pool.QueryRow(ctx,
		`DELETE FROM refresh_tokens WHERE token_hash = $1
		 RETURNING user_id, expires_at`, tokenHash).Scan(&userID, &expiresAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return "", model.ErrTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("consume refresh token: %w", err)
	}
	if !expiresAt.After(time.Now()) {
		return "", model.ErrTokenNotFound
	}
	return userID, nil
}

func (r *TokenRepository) CleanExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("clean expired tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
