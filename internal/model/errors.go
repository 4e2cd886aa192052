package model

import "errors"

var (
	// User related errors
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Token related errors
	ErrTokenNotFound = errors.New("token not found")
	ErrTokenExpired  = errors.New("token expired")
	ErrInvalidToken  = errors.New("invalid token")
	ErrRefreshFailed = errors.New("failed to refresh token")

	// Permission/Access related errors
	ErrUnauthorized = errors.New("unauthorized")

	// Task related errors
	ErrTaskNotFound = errors.New("task not found")

	// Identity service errors
	ErrIdentityUnavailable = errors.New("identity service unavailable")
)
