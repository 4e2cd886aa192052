package service

import (
	"context"
	"strings"

	"task-manager-api/internal/identity"
	"task-manager-api/internal/model"
	"task-manager-api/internal/validation"
)

type AuthService struct {
	provider identity.Provider
}

func NewAuthService(provider identity.Provider) *AuthService {
	return &AuthService{provider: provider}
}

func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (model.AuthUser, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)

	if err := validation.Struct(req); err != nil {
		return model.AuthUser{}, err
	}

	return s.provider.SignUp(ctx, identity.SignUpParams{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
}

func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (model.Session, error) {
	req.Email = strings.TrimSpace(req.Email)

	if err := validation.Struct(req); err != nil {
		return model.Session{}, err
	}

	return s.provider.SignIn(ctx, req.Email, req.Password)
}

func (s *AuthService) Refresh(ctx context.Context, req model.RefreshRequest) (model.Session, error) {
	req.RefreshToken = strings.TrimSpace(req.RefreshToken)

	if err := validation.Struct(req); err != nil {
		return model.Session{}, err
	}

	session, err := s.provider.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return model.Session{}, err
	}
	if session.AccessToken == "" || session.RefreshToken == "" {
		return model.Session{}, model.ErrRefreshFailed
	}
	return session, nil
}
