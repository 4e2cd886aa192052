package identity

import (
	"context"

	"github.com/stretchr/testify/mock"

	"task-manager-api/internal/model"
)

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) SignUp(ctx context.Context, params SignUpParams) (model.AuthUser, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(model.AuthUser), args.Error(1)
}

func (m *MockProvider) SignIn(ctx context.Context, email string, password string) (model.Session, error) {
	args := m.Called(ctx, email, password)
	return args.Get(0).(model.Session), args.Error(1)
}

func (m *MockProvider) Refresh(ctx context.Context, refreshToken string) (model.Session, error) {
	args := m.Called(ctx, refreshToken)
	return args.Get(0).(model.Session), args.Error(1)
}

func (m *MockProvider) Verify(ctx context.Context, accessToken string) (model.Identity, error) {
	args := m.Called(ctx, accessToken)
	return args.Get(0).(model.Identity), args.Error(1)
}
