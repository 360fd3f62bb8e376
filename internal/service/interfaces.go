package service

import (
	"context"

	"github.com/makersmarket/session-auth-service/internal/domain"
)

type AuthServiceInterface interface {
	Register(ctx context.Context, email, name, password string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Logout(ctx context.Context, token string) (bool, error)
	LogoutAll(ctx context.Context, userID uint) (int, error)
	Profile(ctx context.Context, userID uint) (*domain.User, error)
	Sessions(ctx context.Context, userID uint, currentSessionID string) ([]SessionView, error)
}
