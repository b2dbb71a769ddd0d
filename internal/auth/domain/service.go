package domain

import (
	"context"
	"errors"
	"time"
)

type Service interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*AdminUser, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	// Authenticate validates a bearer token and returns its principal.
	Authenticate(ctx context.Context, rawToken string) (*Principal, error)
	CurrentUser(ctx context.Context) (*AdminUser, error)
	ChangePassword(ctx context.Context, current string, next string) error
	// EnsureBootstrapAdmin creates the configured admin when no users exist.
	EnsureBootstrapAdmin(ctx context.Context) error
}

type CreateUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"omitempty,oneof=admin staff"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ChangePasswordRequest struct {
	Current string `json:"current_password" validate:"required"`
	Next    string `json:"new_password" validate:"required,min=8"`
}

type LoginResult struct {
	Token     string     `json:"token"`
	TokenType string     `json:"token_type"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      *AdminUser `json:"user"`
}

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrUserDisabled       = errors.New("user disabled")
	ErrInvalidRole        = errors.New("invalid role")
	ErrWeakPassword       = errors.New("password too short")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrSecretNotSet       = errors.New("auth secret not configured")
)
