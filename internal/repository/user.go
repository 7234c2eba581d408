package repository

import (
	"context"
	"errors"

	"user-api/internal/domain"
)

var (
	// ErrUserNotFound is returned when no row matches the lookup key.
	ErrUserNotFound = errors.New("user not found")
	// ErrUsernameTaken is returned when a write violates the unique username constraint.
	ErrUsernameTaken = errors.New("username already taken")
)

// UserRepository defines persistence operations for User entities.
type UserRepository interface {
	Init(ctx context.Context) error
	Ping(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) (int64, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	// UpdateByID overwrites username and password hash. Returns ErrUserNotFound
	// when id does not exist.
	UpdateByID(ctx context.Context, id int64, username, passwordHash string) (*domain.User, error)
	DeleteByID(ctx context.Context, id int64) error
	List(ctx context.Context) ([]domain.User, error)
}
