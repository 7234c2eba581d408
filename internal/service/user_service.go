package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"user-api/internal/domain"
	"user-api/internal/repository"
)

// PasswordCost is the bcrypt work factor applied to every stored password.
const PasswordCost = 10

var (
	// ErrConflict is returned when creating a user whose username is already taken.
	ErrConflict = errors.New("username already exists")
	// ErrNotFound is returned when a lookup key matches no user.
	ErrNotFound = errors.New("user not found")
	// ErrValidation marks malformed input; match it with errors.Is.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredentials indicates that provided login credentials are incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidationError names the offending field. It matches ErrValidation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Reason
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// UserResult carries a single user plus the human readable outcome.
type UserResult struct {
	Message string
	User    *domain.User
}

// UsersResult carries every stored user.
type UsersResult struct {
	Message string
	Users   []domain.User
}

// MessageResult is returned by operations that produce no record.
type MessageResult struct {
	Message string
}

// UserService describes user lifecycle operations.
type UserService interface {
	Create(ctx context.Context, username, password string) (UserResult, error)
	FindAll(ctx context.Context) (UsersResult, error)
	FindOne(ctx context.Context, username string) (UserResult, error)
	Update(ctx context.Context, id int64, username, password string) (UserResult, error)
	Remove(ctx context.Context, id int64) (MessageResult, error)
	Authenticate(ctx context.Context, username, password string) (*domain.User, error)
	EnsureUser(ctx context.Context, username, password string) (bool, error)
}

// Option customizes a UserService.
type Option func(*userService)

// WithPasswordCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func WithPasswordCost(cost int) Option {
	return func(s *userService) {
		s.cost = cost
	}
}

type userService struct {
	users repository.UserRepository
	cost  int
}

func NewUserService(users repository.UserRepository, opts ...Option) UserService {
	s := &userService{
		users: users,
		cost:  PasswordCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *userService) Create(ctx context.Context, username, password string) (UserResult, error) {
	if err := validateCredentials(username, password); err != nil {
		return UserResult{}, err
	}

	_, err := s.users.GetByUsername(ctx, username)
	switch {
	case err == nil:
		return UserResult{}, ErrConflict
	case !errors.Is(err, repository.ErrUserNotFound):
		return UserResult{}, err
	}

	hash, err := s.hash(password)
	if err != nil {
		return UserResult{}, err
	}

	user := &domain.User{
		Username:     username,
		PasswordHash: hash,
	}
	if _, err := s.users.Create(ctx, user); err != nil {
		// lost the race against a concurrent create for the same username
		if errors.Is(err, repository.ErrUsernameTaken) {
			return UserResult{}, ErrConflict
		}
		return UserResult{}, err
	}

	return UserResult{Message: "User created successfully", User: user}, nil
}

func (s *userService) FindAll(ctx context.Context) (UsersResult, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return UsersResult{}, err
	}
	return UsersResult{Message: "Users retrieved successfully", Users: users}, nil
}

func (s *userService) FindOne(ctx context.Context, username string) (UserResult, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return UserResult{}, ErrNotFound
		}
		return UserResult{}, err
	}
	return UserResult{Message: "User retrieved successfully", User: user}, nil
}

// Update replaces username and password of the user with the given id. It does
// not look the user up first: a missing id surfaces the repository error as is.
func (s *userService) Update(ctx context.Context, id int64, username, password string) (UserResult, error) {
	if err := validateCredentials(username, password); err != nil {
		return UserResult{}, err
	}

	hash, err := s.hash(password)
	if err != nil {
		return UserResult{}, err
	}

	user, err := s.users.UpdateByID(ctx, id, username, hash)
	if err != nil {
		return UserResult{}, err
	}
	return UserResult{Message: "User updated successfully", User: user}, nil
}

func (s *userService) Remove(ctx context.Context, id int64) (MessageResult, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return MessageResult{}, ErrNotFound
		}
		return MessageResult{}, err
	}

	if err := s.users.DeleteByID(ctx, id); err != nil {
		return MessageResult{}, err
	}
	return MessageResult{Message: fmt.Sprintf("User %s deleted successfully", user.Username)}, nil
}

func (s *userService) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// EnsureUser creates the user unless the username is already registered.
// It reports whether a new record was written.
func (s *userService) EnsureUser(ctx context.Context, username, password string) (bool, error) {
	if _, err := s.Create(ctx, username, password); err != nil {
		if errors.Is(err, ErrConflict) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *userService) hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func validateCredentials(username, password string) error {
	if strings.TrimSpace(username) == "" {
		return &ValidationError{Field: "username", Reason: "is required"}
	}
	if password == "" {
		return &ValidationError{Field: "password", Reason: "is required"}
	}
	// bcrypt refuses inputs longer than 72 bytes
	if len(password) > 72 {
		return &ValidationError{Field: "password", Reason: "must be at most 72 bytes"}
	}
	return nil
}
