package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/bpm-api/internal/domain"
	"github.com/phrazzld/bpm-api/internal/service/auth"
	"github.com/phrazzld/bpm-api/internal/store"
)

// NewUserParams describes a user to register.
type NewUserParams struct {
	Email           string
	Password        string
	Firstname       string
	Lastname        string
	IsAdministrator bool
}

// UserService provides user registration and authentication
type UserService interface {
	// GetUser retrieves a user by their ID
	GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error)

	// CreateUser registers a new user. The password is hashed by the store.
	// Returns store.ErrEmailExists if the email is taken.
	CreateUser(ctx context.Context, params NewUserParams) (*domain.User, error)

	// Authenticate returns the user with email if password matches.
	// Returns ErrInvalidCredentials otherwise.
	Authenticate(ctx context.Context, email, password string) (*domain.User, error)
}

// userService implements the UserService interface
type userService struct {
	repo     store.Repository
	tx       store.Transactor
	verifier auth.PasswordVerifier
	logger   *slog.Logger
}

var _ UserService = (*userService)(nil)

// NewUserService creates a new UserService
func NewUserService(
	repo store.Repository,
	tx store.Transactor,
	verifier auth.PasswordVerifier,
	logger *slog.Logger,
) (UserService, error) {
	if repo == nil || tx == nil {
		return nil, fmt.Errorf("repository and transactor cannot be nil")
	}
	if verifier == nil {
		return nil, fmt.Errorf("password verifier cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &userService{
		repo:     repo,
		tx:       tx,
		verifier: verifier,
		logger:   logger.With("component", "user_service"),
	}, nil
}

// GetUser retrieves a user by their ID
func (s *userService) GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.repo.Users().GetByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrUserNotFound) {
			s.logger.ErrorContext(ctx, "failed to retrieve user",
				"error", err,
				"user_id", userID)
		}
		return nil, fmt.Errorf("failed to retrieve user: %w", err)
	}
	return user, nil
}

// CreateUser registers a new user inside a transaction
func (s *userService) CreateUser(ctx context.Context, params NewUserParams) (*domain.User, error) {
	user, err := domain.NewUser(strings.TrimSpace(params.Email), params.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w: %w", domain.ErrValidation, err)
	}
	user.Firstname = strings.TrimSpace(params.Firstname)
	user.Lastname = strings.TrimSpace(params.Lastname)
	user.IsAdministrator = params.IsAdministrator

	err = s.tx.WithinTx(ctx, func(ctx context.Context, repo store.Repository) error {
		return repo.Users().Create(ctx, user)
	})
	if err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			s.logger.DebugContext(ctx, "attempted to create user with existing email",
				"email", user.Email)
		} else {
			s.logger.ErrorContext(ctx, "failed to save user",
				"error", err,
				"email", user.Email)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.InfoContext(ctx, "user created",
		"user_id", user.ID,
		"administrator", user.IsAdministrator)
	return user, nil
}

// Authenticate checks the password of the user with email
func (s *userService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.repo.Users().GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, NewServiceError("user", "authenticate", "failed to load user", err)
	}
	if err := s.verifier.Compare(user.HashedPassword, password); err != nil {
		s.logger.DebugContext(ctx, "password mismatch", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}
	return user, nil
}
