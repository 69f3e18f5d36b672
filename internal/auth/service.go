package auth

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/chestscan/internal/repository"
)

var (
	// ErrMissingFields is returned when username or password are empty.
	ErrMissingFields = errors.New("username and password are required")
	// ErrPasswordMismatch is returned when confirmation differs from the
	// password at registration.
	ErrPasswordMismatch = errors.New("password and confirmation do not match")
	// ErrUsernameTaken is returned when the username is already registered.
	ErrUsernameTaken = repository.ErrUsernameTaken
	// ErrInvalidCredentials is returned for any failed login. Deliberately
	// does not distinguish unknown user from wrong password.
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// UserStore defines the persistence operations needed by the service.
type UserStore interface {
	CreateUser(ctx context.Context, username, passwordHash string) (*repository.User, error)
	FindByUsername(ctx context.Context, username string) (*repository.User, error)
	SeedCourseProgress(ctx context.Context, userID uint) error
	ListCourseProgress(ctx context.Context, userID uint) ([]repository.CourseProgress, error)
}

// Service implements registration and login.
type Service struct {
	users  UserStore
	logger *zap.Logger
}

// NewService constructs the authentication service.
func NewService(users UserStore, logger *zap.Logger) *Service {
	return &Service{users: users, logger: logger.Named("auth")}
}

// Register validates the submitted form, stores a bcrypt hash of the
// password, and provisions the new account's course progress.
func (s *Service) Register(ctx context.Context, username, password, confirmation string) (*repository.User, error) {
	if username == "" || password == "" {
		return nil, ErrMissingFields
	}
	if password != confirmation {
		return nil, ErrPasswordMismatch
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user, err := s.users.CreateUser(ctx, username, string(hash))
	if err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}

	if err := s.users.SeedCourseProgress(ctx, user.ID); err != nil {
		s.logger.Error("failed to seed course progress",
			zap.Uint("user_id", user.ID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("user registered", zap.Uint("user_id", user.ID), zap.String("username", username))
	return user, nil
}

// Login verifies credentials against the stored bcrypt hash.
func (s *Service) Login(ctx context.Context, username, password string) (*repository.User, error) {
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// CourseProgress returns the user's course rows for the landing page.
func (s *Service) CourseProgress(ctx context.Context, userID uint) ([]repository.CourseProgress, error) {
	return s.users.ListCourseProgress(ctx, userID)
}
