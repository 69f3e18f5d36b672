package repository

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// defaultCourses is the training material every new account starts with.
// Progress rows are seeded at registration into the shared course_progress
// table.
var defaultCourses = []CourseProgress{
	{CourseName: "xray-basics", VideoCount: 8, Status: CourseNotStarted},
	{CourseName: "covid-screening", VideoCount: 12, Status: CourseNotStarted},
}

// UserRepository provides persistence for accounts and their course
// progress.
type UserRepository struct {
	db     *gorm.DB
	logger *zap.Logger
	retry  retryPolicy
}

// NewUserRepository creates a new repository instance.
func NewUserRepository(db *gorm.DB, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger.Named("user_repository"),
		retry:  defaultRetryPolicy(),
	}
}

// AutoMigrate ensures the users and course_progress schemas are available.
func (r *UserRepository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&User{}, &CourseProgress{})
}

// CreateUser inserts a new account. Returns ErrUsernameTaken when the
// username is already registered.
func (r *UserRepository) CreateUser(ctx context.Context, username, passwordHash string) (*User, error) {
	user := &User{
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	err := r.retry.execute(ctx, r.logger, "repository.create_user", "", func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var count int64
			if err := tx.Model(&User{}).Where("username = ?", username).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return ErrUsernameTaken
			}
			return tx.Create(user).Error
		})
	})
	if err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	return user, nil
}

// FindByUsername retrieves an account by its unique username.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	err := r.db.WithContext(ctx).First(&user, "username = ?", username).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// SeedCourseProgress provisions the default course rows for a new account.
func (r *UserRepository) SeedCourseProgress(ctx context.Context, userID uint) error {
	now := time.Now().UTC()
	rows := make([]CourseProgress, len(defaultCourses))
	for i, course := range defaultCourses {
		rows[i] = course
		rows[i].UserID = userID
		rows[i].CreatedAt = now
	}
	return r.retry.execute(ctx, r.logger, "repository.seed_course_progress", "", func() error {
		return r.db.WithContext(ctx).Create(&rows).Error
	})
}

// ListCourseProgress returns a user's course rows in seeding order.
func (r *UserRepository) ListCourseProgress(ctx context.Context, userID uint) ([]CourseProgress, error) {
	var rows []CourseProgress
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
