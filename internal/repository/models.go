package repository

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// ErrUsernameTaken is returned when registration collides with an existing
// username.
var ErrUsernameTaken = errors.New("username already taken")

// User is a registered account. Usernames are unique; passwords are stored
// only as bcrypt hashes.
type User struct {
	ID           uint      `gorm:"primaryKey"`
	Username     string    `gorm:"column:username;uniqueIndex;size:64"`
	PasswordHash string    `gorm:"column:password_hash;size:128"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

// TableName overrides the default table name.
func (User) TableName() string {
	return "users"
}

// Course progress status values.
const (
	CourseNotStarted = 0
	CourseInProgress = 1
	CourseCompleted  = 2
)

// CourseProgress tracks one user's progress through one training course.
// A single fixed-schema table keyed by user id; rows are seeded at
// registration.
type CourseProgress struct {
	ID         uint      `gorm:"primaryKey"`
	UserID     uint      `gorm:"column:user_id;index"`
	CourseName string    `gorm:"column:course_name;size:64"`
	VideoCount int       `gorm:"column:video_count"`
	Status     int       `gorm:"column:status"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

// TableName overrides the default table name.
func (CourseProgress) TableName() string {
	return "course_progress"
}

// ScanRecord is one completed X-ray analysis: who submitted it, where the
// image lives, and what the model said.
type ScanRecord struct {
	ID          uint      `gorm:"primaryKey"`
	RequestID   string    `gorm:"column:request_id;uniqueIndex;size:64"`
	UserID      uint      `gorm:"column:user_id;index"`
	FileName    string    `gorm:"column:file_name;size:255"`
	StoredPath  string    `gorm:"column:stored_path;type:text"`
	SHA1Hash    string    `gorm:"column:sha1_hash;size:40;index"`
	Probability float32   `gorm:"column:probability"`
	Positive    bool      `gorm:"column:positive"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

// TableName overrides the default table name.
func (ScanRecord) TableName() string {
	return "scan_records"
}
