package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/vvandenschrieck/tlca-backend/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type RegistrationFilters struct {
	CourseID  *uint   `json:"course_id"`
	UserID    *string `json:"user_id"`
	Confirmed *bool   `json:"confirmed"` // true = no invitation pending
	Pending   *bool   `json:"pending"`
	// TeachingGroups restricts results to registrations with no teaching-group
	// assignment or one of the given positions. Nil means no restriction.
	TeachingGroups []int  `json:"teaching_groups"`
	Limit          int    `json:"limit"`
	Offset         int    `json:"offset"`
	SortBy         string `json:"sort_by"`    // "created_at", "date"
	SortOrder      string `json:"sort_order"` // "asc", "desc"
}

// ===== DOMAIN REPOSITORIES =====

// RegistrationRepository owns the registrations table. The tx parameter
// carries an open transaction; a nil tx falls back to the base connection.
type RegistrationRepository interface {
	Create(ctx context.Context, tx *gorm.DB, registration *models.Registration) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Registration, error)
	Update(ctx context.Context, tx *gorm.DB, registration *models.Registration) error

	List(ctx context.Context, tx *gorm.DB, filters RegistrationFilters) ([]*models.Registration, int64, error)

	// ExistsForUser reports whether any registration (pending or confirmed)
	// exists for the (course, user) pair.
	ExistsForUser(ctx context.Context, tx *gorm.DB, courseID uint, userID string) (bool, error)
}

// CourseRepository reads catalog-owned course snapshots. No write operations:
// the catalog service owns the data.
type CourseRepository interface {
	GetByCode(ctx context.Context, tx *gorm.DB, code string) (*models.Course, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Course, error)

	// IsTeacher reports whether the user appears in the course's teaching staff.
	IsTeacher(ctx context.Context, tx *gorm.DB, courseID uint, userID string) (bool, error)
}
