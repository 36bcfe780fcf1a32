package postgres

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/vvandenschrieck/tlca-backend/internal/cache"
	"github.com/vvandenschrieck/tlca-backend/internal/models"
	"github.com/vvandenschrieck/tlca-backend/internal/repositories"
)

type RegistrationPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewRegistrationPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.RegistrationRepository {
	return &RegistrationPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

// getDB returns the transaction DB if provided, otherwise returns the default DB
func (r *RegistrationPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

// Create inserts a registration and invalidates course-scoped cache entries.
// The partial unique index on (course_id, user_id) surfaces concurrent
// duplicates as gorm.ErrDuplicatedKey; callers detect it with
// repositories.IsDuplicateError.
func (r *RegistrationPostgreSQL) Create(ctx context.Context, tx *gorm.DB, registration *models.Registration) error {
	if err := r.getDB(tx).WithContext(ctx).Create(registration).Error; err != nil {
		return fmt.Errorf("failed to create registration: %w", err)
	}

	cache.SafeInvalidatePattern(ctx, r.cacheManager.Registration, fmt.Sprintf("course:%d:*", registration.CourseID))
	cache.SafeInvalidatePattern(ctx, r.cacheManager.Exists, fmt.Sprintf("registration:%d:*", registration.CourseID))

	return nil
}

// GetByID retrieves a registration by ID with caching
func (r *RegistrationPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Registration, error) {
	cacheKey := fmt.Sprintf("id:%d", id)
	var registration models.Registration

	err := r.cacheManager.Registration.CacheOrExecute(ctx, cacheKey, &registration, cache.RegistrationCacheConfig.TTL, func() (interface{}, error) {
		var dbRegistration models.Registration
		err := r.getDB(tx).WithContext(ctx).
			Preload("Course").
			Preload("Course.Groups", func(db *gorm.DB) *gorm.DB {
				return db.Order("course_groups.kind, course_groups.position ASC")
			}).
			First(&dbRegistration, id).Error
		if err != nil {
			return nil, fmt.Errorf("failed to get registration: %w", err)
		}
		return &dbRegistration, nil
	})

	if err != nil {
		return nil, err
	}

	return &registration, nil
}

// Update persists the registration's mutable fields and invalidates cache.
// Pending-state fields are written unconditionally because clearing them to
// NULL is how an invitation becomes a confirmed enrollment.
func (r *RegistrationPostgreSQL) Update(ctx context.Context, tx *gorm.DB, registration *models.Registration) error {
	err := r.getDB(tx).WithContext(ctx).
		Model(&models.Registration{}).
		Where("id = ?", registration.ID).
		Updates(map[string]interface{}{
			"user_id":         registration.UserID,
			"email":           registration.Email,
			"date":            registration.Date,
			"invitation":      registration.Invitation,
			"invitation_date": registration.InvitationDate,
			"teaching_group":  registration.TeachingGroup,
			"working_group":   registration.WorkingGroup,
			"updated_at":      registration.UpdatedAt,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update registration: %w", err)
	}

	cache.InvalidateRegistrationCache(ctx, r.cacheManager, registration.ID, registration.CourseID)

	return nil
}

// List retrieves registrations with filtering and pagination
func (r *RegistrationPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.RegistrationFilters) ([]*models.Registration, int64, error) {
	var registrations []*models.Registration
	var total int64

	query := r.getDB(tx).WithContext(ctx).Model(&models.Registration{})
	query = r.helpers.ApplyRegistrationFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count registrations: %w", err)
	}

	query = r.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	if err := query.Preload("Course").Find(&registrations).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list registrations: %w", err)
	}

	return registrations, total, nil
}

// ExistsForUser reports whether a registration (pending or confirmed) exists
// for the (course, user) pair, with short-TTL caching
func (r *RegistrationPostgreSQL) ExistsForUser(ctx context.Context, tx *gorm.DB, courseID uint, userID string) (bool, error) {
	cacheKey := fmt.Sprintf("registration:%d:%s", courseID, userID)
	var exists bool

	err := r.cacheManager.Exists.CacheOrExecute(ctx, cacheKey, &exists, cache.ExistsCacheConfig.TTL, func() (interface{}, error) {
		var count int64
		err := r.getDB(tx).WithContext(ctx).
			Model(&models.Registration{}).
			Where("course_id = ? AND user_id = ?", courseID, userID).
			Count(&count).Error
		if err != nil {
			return nil, fmt.Errorf("failed to check registration existence: %w", err)
		}
		result := count > 0
		return &result, nil
	})

	if err != nil {
		return false, err
	}

	return exists, nil
}
