package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/vvandenschrieck/tlca-backend/internal/models"
	"github.com/vvandenschrieck/tlca-backend/internal/repositories"
)

// SharedHelpers contains common database operations
type SharedHelpers struct {
	db *gorm.DB
}

func NewSharedHelpers(db *gorm.DB) *SharedHelpers {
	return &SharedHelpers{db: db}
}

// CountRegistrations counts registrations for a course
func (h *SharedHelpers) CountRegistrations(ctx context.Context, courseID uint) (int64, error) {
	var count int64
	err := h.db.WithContext(ctx).
		Model(&models.Registration{}).
		Where("course_id = ?", courseID).
		Count(&count).Error
	return count, err
}

// CountConfirmedRegistrations counts confirmed registrations for a course
func (h *SharedHelpers) CountConfirmedRegistrations(ctx context.Context, courseID uint) (int64, error) {
	var count int64
	err := h.db.WithContext(ctx).
		Model(&models.Registration{}).
		Where("course_id = ? AND invitation IS NULL", courseID).
		Count(&count).Error
	return count, err
}

// CountGroupMembers counts confirmed registrations assigned to a group position
func (h *SharedHelpers) CountGroupMembers(ctx context.Context, courseID uint, kind models.GroupKind, position int) (int64, error) {
	column := "teaching_group"
	if kind == models.GroupWorking {
		column = "working_group"
	}
	var count int64
	err := h.db.WithContext(ctx).
		Model(&models.Registration{}).
		Where("course_id = ? AND invitation IS NULL AND "+column+" = ?", courseID, position).
		Count(&count).Error
	return count, err
}

// ApplyRegistrationFilters applies common filters to registration queries
func (h *SharedHelpers) ApplyRegistrationFilters(query *gorm.DB, filters repositories.RegistrationFilters) *gorm.DB {
	if filters.CourseID != nil {
		query = query.Where("course_id = ?", *filters.CourseID)
	}
	if filters.UserID != nil {
		query = query.Where("user_id = ?", *filters.UserID)
	}
	if filters.Confirmed != nil {
		if *filters.Confirmed {
			query = query.Where("invitation IS NULL")
		} else {
			query = query.Where("invitation IS NOT NULL")
		}
	}
	if filters.Pending != nil {
		if *filters.Pending {
			query = query.Where("invitation IS NOT NULL")
		} else {
			query = query.Where("invitation IS NULL")
		}
	}
	if filters.TeachingGroups != nil {
		// Unassigned registrations stay visible alongside the allowed groups.
		query = query.Where("teaching_group IS NULL OR teaching_group IN ?", filters.TeachingGroups)
	}
	return query
}

// ApplyPaginationAndSort applies pagination and sorting with SQL injection protection
func (h *SharedHelpers) ApplyPaginationAndSort(query *gorm.DB, sortBy, sortOrder string, limit, offset int) *gorm.DB {
	// Whitelist allowed sort columns
	allowedSortColumns := map[string]bool{
		"created_at":      true,
		"updated_at":      true,
		"id":              true,
		"date":            true,
		"invitation_date": true,
	}

	// Validate and set sort column
	if sortBy == "" || !allowedSortColumns[sortBy] {
		sortBy = "created_at"
	}

	// Validate and set sort order
	if sortOrder != "asc" && sortOrder != "ASC" {
		sortOrder = "DESC"
	} else {
		sortOrder = "ASC"
	}

	query = query.Order(sortBy + " " + sortOrder)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	return query
}
