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

// CoursePostgreSQL reads catalog-owned course snapshots. The catalog service
// writes this data; no write path exists here.
type CoursePostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewCoursePostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.CourseRepository {
	return &CoursePostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

// getDB returns the transaction DB if provided, otherwise returns the default DB
func (c *CoursePostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return c.db
}

// GetByCode retrieves a course by its public code with caching
func (c *CoursePostgreSQL) GetByCode(ctx context.Context, tx *gorm.DB, code string) (*models.Course, error) {
	cacheKey := fmt.Sprintf("code:%s", code)
	var course models.Course

	err := c.cacheManager.Course.CacheOrExecute(ctx, cacheKey, &course, cache.CourseCacheConfig.TTL, func() (interface{}, error) {
		dbCourse, err := c.fetch(ctx, tx, "code = ?", code)
		if err != nil {
			return nil, err
		}
		return dbCourse, nil
	})

	if err != nil {
		return nil, err
	}

	return &course, nil
}

// GetByID retrieves a course by ID with caching
func (c *CoursePostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Course, error) {
	cacheKey := fmt.Sprintf("id:%d", id)
	var course models.Course

	err := c.cacheManager.Course.CacheOrExecute(ctx, cacheKey, &course, cache.CourseCacheConfig.TTL, func() (interface{}, error) {
		dbCourse, err := c.fetch(ctx, tx, "id = ?", id)
		if err != nil {
			return nil, err
		}
		return dbCourse, nil
	})

	if err != nil {
		return nil, err
	}

	return &course, nil
}

// fetch loads a course with its groups and teacher IDs
func (c *CoursePostgreSQL) fetch(ctx context.Context, tx *gorm.DB, query string, arg interface{}) (*models.Course, error) {
	var course models.Course
	err := c.getDB(tx).WithContext(ctx).
		Preload("Groups", func(db *gorm.DB) *gorm.DB {
			return db.Order("course_groups.kind, course_groups.position ASC")
		}).
		Where(query, arg).
		First(&course).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get course: %w", err)
	}

	var teacherIDs []string
	err = c.getDB(tx).WithContext(ctx).
		Model(&models.CourseTeacher{}).
		Where("course_id = ?", course.ID).
		Pluck("user_id", &teacherIDs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get course teachers: %w", err)
	}
	course.TeacherIDs = teacherIDs

	return &course, nil
}

// IsTeacher reports whether the user appears in the course's teaching staff
func (c *CoursePostgreSQL) IsTeacher(ctx context.Context, tx *gorm.DB, courseID uint, userID string) (bool, error) {
	cacheKey := fmt.Sprintf("teacher:%d:%s", courseID, userID)
	var isTeacher bool

	err := c.cacheManager.Exists.CacheOrExecute(ctx, cacheKey, &isTeacher, cache.ExistsCacheConfig.TTL, func() (interface{}, error) {
		var count int64
		err := c.getDB(tx).WithContext(ctx).
			Model(&models.CourseTeacher{}).
			Where("course_id = ? AND user_id = ?", courseID, userID).
			Count(&count).Error
		if err != nil {
			return nil, fmt.Errorf("failed to check teaching staff: %w", err)
		}
		result := count > 0
		return &result, nil
	})

	if err != nil {
		return false, err
	}

	return isTeacher, nil
}
