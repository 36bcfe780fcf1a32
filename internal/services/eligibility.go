package services

import (
	"slices"
	"time"

	"github.com/vvandenschrieck/tlca-backend/internal/models"
)

// Eligibility predicates are pure functions over course and user snapshots.
// A nil user fails every identity check; none of them panic.

// IsCoordinator reports whether user administers the course.
func IsCoordinator(course *models.Course, user *models.User) bool {
	if course == nil || user == nil {
		return false
	}
	return user.ID == course.CoordinatorID
}

// IsTeacher reports whether user appears in the course's teaching staff.
// The coordinator is not implicitly a teacher.
func IsTeacher(course *models.Course, user *models.User) bool {
	if course == nil || user == nil {
		return false
	}
	return slices.Contains(course.TeacherIDs, user.ID)
}

// HasRole reports whether user carries the role.
func HasRole(user *models.User, role models.UserRole) bool {
	return user.HasRole(role)
}

// CanEnroll reports whether now falls inside the course's enrollment window.
// A missing bound is unbounded on that side.
func CanEnroll(course *models.Course, now time.Time) bool {
	if course == nil {
		return false
	}
	return withinWindow(course.EnrollStart, course.EnrollEnd, now)
}

// CanUpdateGroup reports whether now falls inside the course's group-update window.
func CanUpdateGroup(course *models.Course, now time.Time) bool {
	if course == nil {
		return false
	}
	return withinWindow(course.GroupUpdateStart, course.GroupUpdateEnd, now)
}

// withinWindow treats the bounds as inclusive.
func withinWindow(start, end *time.Time, now time.Time) bool {
	if start != nil && now.Before(*start) {
		return false
	}
	if end != nil && now.After(*end) {
		return false
	}
	return true
}
