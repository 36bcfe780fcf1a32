package services

import (
	"testing"
	"time"

	"github.com/vvandenschrieck/tlca-backend/internal/models"
)

func TestIdentityPredicates(t *testing.T) {
	course := &models.Course{
		ID:            1,
		CoordinatorID: "coord",
		TeacherIDs:    []string{"t1", "t2"},
	}

	tests := []struct {
		name        string
		user        *models.User
		coordinator bool
		teacher     bool
	}{
		{"coordinator", &models.User{ID: "coord"}, true, false},
		{"teacher", &models.User{ID: "t1"}, false, true},
		{"second teacher", &models.User{ID: "t2"}, false, true},
		{"outsider", &models.User{ID: "someone"}, false, false},
		{"nil user", nil, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsCoordinator(course, tt.user); got != tt.coordinator {
				t.Errorf("IsCoordinator = %v, want %v", got, tt.coordinator)
			}
			if got := IsTeacher(course, tt.user); got != tt.teacher {
				t.Errorf("IsTeacher = %v, want %v", got, tt.teacher)
			}
		})
	}

	if IsCoordinator(nil, &models.User{ID: "coord"}) {
		t.Error("IsCoordinator should be false for nil course")
	}
	if IsTeacher(nil, &models.User{ID: "t1"}) {
		t.Error("IsTeacher should be false for nil course")
	}
}

func TestHasRole(t *testing.T) {
	user := &models.User{ID: "u", Roles: []models.UserRole{models.RoleTeacher, models.RoleStudent}}

	if !HasRole(user, models.RoleTeacher) {
		t.Error("expected teacher role")
	}
	if HasRole(user, models.RoleAdmin) {
		t.Error("unexpected admin role")
	}
	if HasRole(nil, models.RoleStudent) {
		t.Error("nil user should have no roles")
	}
}

func TestEnrollmentWindow(t *testing.T) {
	now := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	before := now.Add(-time.Hour)
	after := now.Add(time.Hour)

	tests := []struct {
		name  string
		start *time.Time
		end   *time.Time
		want  bool
	}{
		{"no bounds", nil, nil, true},
		{"open window", &before, &after, true},
		{"not yet open", &after, nil, false},
		{"already closed", nil, &before, false},
		{"start bound inclusive", &now, nil, true},
		{"end bound inclusive", nil, &now, true},
		{"only start passed", &before, nil, true},
		{"only end ahead", nil, &after, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			course := &models.Course{EnrollStart: tt.start, EnrollEnd: tt.end}
			if got := CanEnroll(course, now); got != tt.want {
				t.Errorf("CanEnroll = %v, want %v", got, tt.want)
			}

			course = &models.Course{GroupUpdateStart: tt.start, GroupUpdateEnd: tt.end}
			if got := CanUpdateGroup(course, now); got != tt.want {
				t.Errorf("CanUpdateGroup = %v, want %v", got, tt.want)
			}
		})
	}

	if CanEnroll(nil, now) {
		t.Error("CanEnroll should be false for nil course")
	}
	if CanUpdateGroup(nil, now) {
		t.Error("CanUpdateGroup should be false for nil course")
	}
}
