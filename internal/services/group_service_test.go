package services

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/vvandenschrieck/tlca-backend/internal/models"
	"github.com/vvandenschrieck/tlca-backend/internal/validator"
)

func groupedCourse() *models.Course {
	c := publicCourse()
	c.Groups = []models.CourseGroup{
		{CourseID: c.ID, Kind: models.GroupTeaching, Position: 0, SupervisorID: teacherID},
		{CourseID: c.ID, Kind: models.GroupTeaching, Position: 1, SupervisorID: teacherID},
		{CourseID: c.ID, Kind: models.GroupWorking, Position: 0, SupervisorID: teacherID},
	}
	return c
}

type groupTestEnv struct {
	*testEnv
	groups GroupService
}

func newGroupTestEnv(course *models.Course) *groupTestEnv {
	env := newTestEnv(course)
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	return &groupTestEnv{
		testEnv: env,
		groups:  NewGroupService(env.repo, nil, logger, validator.New(), env.publisher),
	}
}

// seedConfirmed creates a confirmed registration for the student.
func (e *groupTestEnv) seedConfirmed(t *testing.T, courseID uint) uint {
	t.Helper()
	now := time.Now()
	userID := studentID
	reg := &models.Registration{CourseID: courseID, UserID: &userID, Date: &now}
	if err := e.repo.registrations.Create(context.Background(), nil, reg); err != nil {
		t.Fatalf("seed registration: %v", err)
	}
	return reg.ID
}

func TestUpdateGroup_Success(t *testing.T) {
	course := groupedCourse()
	env := newGroupTestEnv(course)
	ctx := context.Background()
	id := env.seedConfirmed(t, course.ID)

	resp, err := env.groups.UpdateGroup(ctx, id, &UpdateGroupRequest{Kind: models.GroupTeaching, Group: 1}, env.user(t, coordinatorID))
	if err != nil {
		t.Fatalf("UpdateGroup failed: %v", err)
	}
	if resp.Group == nil || resp.Group.Teaching == nil || *resp.Group.Teaching != 1 {
		t.Fatalf("expected teaching group 1, got %+v", resp.Group)
	}
	if resp.Group.Working != nil {
		t.Error("working group should stay unset")
	}
}

func TestUpdateGroup_Guards(t *testing.T) {
	now := time.Now()
	earlier := now.Add(-time.Hour)

	tests := []struct {
		name   string
		mutate func(c *models.Course)
		req    UpdateGroupRequest
		caller string
	}{
		{"caller not coordinator", func(c *models.Course) {}, UpdateGroupRequest{Kind: models.GroupTeaching, Group: 0}, teacherID},
		{"index out of range", func(c *models.Course) {}, UpdateGroupRequest{Kind: models.GroupTeaching, Group: 5}, coordinatorID},
		{"no working groups", func(c *models.Course) { c.Groups = c.Groups[:2] }, UpdateGroupRequest{Kind: models.GroupWorking, Group: 0}, coordinatorID},
		{"archived course", func(c *models.Course) { c.Archived = true }, UpdateGroupRequest{Kind: models.GroupTeaching, Group: 0}, coordinatorID},
		{"update window closed", func(c *models.Course) { c.GroupUpdateEnd = &earlier }, UpdateGroupRequest{Kind: models.GroupTeaching, Group: 0}, coordinatorID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			course := groupedCourse()
			tt.mutate(course)
			env := newGroupTestEnv(course)
			id := env.seedConfirmed(t, course.ID)

			_, err := env.groups.UpdateGroup(context.Background(), id, &tt.req, env.user(t, tt.caller))
			if !errors.Is(err, ErrGroupAssignmentFailed) {
				t.Errorf("expected GROUP_ASSIGNMENT_FAILED, got %v", err)
			}
		})
	}
}

func TestUpdateGroup_PendingRegistration(t *testing.T) {
	course := groupedCourse()
	course.Visibility = models.VisibilityInviteOnly
	env := newGroupTestEnv(course)
	ctx := context.Background()

	if _, err := env.service.RequestInvitation(ctx, course.Code, env.user(t, studentID)); err != nil {
		t.Fatalf("RequestInvitation failed: %v", err)
	}

	_, err := env.groups.UpdateGroup(ctx, 1, &UpdateGroupRequest{Kind: models.GroupTeaching, Group: 0}, env.user(t, coordinatorID))
	if !errors.Is(err, ErrGroupAssignmentFailed) {
		t.Errorf("a pending registration must not take a group, got %v", err)
	}
}

func TestUpdateGroup_MissingRegistration(t *testing.T) {
	env := newGroupTestEnv(groupedCourse())

	_, err := env.groups.UpdateGroup(context.Background(), 99, &UpdateGroupRequest{Kind: models.GroupTeaching, Group: 0}, env.user(t, coordinatorID))
	if !errors.Is(err, ErrRegistrationNotFound) {
		t.Errorf("expected REGISTRATION_NOT_FOUND, got %v", err)
	}
}

func TestRemoveGroup_Success(t *testing.T) {
	course := groupedCourse()
	env := newGroupTestEnv(course)
	ctx := context.Background()
	id := env.seedConfirmed(t, course.ID)
	coordinator := env.user(t, coordinatorID)

	if _, err := env.groups.UpdateGroup(ctx, id, &UpdateGroupRequest{Kind: models.GroupTeaching, Group: 0}, coordinator); err != nil {
		t.Fatalf("UpdateGroup failed: %v", err)
	}
	if _, err := env.groups.UpdateGroup(ctx, id, &UpdateGroupRequest{Kind: models.GroupWorking, Group: 0}, coordinator); err != nil {
		t.Fatalf("UpdateGroup failed: %v", err)
	}

	resp, err := env.groups.RemoveGroup(ctx, id, models.GroupTeaching, coordinator)
	if err != nil {
		t.Fatalf("RemoveGroup failed: %v", err)
	}
	if resp.Group == nil || resp.Group.Working == nil {
		t.Fatal("working assignment should survive removal of the teaching one")
	}
	if resp.Group.Teaching != nil {
		t.Error("teaching assignment should be cleared")
	}
}

func TestRemoveGroup_LastRemovalCollapsesBlock(t *testing.T) {
	course := groupedCourse()
	env := newGroupTestEnv(course)
	ctx := context.Background()
	id := env.seedConfirmed(t, course.ID)
	coordinator := env.user(t, coordinatorID)

	if _, err := env.groups.UpdateGroup(ctx, id, &UpdateGroupRequest{Kind: models.GroupTeaching, Group: 0}, coordinator); err != nil {
		t.Fatalf("UpdateGroup failed: %v", err)
	}

	resp, err := env.groups.RemoveGroup(ctx, id, models.GroupTeaching, coordinator)
	if err != nil {
		t.Fatalf("RemoveGroup failed: %v", err)
	}
	if resp.Group != nil {
		t.Errorf("removing the last assignment must collapse the group block, got %+v", resp.Group)
	}
}

func TestRemoveGroup_NotIdempotent(t *testing.T) {
	course := groupedCourse()
	env := newGroupTestEnv(course)
	ctx := context.Background()
	id := env.seedConfirmed(t, course.ID)
	coordinator := env.user(t, coordinatorID)

	if _, err := env.groups.UpdateGroup(ctx, id, &UpdateGroupRequest{Kind: models.GroupTeaching, Group: 0}, coordinator); err != nil {
		t.Fatalf("UpdateGroup failed: %v", err)
	}
	if _, err := env.groups.RemoveGroup(ctx, id, models.GroupTeaching, coordinator); err != nil {
		t.Fatalf("first RemoveGroup failed: %v", err)
	}

	_, err := env.groups.RemoveGroup(ctx, id, models.GroupTeaching, coordinator)
	if !errors.Is(err, ErrRegistrationNotFound) {
		t.Errorf("second removal must fail with REGISTRATION_NOT_FOUND, got %v", err)
	}
}

func TestRemoveGroup_Guards(t *testing.T) {
	now := time.Now()
	earlier := now.Add(-time.Hour)

	tests := []struct {
		name   string
		mutate func(c *models.Course)
		caller string
	}{
		{"caller not coordinator", func(c *models.Course) {}, teacherID},
		{"archived course", func(c *models.Course) { c.Archived = true }, coordinatorID},
		{"update window closed", func(c *models.Course) { c.GroupUpdateEnd = &earlier }, coordinatorID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			course := groupedCourse()
			env := newGroupTestEnv(course)
			ctx := context.Background()
			id := env.seedConfirmed(t, course.ID)

			if _, err := env.groups.UpdateGroup(ctx, id, &UpdateGroupRequest{Kind: models.GroupTeaching, Group: 0}, env.user(t, coordinatorID)); err != nil {
				t.Fatalf("UpdateGroup failed: %v", err)
			}
			tt.mutate(course)

			_, err := env.groups.RemoveGroup(ctx, id, models.GroupTeaching, env.user(t, tt.caller))
			if !errors.Is(err, ErrGroupRemovalFailed) {
				t.Errorf("expected GROUP_REMOVAL_FAILED, got %v", err)
			}
		})
	}
}
