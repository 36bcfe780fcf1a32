package services

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/vvandenschrieck/tlca-backend/internal/models"
	"github.com/vvandenschrieck/tlca-backend/internal/validator"
)

type exportTestEnv struct {
	*testEnv
	export ExportService
}

func newExportTestEnv(course *models.Course) *exportTestEnv {
	env := newTestEnv(course)
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	return &exportTestEnv{
		testEnv: env,
		export:  NewExportService(env.repo, logger, validator.New()),
	}
}

func (e *exportTestEnv) seedConfirmed(t *testing.T, courseID uint, userID string, teachingGroup *int) {
	t.Helper()
	now := time.Now()
	reg := &models.Registration{CourseID: courseID, UserID: &userID, Date: &now, TeachingGroup: teachingGroup}
	if err := e.repo.registrations.Create(context.Background(), nil, reg); err != nil {
		t.Fatalf("seed registration: %v", err)
	}
}

func TestExportRoster_Success(t *testing.T) {
	course := publicCourse()
	course.Groups = []models.CourseGroup{
		{CourseID: course.ID, Kind: models.GroupTeaching, Position: 0, SupervisorID: teacherID},
	}
	env := newExportTestEnv(course)
	env.seedConfirmed(t, course.ID, studentID, intPtr(0))

	export, err := env.export.ExportRoster(context.Background(), course.Code, env.user(t, coordinatorID))
	if err != nil {
		t.Fatalf("ExportRoster failed: %v", err)
	}
	if export.Filename != course.Code+"-roster.xlsx" {
		t.Errorf("unexpected filename %q", export.Filename)
	}
	if len(export.Content) == 0 {
		t.Fatal("export content is empty")
	}
	// xlsx files are zip archives
	if !bytes.HasPrefix(export.Content, []byte("PK")) {
		t.Error("export content is not a valid xlsx payload")
	}
}

func TestExportRoster_RequiresCoordinator(t *testing.T) {
	course := publicCourse()
	env := newExportTestEnv(course)
	env.seedConfirmed(t, course.ID, studentID, nil)

	_, err := env.export.ExportRoster(context.Background(), course.Code, env.user(t, teacherID))
	if _, ok := AsPermissionError(err); !ok {
		t.Errorf("expected a permission error, got %v", err)
	}
}

func TestExportRoster_UnknownCourse(t *testing.T) {
	env := newExportTestEnv(publicCourse())

	_, err := env.export.ExportRoster(context.Background(), "NO-SUCH-COURSE", env.user(t, coordinatorID))
	if !errors.Is(err, ErrCourseNotFound) {
		t.Errorf("expected COURSE_NOT_FOUND, got %v", err)
	}
}
