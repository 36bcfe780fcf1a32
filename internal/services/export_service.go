package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/vvandenschrieck/tlca-backend/internal/models"
	"github.com/vvandenschrieck/tlca-backend/internal/repositories"
	"github.com/vvandenschrieck/tlca-backend/internal/validator"
)

type exportService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
}

func NewExportService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator) ExportService {
	return &exportService{
		repo:      repo,
		logger:    logger,
		validator: validator,
	}
}

var rosterHeader = []string{"Name", "Email", "Registered on", "Teaching group", "Working group"}

// ExportRoster renders the confirmed registrations of a course as an xlsx
// sheet, one row per student.
func (s *exportService) ExportRoster(ctx context.Context, courseCode string, actor *models.User) (*RosterExport, error) {
	s.logger.Info("Exporting roster", "course_code", courseCode, "user_id", actor.ID)

	course, err := s.repo.Course().GetByCode(ctx, nil, courseCode)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrCourseNotFound
		}
		return nil, NewInternalError("get_course", err)
	}

	if !IsCoordinator(course, actor) {
		return nil, NewPermissionError(actor.ID, course.ID, "course", "export_roster", "not the coordinator")
	}

	confirmed := true
	registrations, _, err := s.repo.Registration().List(ctx, nil, repositories.RegistrationFilters{
		CourseID:  &course.ID,
		Confirmed: &confirmed,
		SortBy:    "date",
		SortOrder: "asc",
	})
	if err != nil {
		return nil, NewInternalError("list_registrations", err)
	}

	// Resolve names and emails in one identity-provider round trip.
	ids := make([]string, 0, len(registrations))
	for _, r := range registrations {
		if r.UserID != nil {
			ids = append(ids, *r.UserID)
		}
	}
	usersByID := make(map[string]*models.User, len(ids))
	if users, err := s.repo.User().GetByIDs(ctx, ids); err == nil {
		for _, u := range users {
			usersByID[u.ID] = u
		}
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Roster"
	f.SetSheetName(f.GetSheetName(0), sheet)

	for col, title := range rosterHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		f.SetCellValue(sheet, cell, title)
	}

	teachingGroups := course.GroupsOf(models.GroupTeaching)
	workingGroups := course.GroupsOf(models.GroupWorking)

	for i, r := range registrations {
		row := i + 2
		var name, email string
		if r.UserID != nil {
			if u := usersByID[*r.UserID]; u != nil {
				name = u.DisplayName
				email = u.Email
			}
		}
		if email == "" && r.Email != nil {
			email = *r.Email
		}

		values := []interface{}{
			name,
			email,
			formatDate(r.Date),
			groupName(teachingGroups, r.TeachingGroup),
			groupName(workingGroups, r.WorkingGroup),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			f.SetCellValue(sheet, cell, v)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, NewInternalError("render_roster", err)
	}

	return &RosterExport{
		Filename: fmt.Sprintf("%s-roster.xlsx", course.Code),
		Content:  buf.Bytes(),
	}, nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

// groupName renders a group assignment, preferring the group's name over its
// position.
func groupName(groups []models.CourseGroup, position *int) string {
	if position == nil {
		return ""
	}
	for _, g := range groups {
		if g.Position == *position {
			if g.Name != nil {
				return *g.Name
			}
			break
		}
	}
	return fmt.Sprintf("Group %d", *position+1)
}
