package services

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/vvandenschrieck/tlca-backend/internal/events"
	"github.com/vvandenschrieck/tlca-backend/internal/models"
	"github.com/vvandenschrieck/tlca-backend/internal/repositories"
	"github.com/vvandenschrieck/tlca-backend/internal/validator"
)

type groupService struct {
	repo           repositories.Repository
	db             *gorm.DB
	logger         *slog.Logger
	validator      *validator.Validator
	eventPublisher events.EventPublisher
}

func NewGroupService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, publisher events.EventPublisher) GroupService {
	return &groupService{
		repo:           repo,
		db:             db,
		logger:         logger,
		validator:      validator,
		eventPublisher: publisher,
	}
}

// UpdateGroup assigns a confirmed registration to a teaching or working group
// by its position in the course's group list.
func (s *groupService) UpdateGroup(ctx context.Context, id uint, req *UpdateGroupRequest, actor *models.User) (*RegistrationResponse, error) {
	s.logger.Info("Updating group", "registration_id", id, "kind", req.Kind, "group", req.Group)

	registration, course, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	groups := course.GroupsOf(req.Kind)
	switch {
	case !IsCoordinator(course, actor),
		registration.Pending(),
		course.Archived,
		len(groups) == 0,
		req.Group < 0 || req.Group >= len(groups),
		!CanUpdateGroup(course, now):
		return nil, ErrGroupAssignmentFailed
	}

	group := req.Group
	switch req.Kind {
	case models.GroupTeaching:
		registration.TeachingGroup = &group
	case models.GroupWorking:
		registration.WorkingGroup = &group
	default:
		return nil, ErrGroupAssignmentFailed
	}
	registration.UpdatedAt = now

	if err := s.repo.Registration().Update(ctx, nil, registration); err != nil {
		return nil, s.reportInternal(ctx, "update_group", actor.ID, err)
	}

	registration.Course = course

	s.publishEvent(ctx, events.TopicRegistrations, events.NewEvent(events.TypeGroupChanged, events.GroupChangeEvent{
		RegistrationID: registration.ID,
		CourseID:       course.ID,
		GroupKind:      string(req.Kind),
		Group:          &group,
	}))

	return buildRegistrationResponse(ctx, s.repo, registration), nil
}

// RemoveGroup clears a registration's assignment of the given kind. Removing
// an assignment that is not set fails; the operation is not idempotent.
func (s *groupService) RemoveGroup(ctx context.Context, id uint, kind models.GroupKind, actor *models.User) (*RegistrationResponse, error) {
	s.logger.Info("Removing group", "registration_id", id, "kind", kind)

	registration, course, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	// An absent assignment reads as "nothing to remove here".
	if !registration.HasGroup(kind) {
		return nil, ErrRegistrationNotFound
	}

	now := time.Now()
	switch {
	case !IsCoordinator(course, actor),
		course.Archived,
		len(course.GroupsOf(kind)) == 0,
		!CanUpdateGroup(course, now):
		return nil, ErrGroupRemovalFailed
	}

	switch kind {
	case models.GroupTeaching:
		registration.TeachingGroup = nil
	case models.GroupWorking:
		registration.WorkingGroup = nil
	}
	registration.UpdatedAt = now

	if err := s.repo.Registration().Update(ctx, nil, registration); err != nil {
		return nil, s.reportInternal(ctx, "remove_group", actor.ID, err)
	}

	registration.Course = course

	s.publishEvent(ctx, events.TopicRegistrations, events.NewEvent(events.TypeGroupChanged, events.GroupChangeEvent{
		RegistrationID: registration.ID,
		CourseID:       course.ID,
		GroupKind:      string(kind),
	}))

	return buildRegistrationResponse(ctx, s.repo, registration), nil
}

// load fetches the registration and its owning course.
func (s *groupService) load(ctx context.Context, id uint) (*models.Registration, *models.Course, error) {
	registration, err := s.repo.Registration().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, nil, ErrRegistrationNotFound
		}
		return nil, nil, NewInternalError("get_registration", err)
	}

	course, err := s.repo.Course().GetByID(ctx, nil, registration.CourseID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, nil, ErrCourseNotFound
		}
		return nil, nil, NewInternalError("get_course", err)
	}

	return registration, course, nil
}

func (s *groupService) reportInternal(ctx context.Context, op, userID string, err error) error {
	s.logger.Error("Operation failed", "operation", op, "user_id", userID, "error", err)
	s.publishEvent(ctx, events.TopicErrors, events.NewEvent(events.TypeInternalError, events.InternalErrorEvent{
		Operation: op,
		Detail:    err.Error(),
		UserID:    userID,
	}))
	return NewInternalError(op, err)
}

func (s *groupService) publishEvent(ctx context.Context, topic string, event events.Event) {
	if s.eventPublisher == nil {
		return
	}
	if err := s.eventPublisher.Publish(ctx, topic, event); err != nil {
		s.logger.Error("Failed to publish event", "topic", topic, "type", event.Type, "error", err)
	}
}
