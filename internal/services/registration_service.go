package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/vvandenschrieck/tlca-backend/internal/events"
	"github.com/vvandenschrieck/tlca-backend/internal/models"
	"github.com/vvandenschrieck/tlca-backend/internal/repositories"
	"github.com/vvandenschrieck/tlca-backend/internal/validator"
)

type registrationService struct {
	repo           repositories.Repository
	db             *gorm.DB
	logger         *slog.Logger
	validator      *validator.Validator
	eventPublisher events.EventPublisher
}

func NewRegistrationService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, publisher events.EventPublisher) RegistrationService {
	return &registrationService{
		repo:           repo,
		db:             db,
		logger:         logger,
		validator:      validator,
		eventPublisher: publisher,
	}
}

// ===== STATE MACHINE TRANSITIONS =====

// Register enrolls the caller directly into a public course.
func (s *registrationService) Register(ctx context.Context, courseCode string, actor *models.User) (*RegistrationResponse, error) {
	s.logger.Info("Registering to course", "course_code", courseCode, "user_id", actor.ID)

	course, err := s.getCourseByCode(ctx, courseCode)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	switch {
	case course.Archived,
		!course.Published,
		course.Visibility != models.VisibilityPublic,
		IsCoordinator(course, actor),
		IsTeacher(course, actor),
		!CanEnroll(course, now):
		return nil, ErrRegistrationFailed
	}

	exists, err := s.repo.Registration().ExistsForUser(ctx, nil, course.ID, actor.ID)
	if err != nil {
		return nil, s.reportInternal(ctx, "register", actor.ID, err)
	}
	if exists {
		return nil, ErrAlreadyRegistered
	}

	userID := actor.ID
	email := actor.Email
	registration := &models.Registration{
		CourseID: course.ID,
		UserID:   &userID,
		Email:    &email,
		Date:     &now,
	}

	// The role grant comes before the insert, as on the acceptance paths.
	s.ensureStudentRole(ctx, actor.ID)

	// The unique index on (course_id, user_id) closes the race between the
	// existence check above and this insert.
	if err := s.repo.Registration().Create(ctx, nil, registration); err != nil {
		if repositories.IsDuplicateError(err) {
			return nil, ErrAlreadyRegistered
		}
		return nil, s.reportInternal(ctx, "register", actor.ID, err)
	}

	registration.Course = course

	s.publishEvent(ctx, events.TopicRegistrations, events.NewEvent(events.TypeRegistrationConfirmed, events.InvitationEvent{
		RegistrationID: registration.ID,
		CourseID:       course.ID,
		CourseCode:     course.Code,
		CourseName:     course.Name,
		UserID:         &userID,
		InitiatorID:    actor.ID,
	}))

	s.logger.Info("Registration created", "registration_id", registration.ID, "course_code", courseCode)

	return s.toResponse(ctx, registration), nil
}

// RequestInvitation records the caller's wish to join an invite-only course.
func (s *registrationService) RequestInvitation(ctx context.Context, courseCode string, actor *models.User) (*RegistrationResponse, error) {
	s.logger.Info("Requesting invitation", "course_code", courseCode, "user_id", actor.ID)

	course, err := s.getCourseByCode(ctx, courseCode)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	switch {
	case course.Archived,
		!course.Published,
		course.Visibility != models.VisibilityInviteOnly,
		IsCoordinator(course, actor),
		IsTeacher(course, actor),
		!CanEnroll(course, now):
		return nil, ErrInvitationRequestFailed
	}

	exists, err := s.repo.Registration().ExistsForUser(ctx, nil, course.ID, actor.ID)
	if err != nil {
		return nil, s.reportInternal(ctx, "request_invitation", actor.ID, err)
	}
	if exists {
		return nil, ErrAlreadyRegisteredOrInvited
	}

	userID := actor.ID
	email := actor.Email
	status := models.InvitationRequested
	registration := &models.Registration{
		CourseID:       course.ID,
		UserID:         &userID,
		Email:          &email,
		Invitation:     &status,
		InvitationDate: &now,
	}

	if err := s.repo.Registration().Create(ctx, nil, registration); err != nil {
		if repositories.IsDuplicateError(err) {
			return nil, ErrAlreadyRegisteredOrInvited
		}
		return nil, s.reportInternal(ctx, "request_invitation", actor.ID, err)
	}

	registration.Course = course

	s.publishEvent(ctx, events.TopicRegistrations, events.NewEvent(events.TypeInvitationRequested, events.InvitationEvent{
		RegistrationID: registration.ID,
		CourseID:       course.ID,
		CourseCode:     course.Code,
		CourseName:     course.Name,
		UserID:         &userID,
		InitiatorID:    actor.ID,
	}))

	return s.toResponse(ctx, registration), nil
}

// SendInvitation lets the coordinator invite a user, by platform account when
// the email matches one, by bare address otherwise.
func (s *registrationService) SendInvitation(ctx context.Context, courseCode string, req *SendInvitationRequest, actor *models.User) (*RegistrationResponse, error) {
	s.logger.Info("Sending invitation", "course_code", courseCode, "initiator_id", actor.ID)

	if errs := s.validator.GetBusinessValidator().ValidateInvitationSend(req); len(errs) > 0 {
		return nil, errs
	}

	course, err := s.getCourseByCode(ctx, courseCode)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	switch {
	case !IsCoordinator(course, actor),
		course.Archived,
		!course.Published,
		course.Visibility == models.VisibilityPublic,
		!CanEnroll(course, now):
		return nil, ErrInvitationSendingFailed
	}

	// A platform account matching the email turns this into a user-bound
	// invitation; otherwise the bare address is carried until acceptance.
	invitee, err := s.repo.User().GetByEmail(ctx, req.Email)
	if err != nil && !repositories.IsNotFoundError(err) {
		return nil, s.reportInternal(ctx, "send_invitation", actor.ID, err)
	}

	status := models.InvitationSent
	email := req.Email
	registration := &models.Registration{
		CourseID:       course.ID,
		Email:          &email,
		Invitation:     &status,
		InvitationDate: &now,
	}

	if invitee != nil {
		if IsCoordinator(course, invitee) || IsTeacher(course, invitee) {
			return nil, ErrInvitationSendingFailed
		}

		exists, err := s.repo.Registration().ExistsForUser(ctx, nil, course.ID, invitee.ID)
		if err != nil {
			return nil, s.reportInternal(ctx, "send_invitation", actor.ID, err)
		}
		if exists {
			return nil, ErrAlreadyRegisteredOrInvited
		}

		inviteeID := invitee.ID
		registration.UserID = &inviteeID
	}

	if err := s.repo.Registration().Create(ctx, nil, registration); err != nil {
		if repositories.IsDuplicateError(err) {
			return nil, ErrAlreadyRegisteredOrInvited
		}
		return nil, s.reportInternal(ctx, "send_invitation", actor.ID, err)
	}

	registration.Course = course

	// The notification service turns this into the invitation email; for an
	// unmatched address it also carries the sign-up invite.
	s.publishEvent(ctx, events.TopicNotifications, events.NewEvent(events.TypeInvitationSent, events.InvitationEvent{
		RegistrationID: registration.ID,
		CourseID:       course.ID,
		CourseCode:     course.Code,
		CourseName:     course.Name,
		UserID:         registration.UserID,
		Email:          registration.Email,
		InitiatorID:    actor.ID,
	}))

	return s.toResponse(ctx, registration), nil
}

// AcceptInvitation confirms a sent invitation on behalf of the invited user.
func (s *registrationService) AcceptInvitation(ctx context.Context, id uint, actor *models.User) (*RegistrationResponse, error) {
	s.logger.Info("Accepting invitation", "registration_id", id, "user_id", actor.ID)

	registration, err := s.getRegistration(ctx, id)
	if err != nil {
		return nil, err
	}

	if registration.Invitation == nil || *registration.Invitation != models.InvitationSent {
		return nil, ErrInvitationAcceptanceFailed
	}
	if !s.isInvitee(registration, actor) {
		return nil, ErrInvitationAcceptanceFailed
	}

	course, err := s.getCourseByID(ctx, registration.CourseID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	switch {
	case course.Archived,
		!course.Published,
		course.Visibility == models.VisibilityPublic,
		!CanEnroll(course, now):
		return nil, ErrInvitationAcceptanceFailed
	}

	// An email-only invitation binds to the accepting account here.
	userID := actor.ID
	email := actor.Email
	registration.UserID = &userID
	registration.Email = &email
	registration.Invitation = nil
	registration.InvitationDate = nil
	registration.Date = &now
	registration.UpdatedAt = now

	s.ensureStudentRole(ctx, actor.ID)

	if err := s.repo.Registration().Update(ctx, nil, registration); err != nil {
		if repositories.IsDuplicateError(err) {
			return nil, ErrAlreadyRegistered
		}
		return nil, s.reportInternal(ctx, "accept_invitation", actor.ID, err)
	}

	registration.Course = course

	s.publishEvent(ctx, events.TopicRegistrations, events.NewEvent(events.TypeRegistrationConfirmed, events.InvitationEvent{
		RegistrationID: registration.ID,
		CourseID:       course.ID,
		CourseCode:     course.Code,
		CourseName:     course.Name,
		UserID:         &userID,
		InitiatorID:    actor.ID,
	}))

	return s.toResponse(ctx, registration), nil
}

// AcceptInvitationRequest lets the coordinator confirm a student-initiated
// invitation request.
func (s *registrationService) AcceptInvitationRequest(ctx context.Context, id uint, actor *models.User) (*RegistrationResponse, error) {
	s.logger.Info("Accepting invitation request", "registration_id", id, "coordinator_id", actor.ID)

	registration, err := s.getRegistration(ctx, id)
	if err != nil {
		return nil, err
	}

	if registration.Invitation == nil || *registration.Invitation != models.InvitationRequested {
		return nil, ErrInvitationRequestAcceptanceFailed
	}

	course, err := s.getCourseByID(ctx, registration.CourseID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	switch {
	case !IsCoordinator(course, actor),
		course.Archived,
		!course.Published,
		course.Visibility != models.VisibilityInviteOnly,
		!CanEnroll(course, now):
		return nil, ErrInvitationRequestAcceptanceFailed
	}

	registration.Invitation = nil
	registration.InvitationDate = nil
	registration.Date = &now
	registration.UpdatedAt = now

	if registration.UserID != nil {
		s.ensureStudentRole(ctx, *registration.UserID)
	}

	if err := s.repo.Registration().Update(ctx, nil, registration); err != nil {
		return nil, s.reportInternal(ctx, "accept_invitation_request", actor.ID, err)
	}

	registration.Course = course

	s.publishEvent(ctx, events.TopicRegistrations, events.NewEvent(events.TypeRegistrationConfirmed, events.InvitationEvent{
		RegistrationID: registration.ID,
		CourseID:       course.ID,
		CourseCode:     course.Code,
		CourseName:     course.Name,
		UserID:         registration.UserID,
		InitiatorID:    actor.ID,
	}))

	return s.toResponse(ctx, registration), nil
}

// ===== LISTING =====

// List returns the registrations the caller may see. Without a course code
// only admins may list; with one, the caller must belong to the course staff
// and teachers are restricted to the teaching groups they supervise.
func (s *registrationService) List(ctx context.Context, req *ListRegistrationsRequest, actor *models.User) (*RegistrationListResponse, error) {
	if errs := s.validator.Validate(req); len(errs) > 0 {
		return nil, errs
	}

	filters := repositories.RegistrationFilters{
		Confirmed: req.Confirmed,
		Limit:     req.Limit,
		Offset:    req.Offset,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
	}

	if req.CourseCode == nil {
		if !HasRole(actor, models.RoleAdmin) {
			return nil, NewPermissionError(actor.ID, 0, "registration", "list", "insufficient role permissions")
		}
	} else {
		course, err := s.getCourseByCode(ctx, *req.CourseCode)
		if err != nil {
			return nil, err
		}

		coordinator := IsCoordinator(course, actor)
		teacher := IsTeacher(course, actor)
		if !coordinator && !teacher {
			// Deliberately indistinguishable from a missing course.
			return nil, ErrCourseNotFound
		}

		filters.CourseID = &course.ID

		if !coordinator {
			if positions := supervisedTeachingGroups(course, actor); positions != nil {
				filters.TeachingGroups = positions
			}
		}
	}

	registrations, total, err := s.repo.Registration().List(ctx, nil, filters)
	if err != nil {
		return nil, s.reportInternal(ctx, "list_registrations", actor.ID, err)
	}

	return s.toListResponse(ctx, registrations, total, req.Limit, req.Offset), nil
}

// supervisedTeachingGroups returns the teaching-group positions the teacher
// supervises, or nil when the course defines no teaching groups at all.
func supervisedTeachingGroups(course *models.Course, teacher *models.User) []int {
	teaching := course.GroupsOf(models.GroupTeaching)
	if len(teaching) == 0 {
		return nil
	}
	positions := make([]int, 0, len(teaching))
	for _, g := range teaching {
		if g.SupervisorID == teacher.ID {
			positions = append(positions, g.Position)
		}
	}
	return positions
}

// isInvitee reports whether actor is the target of a sent invitation, either
// by bound user ID or by the invited email address.
func (s *registrationService) isInvitee(registration *models.Registration, actor *models.User) bool {
	if actor == nil {
		return false
	}
	if registration.UserID != nil {
		return *registration.UserID == actor.ID
	}
	return registration.Email != nil && strings.EqualFold(*registration.Email, actor.Email)
}

// ===== INTERNAL HELPERS =====

func (s *registrationService) getCourseByCode(ctx context.Context, code string) (*models.Course, error) {
	course, err := s.repo.Course().GetByCode(ctx, nil, code)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrCourseNotFound
		}
		return nil, NewInternalError("get_course", err)
	}
	return course, nil
}

func (s *registrationService) getCourseByID(ctx context.Context, id uint) (*models.Course, error) {
	course, err := s.repo.Course().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrCourseNotFound
		}
		return nil, NewInternalError("get_course", err)
	}
	return course, nil
}

func (s *registrationService) getRegistration(ctx context.Context, id uint) (*models.Registration, error) {
	registration, err := s.repo.Registration().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrRegistrationNotFound
		}
		return nil, NewInternalError("get_registration", err)
	}
	return registration, nil
}

// ensureStudentRole grants the student role on confirmation. Best-effort:
// failures are reported, never propagated to the caller.
func (s *registrationService) ensureStudentRole(ctx context.Context, userID string) {
	if err := s.repo.User().EnsureRole(ctx, userID, models.RoleStudent); err != nil {
		s.logger.Error("Failed to ensure student role", "user_id", userID, "error", err)
		s.publishEvent(ctx, events.TopicErrors, events.NewEvent(events.TypeInternalError, events.InternalErrorEvent{
			Operation: "ensure_student_role",
			Detail:    err.Error(),
			UserID:    userID,
		}))
	}
}

// reportInternal sends failure telemetry and wraps err as an internal error.
func (s *registrationService) reportInternal(ctx context.Context, op, userID string, err error) error {
	s.logger.Error("Operation failed", "operation", op, "user_id", userID, "error", err)
	s.publishEvent(ctx, events.TopicErrors, events.NewEvent(events.TypeInternalError, events.InternalErrorEvent{
		Operation: op,
		Detail:    err.Error(),
		UserID:    userID,
	}))
	return NewInternalError(op, err)
}

// publishEvent is fire-and-forget; a broker failure never fails the operation.
func (s *registrationService) publishEvent(ctx context.Context, topic string, event events.Event) {
	if s.eventPublisher == nil {
		return
	}
	if err := s.eventPublisher.Publish(ctx, topic, event); err != nil {
		s.logger.Error("Failed to publish event", "topic", topic, "type", event.Type, "error", err)
	}
}

// toResponse converts a registration to its caller-facing shape, joining in
// the user details from the identity provider.
func (s *registrationService) toResponse(ctx context.Context, registration *models.Registration) *RegistrationResponse {
	return buildRegistrationResponse(ctx, s.repo, registration)
}

func (s *registrationService) toListResponse(ctx context.Context, registrations []*models.Registration, total int64, limit, offset int) *RegistrationListResponse {
	responses := make([]*RegistrationResponse, 0, len(registrations))

	// Resolve all users in one identity-provider round trip.
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
	} else {
		s.logger.Warn("Failed to resolve users for listing", "error", err)
	}

	for _, r := range registrations {
		resp := newRegistrationResponse(r)
		if r.UserID != nil {
			resp.User = usersByID[*r.UserID]
		}
		responses = append(responses, resp)
	}

	page := 1
	if limit > 0 {
		page = offset/limit + 1
	}

	return &RegistrationListResponse{
		Registrations: responses,
		Total:         total,
		Page:          page,
		Size:          len(responses),
	}
}

// buildRegistrationResponse resolves the registration's user before shaping
// the response.
func buildRegistrationResponse(ctx context.Context, repo repositories.Repository, registration *models.Registration) *RegistrationResponse {
	resp := newRegistrationResponse(registration)
	if registration.UserID != nil {
		if user, err := repo.User().GetByID(ctx, *registration.UserID); err == nil {
			resp.User = user
		}
	}
	return resp
}

// newRegistrationResponse shapes a registration without resolving the user.
func newRegistrationResponse(registration *models.Registration) *RegistrationResponse {
	resp := &RegistrationResponse{
		ID:         fmt.Sprintf("%d", registration.ID),
		UserID:     registration.UserID,
		Email:      registration.Email,
		Invitation: registration.Invitation,
		Datetime:   registration.Datetime(),
	}
	if registration.Course != nil {
		resp.CourseCode = registration.Course.Code
	}
	if registration.TeachingGroup != nil || registration.WorkingGroup != nil {
		resp.Group = &models.RegistrationGroup{
			Teaching: registration.TeachingGroup,
			Working:  registration.WorkingGroup,
		}
	}
	return resp
}
