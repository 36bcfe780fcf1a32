package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/vvandenschrieck/tlca-backend/internal/events"
	"github.com/vvandenschrieck/tlca-backend/internal/models"
	"github.com/vvandenschrieck/tlca-backend/internal/repositories"
	"github.com/vvandenschrieck/tlca-backend/internal/validator"
)

// ===== IN-MEMORY FAKES =====

type fakeRegistrationRepo struct {
	mu        sync.Mutex
	nextID    uint
	regs      map[uint]*models.Registration
	createErr error
	updateErr error
}

func newFakeRegistrationRepo() *fakeRegistrationRepo {
	return &fakeRegistrationRepo{regs: make(map[uint]*models.Registration)}
}

func cloneRegistration(r *models.Registration) *models.Registration {
	c := *r
	return &c
}

func (f *fakeRegistrationRepo) Create(ctx context.Context, tx *gorm.DB, registration *models.Registration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return f.createErr
	}
	if registration.UserID != nil {
		for _, existing := range f.regs {
			if existing.CourseID == registration.CourseID && existing.UserID != nil && *existing.UserID == *registration.UserID {
				return fmt.Errorf("insert registration: %w", gorm.ErrDuplicatedKey)
			}
		}
	}
	f.nextID++
	registration.ID = f.nextID
	f.regs[registration.ID] = cloneRegistration(registration)
	return nil
}

func (f *fakeRegistrationRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	r, ok := f.regs[id]
	if !ok {
		return nil, fmt.Errorf("get registration: %w", gorm.ErrRecordNotFound)
	}
	return cloneRegistration(r), nil
}

func (f *fakeRegistrationRepo) Update(ctx context.Context, tx *gorm.DB, registration *models.Registration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.regs[registration.ID]; !ok {
		return fmt.Errorf("update registration: %w", gorm.ErrRecordNotFound)
	}
	if registration.UserID != nil {
		for id, existing := range f.regs {
			if id != registration.ID && existing.CourseID == registration.CourseID && existing.UserID != nil && *existing.UserID == *registration.UserID {
				return fmt.Errorf("update registration: %w", gorm.ErrDuplicatedKey)
			}
		}
	}
	f.regs[registration.ID] = cloneRegistration(registration)
	return nil
}

func (f *fakeRegistrationRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.RegistrationFilters) ([]*models.Registration, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*models.Registration
	for id := uint(1); id <= f.nextID; id++ {
		r, ok := f.regs[id]
		if !ok {
			continue
		}
		if filters.CourseID != nil && r.CourseID != *filters.CourseID {
			continue
		}
		if filters.UserID != nil && (r.UserID == nil || *r.UserID != *filters.UserID) {
			continue
		}
		if filters.Confirmed != nil && r.Confirmed() != *filters.Confirmed {
			continue
		}
		if filters.Pending != nil && r.Pending() != *filters.Pending {
			continue
		}
		if filters.TeachingGroups != nil && r.TeachingGroup != nil && !slices.Contains(filters.TeachingGroups, *r.TeachingGroup) {
			continue
		}
		out = append(out, cloneRegistration(r))
	}
	return out, int64(len(out)), nil
}

func (f *fakeRegistrationRepo) ExistsForUser(ctx context.Context, tx *gorm.DB, courseID uint, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, r := range f.regs {
		if r.CourseID == courseID && r.UserID != nil && *r.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

type fakeCourseRepo struct {
	courses map[string]*models.Course
}

func newFakeCourseRepo(courses ...*models.Course) *fakeCourseRepo {
	f := &fakeCourseRepo{courses: make(map[string]*models.Course)}
	for _, c := range courses {
		f.courses[c.Code] = c
	}
	return f
}

func (f *fakeCourseRepo) GetByCode(ctx context.Context, tx *gorm.DB, code string) (*models.Course, error) {
	c, ok := f.courses[code]
	if !ok {
		return nil, fmt.Errorf("get course: %w", gorm.ErrRecordNotFound)
	}
	return c, nil
}

func (f *fakeCourseRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Course, error) {
	for _, c := range f.courses {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, fmt.Errorf("get course: %w", gorm.ErrRecordNotFound)
}

func (f *fakeCourseRepo) IsTeacher(ctx context.Context, tx *gorm.DB, courseID uint, userID string) (bool, error) {
	for _, c := range f.courses {
		if c.ID == courseID {
			return slices.Contains(c.TeacherIDs, userID), nil
		}
	}
	return false, nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	f := &fakeUserRepo{users: make(map[string]*models.User)}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, repositories.ErrNotFound)
	}
	return u, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", email, repositories.ErrNotFound)
}

func (f *fakeUserRepo) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*models.User
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUserRepo) List(ctx context.Context, filters repositories.UserFilters) ([]*models.User, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*models.User
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, int64(len(out)), nil
}

func (f *fakeUserRepo) ExistsByID(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.users[id]
	return ok, nil
}

func (f *fakeUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := f.GetByEmail(ctx, email)
	if err != nil {
		return false, nil
	}
	return true, nil
}

func (f *fakeUserRepo) HasRole(ctx context.Context, id string, role models.UserRole) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[id].HasRole(role), nil
}

func (f *fakeUserRepo) EnsureRole(ctx context.Context, id string, role models.UserRole) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, repositories.ErrNotFound)
	}
	if !u.HasRole(role) {
		u.Roles = append(u.Roles, role)
	}
	return nil
}

type fakeRepository struct {
	registrations *fakeRegistrationRepo
	courses       *fakeCourseRepo
	users         *fakeUserRepo
}

func (f *fakeRepository) Registration() repositories.RegistrationRepository { return f.registrations }
func (f *fakeRepository) Course() repositories.CourseRepository             { return f.courses }
func (f *fakeRepository) User() repositories.UserRepository                 { return f.users }
func (f *fakeRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(f)
}
func (f *fakeRepository) Ping(ctx context.Context) error { return nil }
func (f *fakeRepository) Close() error                   { return nil }

// ===== TEST FIXTURES =====

const (
	coordinatorID = "coordinator-1"
	teacherID     = "teacher-1"
	studentID     = "student-1"
)

func testUsers() []*models.User {
	return []*models.User{
		{ID: coordinatorID, DisplayName: "Course Coordinator", Email: "coordinator@example.com", Roles: []models.UserRole{models.RoleManager}},
		{ID: teacherID, DisplayName: "Course Teacher", Email: "teacher@example.com", Roles: []models.UserRole{models.RoleTeacher}},
		{ID: studentID, DisplayName: "Some Student", Email: "student@example.com", Roles: nil},
		{ID: "admin-1", DisplayName: "Admin", Email: "admin@example.com", Roles: []models.UserRole{models.RoleAdmin}},
	}
}

func publicCourse() *models.Course {
	return &models.Course{
		ID:            1,
		Code:          "PROG-101",
		Name:          "Programming 101",
		Published:     true,
		Visibility:    models.VisibilityPublic,
		CoordinatorID: coordinatorID,
		TeacherIDs:    []string{teacherID},
	}
}

func inviteOnlyCourse() *models.Course {
	c := publicCourse()
	c.ID = 2
	c.Code = "SEM-201"
	c.Name = "Research Seminar"
	c.Visibility = models.VisibilityInviteOnly
	return c
}

type testEnv struct {
	repo      *fakeRepository
	publisher *events.MockEventPublisher
	service   RegistrationService
}

func newTestEnv(courses ...*models.Course) *testEnv {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	repo := &fakeRepository{
		registrations: newFakeRegistrationRepo(),
		courses:       newFakeCourseRepo(courses...),
		users:         newFakeUserRepo(testUsers()...),
	}
	publisher := events.NewMockEventPublisher(logger)
	return &testEnv{
		repo:      repo,
		publisher: publisher,
		service:   NewRegistrationService(repo, nil, logger, validator.New(), publisher),
	}
}

func (e *testEnv) user(t *testing.T, id string) *models.User {
	t.Helper()
	u, err := e.repo.users.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("unknown test user %s", id)
	}
	return u
}

// ===== REGISTER =====

func TestRegister_Success(t *testing.T) {
	env := newTestEnv(publicCourse())
	ctx := context.Background()
	student := env.user(t, studentID)

	before := time.Now()
	resp, err := env.service.Register(ctx, "PROG-101", student)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if resp.ID == "" {
		t.Error("response ID should not be empty")
	}
	if resp.Invitation != nil {
		t.Errorf("registration should be confirmed, got invitation %v", *resp.Invitation)
	}
	if resp.Datetime == nil || resp.Datetime.Before(before) {
		t.Error("datetime should be the confirmation instant")
	}
	if resp.Group != nil {
		t.Error("a fresh registration should carry no group block")
	}

	if !student.HasRole(models.RoleStudent) {
		t.Error("confirmation should grant the student role")
	}

	published := env.publisher.GetPublishedEvents()
	if len(published) != 1 || published[0].Type != events.TypeRegistrationConfirmed {
		t.Errorf("expected one %s event, got %v", events.TypeRegistrationConfirmed, published)
	}
}

func TestRegister_GuardFailures(t *testing.T) {
	now := time.Now()
	later := now.Add(time.Hour)
	earlier := now.Add(-time.Hour)

	tests := []struct {
		name   string
		mutate func(c *models.Course)
		caller string
	}{
		{"archived", func(c *models.Course) { c.Archived = true }, studentID},
		{"unpublished", func(c *models.Course) { c.Published = false }, studentID},
		{"invite-only visibility", func(c *models.Course) { c.Visibility = models.VisibilityInviteOnly }, studentID},
		{"private visibility", func(c *models.Course) { c.Visibility = models.VisibilityPrivate }, studentID},
		{"caller is coordinator", func(c *models.Course) {}, coordinatorID},
		{"caller is teacher", func(c *models.Course) {}, teacherID},
		{"before enrollment window", func(c *models.Course) { c.EnrollStart = &later }, studentID},
		{"after enrollment window", func(c *models.Course) { c.EnrollEnd = &earlier }, studentID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			course := publicCourse()
			tt.mutate(course)
			env := newTestEnv(course)

			_, err := env.service.Register(context.Background(), course.Code, env.user(t, tt.caller))
			if !errors.Is(err, ErrRegistrationFailed) {
				t.Errorf("expected REGISTRATION_FAILED, got %v", err)
			}
			if len(env.repo.registrations.regs) != 0 {
				t.Error("guard failure must not create a registration")
			}
		})
	}
}

func TestRegister_CourseNotFound(t *testing.T) {
	env := newTestEnv(publicCourse())

	_, err := env.service.Register(context.Background(), "NO-SUCH", env.user(t, studentID))
	if !errors.Is(err, ErrCourseNotFound) {
		t.Errorf("expected COURSE_NOT_FOUND, got %v", err)
	}
}

func TestRegister_OnlyOnce(t *testing.T) {
	env := newTestEnv(publicCourse())
	ctx := context.Background()
	student := env.user(t, studentID)

	if _, err := env.service.Register(ctx, "PROG-101", student); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}

	_, err := env.service.Register(ctx, "PROG-101", student)
	if !errors.Is(err, ErrAlreadyRegistered) {
		t.Errorf("expected ALREADY_REGISTERED, got %v", err)
	}
}

func TestRegister_EnrollmentWindow(t *testing.T) {
	now := time.Now()
	start := now.Add(-time.Hour)
	end := now.Add(time.Hour)

	course := publicCourse()
	course.EnrollStart = &start
	course.EnrollEnd = &end
	env := newTestEnv(course)

	if _, err := env.service.Register(context.Background(), course.Code, env.user(t, studentID)); err != nil {
		t.Fatalf("Register inside the window failed: %v", err)
	}
}

func TestRegister_StorageFailureSurfacesInternalError(t *testing.T) {
	env := newTestEnv(publicCourse())
	env.repo.registrations.createErr = errors.New("connection reset")

	_, err := env.service.Register(context.Background(), "PROG-101", env.user(t, studentID))
	if _, ok := AsInternalError(err); !ok {
		t.Fatalf("expected InternalError, got %v", err)
	}

	// Failure telemetry goes to the errors topic.
	published := env.publisher.GetPublishedEvents()
	if len(published) != 1 || published[0].Type != events.TypeInternalError {
		t.Errorf("expected one %s event, got %v", events.TypeInternalError, published)
	}
}

func TestRegister_RoleGrantedBeforePersistence(t *testing.T) {
	env := newTestEnv(publicCourse())
	env.repo.registrations.createErr = errors.New("connection reset")

	_, err := env.service.Register(context.Background(), "PROG-101", env.user(t, studentID))
	if _, ok := AsInternalError(err); !ok {
		t.Fatalf("expected InternalError, got %v", err)
	}

	// The grant is applied before the insert, so it survives a storage failure.
	if !env.user(t, studentID).HasRole(models.RoleStudent) {
		t.Error("student role should be granted before the registration is persisted")
	}
}

func TestRegister_DuplicateInsertMapsToAlreadyRegistered(t *testing.T) {
	env := newTestEnv(publicCourse())
	env.repo.registrations.createErr = fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey)

	_, err := env.service.Register(context.Background(), "PROG-101", env.user(t, studentID))
	if !errors.Is(err, ErrAlreadyRegistered) {
		t.Errorf("expected ALREADY_REGISTERED on duplicate key, got %v", err)
	}
}

// ===== INVITATION REQUEST FLOW =====

func TestInvitationRequest_FullFlow(t *testing.T) {
	env := newTestEnv(inviteOnlyCourse())
	ctx := context.Background()
	student := env.user(t, studentID)
	coordinator := env.user(t, coordinatorID)

	resp, err := env.service.RequestInvitation(ctx, "SEM-201", student)
	if err != nil {
		t.Fatalf("RequestInvitation failed: %v", err)
	}
	if resp.Invitation == nil || *resp.Invitation != models.InvitationRequested {
		t.Fatalf("expected requested invitation, got %v", resp.Invitation)
	}
	if resp.Datetime == nil {
		t.Fatal("pending registration should expose the invitation instant")
	}

	stored := env.repo.registrations.regs[1]
	before := time.Now()
	accepted, err := env.service.AcceptInvitationRequest(ctx, stored.ID, coordinator)
	if err != nil {
		t.Fatalf("AcceptInvitationRequest failed: %v", err)
	}
	if accepted.Invitation != nil {
		t.Error("accepted registration should have no pending invitation")
	}
	if accepted.Datetime == nil || accepted.Datetime.Before(before) {
		t.Error("datetime should switch to the confirmation instant")
	}
	if !student.HasRole(models.RoleStudent) {
		t.Error("acceptance should grant the student role")
	}
}

func TestRequestInvitation_PublicCourseRejected(t *testing.T) {
	env := newTestEnv(publicCourse())

	_, err := env.service.RequestInvitation(context.Background(), "PROG-101", env.user(t, studentID))
	if !errors.Is(err, ErrInvitationRequestFailed) {
		t.Errorf("expected INVITATION_REQUEST_FAILED, got %v", err)
	}
}

func TestRequestInvitation_Twice(t *testing.T) {
	env := newTestEnv(inviteOnlyCourse())
	ctx := context.Background()
	student := env.user(t, studentID)

	if _, err := env.service.RequestInvitation(ctx, "SEM-201", student); err != nil {
		t.Fatalf("first RequestInvitation failed: %v", err)
	}

	_, err := env.service.RequestInvitation(ctx, "SEM-201", student)
	if !errors.Is(err, ErrAlreadyRegisteredOrInvited) {
		t.Errorf("expected ALREADY_REGISTERED_OR_INVITED, got %v", err)
	}
}

func TestAcceptInvitationRequest_RequiresCoordinator(t *testing.T) {
	env := newTestEnv(inviteOnlyCourse())
	ctx := context.Background()

	if _, err := env.service.RequestInvitation(ctx, "SEM-201", env.user(t, studentID)); err != nil {
		t.Fatalf("RequestInvitation failed: %v", err)
	}

	_, err := env.service.AcceptInvitationRequest(ctx, 1, env.user(t, teacherID))
	if !errors.Is(err, ErrInvitationRequestAcceptanceFailed) {
		t.Errorf("expected INVITATION_REQUEST_ACCEPTANCE_FAILED, got %v", err)
	}
}

// Coordinator authority comes from the course snapshot, not from the
// caller's role set.
func TestAcceptInvitationRequest_CoordinatorNeedsNoStaffRole(t *testing.T) {
	env := newTestEnv(inviteOnlyCourse())
	ctx := context.Background()

	if _, err := env.service.RequestInvitation(ctx, "SEM-201", env.user(t, studentID)); err != nil {
		t.Fatalf("RequestInvitation failed: %v", err)
	}

	coordinator := env.user(t, coordinatorID)
	coordinator.Roles = nil

	accepted, err := env.service.AcceptInvitationRequest(ctx, 1, coordinator)
	if err != nil {
		t.Fatalf("AcceptInvitationRequest failed for a role-less coordinator: %v", err)
	}
	if accepted.Invitation != nil {
		t.Error("registration should be confirmed")
	}
}

// ===== SEND / ACCEPT INVITATION =====

func TestSendInvitation_ToPlatformUser(t *testing.T) {
	env := newTestEnv(inviteOnlyCourse())
	ctx := context.Background()

	resp, err := env.service.SendInvitation(ctx, "SEM-201", &SendInvitationRequest{Email: "student@example.com"}, env.user(t, coordinatorID))
	if err != nil {
		t.Fatalf("SendInvitation failed: %v", err)
	}
	if resp.Invitation == nil || *resp.Invitation != models.InvitationSent {
		t.Fatalf("expected sent invitation, got %v", resp.Invitation)
	}
	if resp.UserID == nil || *resp.UserID != studentID {
		t.Error("invitation should bind to the matching platform account")
	}

	published := env.publisher.GetPublishedEvents()
	if len(published) != 1 || published[0].Type != events.TypeInvitationSent {
		t.Fatalf("expected one %s event, got %v", events.TypeInvitationSent, published)
	}
}

func TestSendInvitation_ToUnknownEmail(t *testing.T) {
	env := newTestEnv(inviteOnlyCourse())
	ctx := context.Background()

	resp, err := env.service.SendInvitation(ctx, "SEM-201", &SendInvitationRequest{Email: "newcomer@example.com"}, env.user(t, coordinatorID))
	if err != nil {
		t.Fatalf("SendInvitation failed: %v", err)
	}
	if resp.UserID != nil {
		t.Error("an unmatched email must not bind a user")
	}
	if resp.Email == nil || *resp.Email != "newcomer@example.com" {
		t.Error("the bare email should be carried on the registration")
	}
}

func TestSendInvitation_Guards(t *testing.T) {
	tests := []struct {
		name   string
		email  string
		caller string
	}{
		{"caller not coordinator", "newcomer@example.com", teacherID},
		{"invitee is teacher", "teacher@example.com", coordinatorID},
		{"invitee is coordinator", "coordinator@example.com", coordinatorID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(inviteOnlyCourse())

			_, err := env.service.SendInvitation(context.Background(), "SEM-201", &SendInvitationRequest{Email: tt.email}, env.user(t, tt.caller))
			if !errors.Is(err, ErrInvitationSendingFailed) {
				t.Errorf("expected INVITATION_SENDING_FAILED, got %v", err)
			}
		})
	}
}

func TestSendInvitation_InvalidEmail(t *testing.T) {
	env := newTestEnv(inviteOnlyCourse())

	_, err := env.service.SendInvitation(context.Background(), "SEM-201", &SendInvitationRequest{Email: "not-an-email"}, env.user(t, coordinatorID))
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected validation errors, got %v", err)
	}
}

func TestAcceptInvitation_ByInvitedUser(t *testing.T) {
	env := newTestEnv(inviteOnlyCourse())
	ctx := context.Background()
	student := env.user(t, studentID)

	if _, err := env.service.SendInvitation(ctx, "SEM-201", &SendInvitationRequest{Email: "student@example.com"}, env.user(t, coordinatorID)); err != nil {
		t.Fatalf("SendInvitation failed: %v", err)
	}

	resp, err := env.service.AcceptInvitation(ctx, 1, student)
	if err != nil {
		t.Fatalf("AcceptInvitation failed: %v", err)
	}
	if resp.Invitation != nil {
		t.Error("accepted invitation should clear the pending state")
	}
	if !student.HasRole(models.RoleStudent) {
		t.Error("acceptance should grant the student role")
	}
}

func TestAcceptInvitation_EmailOnlyBindsAccount(t *testing.T) {
	env := newTestEnv(inviteOnlyCourse())
	ctx := context.Background()

	if _, err := env.service.SendInvitation(ctx, "SEM-201", &SendInvitationRequest{Email: "newcomer@example.com"}, env.user(t, coordinatorID)); err != nil {
		t.Fatalf("SendInvitation failed: %v", err)
	}

	newcomer := &models.User{ID: "newcomer-1", DisplayName: "New Comer", Email: "newcomer@example.com"}
	env.repo.users.users[newcomer.ID] = newcomer

	resp, err := env.service.AcceptInvitation(ctx, 1, newcomer)
	if err != nil {
		t.Fatalf("AcceptInvitation failed: %v", err)
	}
	if resp.UserID == nil || *resp.UserID != newcomer.ID {
		t.Error("acceptance should bind the registration to the accepting account")
	}
}

func TestAcceptInvitation_WrongUser(t *testing.T) {
	env := newTestEnv(inviteOnlyCourse())
	ctx := context.Background()

	if _, err := env.service.SendInvitation(ctx, "SEM-201", &SendInvitationRequest{Email: "student@example.com"}, env.user(t, coordinatorID)); err != nil {
		t.Fatalf("SendInvitation failed: %v", err)
	}

	outsider := &models.User{ID: "outsider-1", Email: "outsider@example.com"}
	_, err := env.service.AcceptInvitation(ctx, 1, outsider)
	if !errors.Is(err, ErrInvitationAcceptanceFailed) {
		t.Errorf("expected INVITATION_ACCEPTANCE_FAILED, got %v", err)
	}
}

func TestAcceptInvitation_MissingRegistration(t *testing.T) {
	env := newTestEnv(inviteOnlyCourse())

	_, err := env.service.AcceptInvitation(context.Background(), 42, env.user(t, studentID))
	if !errors.Is(err, ErrRegistrationNotFound) {
		t.Errorf("expected REGISTRATION_NOT_FOUND, got %v", err)
	}
}

// ===== ARCHIVED COURSES =====

func TestArchivedCourseBlocksAllTransitions(t *testing.T) {
	ctx := context.Background()

	t.Run("register", func(t *testing.T) {
		course := publicCourse()
		course.Archived = true
		env := newTestEnv(course)
		if _, err := env.service.Register(ctx, course.Code, env.user(t, studentID)); !errors.Is(err, ErrRegistrationFailed) {
			t.Errorf("expected REGISTRATION_FAILED, got %v", err)
		}
	})

	t.Run("request invitation", func(t *testing.T) {
		course := inviteOnlyCourse()
		course.Archived = true
		env := newTestEnv(course)
		if _, err := env.service.RequestInvitation(ctx, course.Code, env.user(t, studentID)); !errors.Is(err, ErrInvitationRequestFailed) {
			t.Errorf("expected INVITATION_REQUEST_FAILED, got %v", err)
		}
	})

	t.Run("send invitation", func(t *testing.T) {
		course := inviteOnlyCourse()
		course.Archived = true
		env := newTestEnv(course)
		_, err := env.service.SendInvitation(ctx, course.Code, &SendInvitationRequest{Email: "student@example.com"}, env.user(t, coordinatorID))
		if !errors.Is(err, ErrInvitationSendingFailed) {
			t.Errorf("expected INVITATION_SENDING_FAILED, got %v", err)
		}
	})

	t.Run("accept invitation", func(t *testing.T) {
		course := inviteOnlyCourse()
		env := newTestEnv(course)
		if _, err := env.service.SendInvitation(ctx, course.Code, &SendInvitationRequest{Email: "student@example.com"}, env.user(t, coordinatorID)); err != nil {
			t.Fatalf("SendInvitation failed: %v", err)
		}
		course.Archived = true
		if _, err := env.service.AcceptInvitation(ctx, 1, env.user(t, studentID)); !errors.Is(err, ErrInvitationAcceptanceFailed) {
			t.Errorf("expected INVITATION_ACCEPTANCE_FAILED, got %v", err)
		}
	})

	t.Run("accept invitation request", func(t *testing.T) {
		course := inviteOnlyCourse()
		env := newTestEnv(course)
		if _, err := env.service.RequestInvitation(ctx, course.Code, env.user(t, studentID)); err != nil {
			t.Fatalf("RequestInvitation failed: %v", err)
		}
		course.Archived = true
		if _, err := env.service.AcceptInvitationRequest(ctx, 1, env.user(t, coordinatorID)); !errors.Is(err, ErrInvitationRequestAcceptanceFailed) {
			t.Errorf("expected INVITATION_REQUEST_ACCEPTANCE_FAILED, got %v", err)
		}
	})
}

// ===== LISTING =====

func TestList_WithoutCourseRequiresAdmin(t *testing.T) {
	env := newTestEnv(publicCourse())
	ctx := context.Background()

	if _, err := env.service.List(ctx, &ListRegistrationsRequest{}, env.user(t, "admin-1")); err != nil {
		t.Fatalf("admin listing failed: %v", err)
	}

	_, err := env.service.List(ctx, &ListRegistrationsRequest{}, env.user(t, studentID))
	if _, ok := AsPermissionError(err); !ok {
		t.Errorf("expected PermissionError, got %v", err)
	}
}

func TestList_UnauthorizedCallerSeesCourseNotFound(t *testing.T) {
	env := newTestEnv(publicCourse())
	code := "PROG-101"

	_, err := env.service.List(context.Background(), &ListRegistrationsRequest{CourseCode: &code}, env.user(t, studentID))
	if !errors.Is(err, ErrCourseNotFound) {
		t.Errorf("authorization failure must read as COURSE_NOT_FOUND, got %v", err)
	}
}

func TestList_ConfirmedFilter(t *testing.T) {
	env := newTestEnv(publicCourse(), inviteOnlyCourse())
	ctx := context.Background()

	if _, err := env.service.Register(ctx, "PROG-101", env.user(t, studentID)); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	other := &models.User{ID: "student-2", Email: "student2@example.com"}
	env.repo.users.users[other.ID] = other
	if _, err := env.service.RequestInvitation(ctx, "SEM-201", other); err != nil {
		t.Fatalf("RequestInvitation failed: %v", err)
	}

	confirmed := true
	resp, err := env.service.List(ctx, &ListRegistrationsRequest{Confirmed: &confirmed}, env.user(t, "admin-1"))
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(resp.Registrations) != 1 {
		t.Fatalf("expected 1 confirmed registration, got %d", len(resp.Registrations))
	}
	if resp.Registrations[0].Invitation != nil {
		t.Error("confirmed listing must not contain pending registrations")
	}
}

func TestList_TeacherRestrictedToSupervisedGroups(t *testing.T) {
	course := publicCourse()
	course.Groups = []models.CourseGroup{
		{CourseID: course.ID, Kind: models.GroupTeaching, Position: 0, SupervisorID: "other-teacher"},
		{CourseID: course.ID, Kind: models.GroupTeaching, Position: 1, SupervisorID: "other-teacher"},
		{CourseID: course.ID, Kind: models.GroupTeaching, Position: 2, SupervisorID: teacherID},
	}
	env := newTestEnv(course)
	ctx := context.Background()

	// Three confirmed registrations: group 0, group 2, and unassigned.
	now := time.Now()
	for i, group := range []*int{intPtr(0), intPtr(2), nil} {
		id := fmt.Sprintf("member-%d", i)
		env.repo.users.users[id] = &models.User{ID: id, Email: id + "@example.com"}
		userID := id
		reg := &models.Registration{CourseID: course.ID, UserID: &userID, Date: &now, TeachingGroup: group}
		if err := env.repo.registrations.Create(ctx, nil, reg); err != nil {
			t.Fatalf("seed registration: %v", err)
		}
	}

	code := course.Code
	resp, err := env.service.List(ctx, &ListRegistrationsRequest{CourseCode: &code}, env.user(t, teacherID))
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(resp.Registrations) != 2 {
		t.Fatalf("expected 2 visible registrations, got %d", len(resp.Registrations))
	}
	for _, r := range resp.Registrations {
		if r.Group != nil && r.Group.Teaching != nil && *r.Group.Teaching != 2 {
			t.Errorf("teacher must only see supervised group 2 or unassigned, saw group %d", *r.Group.Teaching)
		}
	}

	// The coordinator sees everything.
	resp, err = env.service.List(ctx, &ListRegistrationsRequest{CourseCode: &code}, env.user(t, coordinatorID))
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(resp.Registrations) != 3 {
		t.Errorf("coordinator should see all 3 registrations, got %d", len(resp.Registrations))
	}
}

func intPtr(i int) *int { return &i }
