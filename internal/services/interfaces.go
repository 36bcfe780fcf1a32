package services

import (
	"context"
	"time"

	"github.com/vvandenschrieck/tlca-backend/internal/models"
	"github.com/vvandenschrieck/tlca-backend/internal/validator"
)

// ===== REQUEST/RESPONSE DTOs =====

// Use business validator types
type ListRegistrationsRequest = validator.RegistrationListRequest
type SendInvitationRequest = validator.InvitationSendRequest
type UpdateGroupRequest = validator.GroupUpdateRequest

// RegistrationResponse is the caller-facing shape of a registration. The ID
// is a string, the Datetime is derived (invitation instant while pending,
// confirmation instant once confirmed) and the Group block is present only
// when at least one assignment is set.
type RegistrationResponse struct {
	ID         string                    `json:"id"`
	CourseCode string                    `json:"course_code"`
	UserID     *string                   `json:"user_id,omitempty"`
	Email      *string                   `json:"email,omitempty"`
	Invitation *models.InvitationStatus  `json:"invitation,omitempty"`
	Datetime   *time.Time                `json:"datetime,omitempty"`
	Group      *models.RegistrationGroup `json:"group,omitempty"`
	User       *models.User              `json:"user,omitempty"`
}

type RegistrationListResponse struct {
	Registrations []*RegistrationResponse `json:"registrations"`
	Total         int64                   `json:"total"`
	Page          int                     `json:"page"`
	Size          int                     `json:"size"`
}

// RosterExport is a rendered spreadsheet of a course's registrations.
type RosterExport struct {
	Filename string
	Content  []byte
}

// ===== SERVICE INTERFACES =====

type RegistrationService interface {
	// State machine transitions
	Register(ctx context.Context, courseCode string, actor *models.User) (*RegistrationResponse, error)
	RequestInvitation(ctx context.Context, courseCode string, actor *models.User) (*RegistrationResponse, error)
	SendInvitation(ctx context.Context, courseCode string, req *SendInvitationRequest, actor *models.User) (*RegistrationResponse, error)
	AcceptInvitation(ctx context.Context, id uint, actor *models.User) (*RegistrationResponse, error)
	AcceptInvitationRequest(ctx context.Context, id uint, actor *models.User) (*RegistrationResponse, error)

	// Visibility-scoped listing
	List(ctx context.Context, req *ListRegistrationsRequest, actor *models.User) (*RegistrationListResponse, error)
}

type GroupService interface {
	UpdateGroup(ctx context.Context, id uint, req *UpdateGroupRequest, actor *models.User) (*RegistrationResponse, error)
	RemoveGroup(ctx context.Context, id uint, kind models.GroupKind, actor *models.User) (*RegistrationResponse, error)
}

type ExportService interface {
	// ExportRoster renders the confirmed registrations of a course as a
	// spreadsheet. Coordinator only.
	ExportRoster(ctx context.Context, courseCode string, actor *models.User) (*RosterExport, error)
}

// ===== SERVICE MANAGER =====

type ServiceManager interface {
	// Core service getters
	Registration() RegistrationService
	Group() GroupService
	Export() ExportService

	// Health and lifecycle
	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
