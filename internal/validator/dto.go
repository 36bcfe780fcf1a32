package validator

import (
	"github.com/vvandenschrieck/tlca-backend/internal/models"
)

// RegistrationListRequest represents the query parameters for listing registrations
type RegistrationListRequest struct {
	CourseCode *string `form:"course" json:"course" validate:"omitempty,course_code"`
	Confirmed  *bool   `form:"confirmed" json:"confirmed"`
	Limit      int     `form:"limit" json:"limit" validate:"omitempty,min=1,max=200"`
	Offset     int     `form:"offset" json:"offset" validate:"omitempty,min=0"`
	SortBy     string  `form:"sort_by" json:"sort_by" validate:"omitempty,oneof=created_at updated_at id date invitation_date"`
	SortOrder  string  `form:"sort_order" json:"sort_order" validate:"omitempty,oneof=asc desc ASC DESC"`
}

// InvitationSendRequest represents the request structure for sending an invitation
type InvitationSendRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

// GroupUpdateRequest represents the request structure for assigning a group
type GroupUpdateRequest struct {
	Kind  models.GroupKind `json:"type" validate:"required,group_kind"`
	Group int              `json:"group" validate:"min=0"`
}
