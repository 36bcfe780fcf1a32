package models

import (
	"time"
)

type InvitationStatus string

const (
	InvitationRequested InvitationStatus = "requested"
	InvitationSent      InvitationStatus = "sent"
)

// Registration records a user's relationship to a course: a pending
// invitation (teacher-initiated) or invitation request (student-initiated),
// or a confirmed enrollment once Invitation is cleared.
//
// UserID is nil only for an invitation sent to an email address that does
// not belong to a platform account yet; Email carries the address until the
// invitee accepts. The partial unique index on (course_id, user_id) closes
// the duplicate-insert race between the existence check and the insert.
type Registration struct {
	ID       uint    `json:"id" gorm:"primaryKey"`
	CourseID uint    `json:"course_id" gorm:"not null;uniqueIndex:ux_registration_course_user,priority:1"`
	UserID   *string `json:"user_id" gorm:"size:255;uniqueIndex:ux_registration_course_user,priority:2"`
	Email    *string `json:"email" gorm:"size:255"`

	// Date is the confirmation instant; nil while the registration is pending.
	Date *time.Time `json:"date"`

	// Invitation is nil once the registration is confirmed.
	Invitation     *InvitationStatus `json:"invitation" gorm:"size:20"`
	InvitationDate *time.Time        `json:"invitation_date"`

	// Group assignments by position within the course's group lists.
	// Only a confirmed registration may carry them.
	TeachingGroup *int `json:"teaching_group"`
	WorkingGroup  *int `json:"working_group"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Course *Course `json:"course,omitempty" gorm:"foreignKey:CourseID"`

	// Populated from the identity provider, not stored here.
	User *User `json:"user,omitempty" gorm:"-"`
}

func (Registration) TableName() string {
	return "registrations"
}

// Confirmed reports whether the registration is a confirmed enrollment.
func (r *Registration) Confirmed() bool {
	return r.Invitation == nil
}

// Pending reports whether the registration awaits an invitation or an
// invitation-request acceptance.
func (r *Registration) Pending() bool {
	return r.Invitation != nil
}

// Datetime is the externally observable instant of the registration:
// the invitation instant while pending, the confirmation instant once
// confirmed.
func (r *Registration) Datetime() *time.Time {
	if r.Pending() {
		return r.InvitationDate
	}
	return r.Date
}

// HasGroup reports whether the registration carries an assignment of the
// given group kind.
func (r *Registration) HasGroup(kind GroupKind) bool {
	switch kind {
	case GroupTeaching:
		return r.TeachingGroup != nil
	case GroupWorking:
		return r.WorkingGroup != nil
	}
	return false
}
