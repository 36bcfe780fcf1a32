package models

import (
	"time"

	"gorm.io/datatypes"
)

type CourseVisibility string

const (
	VisibilityPublic     CourseVisibility = "public"
	VisibilityInviteOnly CourseVisibility = "invite-only"
	VisibilityPrivate    CourseVisibility = "private"
)

type GroupKind string

const (
	GroupTeaching GroupKind = "teaching"
	GroupWorking  GroupKind = "working"
)

// Course is owned by the course catalog. The registration service reads it
// as a snapshot and never writes it.
type Course struct {
	ID      uint    `json:"id" gorm:"primaryKey"`
	Code    string  `json:"code" gorm:"uniqueIndex;not null;size:50"`
	Name    string  `json:"name" gorm:"not null;size:200"`
	Summary *string `json:"summary" gorm:"type:text"`

	Published  bool             `json:"published" gorm:"not null;default:false;index"`
	Archived   bool             `json:"archived" gorm:"not null;default:false;index"`
	Visibility CourseVisibility `json:"visibility" gorm:"not null;default:public;size:20"`

	// Schedule bounds; a nil bound is unbounded on that side.
	EnrollStart      *time.Time `json:"enroll_start" gorm:"column:enroll_start"`
	EnrollEnd        *time.Time `json:"enroll_end" gorm:"column:enroll_end"`
	GroupUpdateStart *time.Time `json:"group_update_start" gorm:"column:group_update_start"`
	GroupUpdateEnd   *time.Time `json:"group_update_end" gorm:"column:group_update_end"`

	CoordinatorID string `json:"coordinator_id" gorm:"not null;index;size:255"`

	// Competency payload owned by the catalog, carried opaquely.
	Competencies datatypes.JSON `json:"competencies,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Groups []CourseGroup `json:"groups" gorm:"foreignKey:CourseID"`

	// Populated from the identity provider, not stored here.
	Coordinator *User    `json:"coordinator,omitempty" gorm:"-"`
	TeacherIDs  []string `json:"teacher_ids" gorm:"-"`
}

// CourseTeacher is the catalog's join table between courses and teaching staff.
type CourseTeacher struct {
	CourseID uint   `json:"course_id" gorm:"primaryKey"`
	UserID   string `json:"user_id" gorm:"primaryKey;size:255"`
}

// CourseGroup is one teaching or working group of a course, ordered by Position
// within its kind. Registrations reference groups by that position.
type CourseGroup struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	CourseID     uint      `json:"course_id" gorm:"not null;uniqueIndex:ux_course_group_position,priority:1"`
	Kind         GroupKind `json:"kind" gorm:"not null;size:10;uniqueIndex:ux_course_group_position,priority:2"`
	Position     int       `json:"position" gorm:"not null;uniqueIndex:ux_course_group_position,priority:3"`
	Name         *string   `json:"name" gorm:"size:100"`
	SupervisorID string    `json:"supervisor_id" gorm:"not null;size:255"`
	Capacity     *int      `json:"capacity"`
}

func (Course) TableName() string {
	return "courses"
}

func (CourseTeacher) TableName() string {
	return "course_teachers"
}

func (CourseGroup) TableName() string {
	return "course_groups"
}

// GroupsOf returns the course's groups of the given kind ordered by position.
// The catalog stores them ordered; the filter preserves that order.
func (c *Course) GroupsOf(kind GroupKind) []CourseGroup {
	if c == nil {
		return nil
	}
	groups := make([]CourseGroup, 0, len(c.Groups))
	for _, g := range c.Groups {
		if g.Kind == kind {
			groups = append(groups, g)
		}
	}
	return groups
}
