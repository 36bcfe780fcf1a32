package services

import (
	"errors"
	"fmt"
)

// ClientError is a guard failure: a precondition was not met and no mutation
// occurred. The Code is a stable string token shared with API callers.
type ClientError struct {
	Code    string
	Message string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewClientError(code, message string) *ClientError {
	return &ClientError{Code: code, Message: message}
}

// The error-code tokens below are a compatibility surface; callers match on
// them verbatim.
var (
	ErrCourseNotFound       = NewClientError("COURSE_NOT_FOUND", "course not found")
	ErrRegistrationNotFound = NewClientError("REGISTRATION_NOT_FOUND", "registration not found")

	ErrAlreadyRegistered          = NewClientError("ALREADY_REGISTERED", "a registration already exists for this course")
	ErrAlreadyRegisteredOrInvited = NewClientError("ALREADY_REGISTERED_OR_INVITED", "a registration or invitation already exists for this course")

	ErrRegistrationFailed                = NewClientError("REGISTRATION_FAILED", "registration is not possible for this course")
	ErrInvitationRequestFailed           = NewClientError("INVITATION_REQUEST_FAILED", "an invitation cannot be requested for this course")
	ErrInvitationSendingFailed           = NewClientError("INVITATION_SENDING_FAILED", "the invitation cannot be sent")
	ErrInvitationAcceptanceFailed        = NewClientError("INVITATION_ACCEPTANCE_FAILED", "the invitation cannot be accepted")
	ErrInvitationRequestAcceptanceFailed = NewClientError("INVITATION_REQUEST_ACCEPTANCE_FAILED", "the invitation request cannot be accepted")
	ErrGroupAssignmentFailed             = NewClientError("GROUP_ASSIGNMENT_FAILED", "the group cannot be assigned")
	ErrGroupRemovalFailed                = NewClientError("GROUP_REMOVAL_FAILED", "the group cannot be removed")
)

// PermissionError is returned when a caller lacks the rights for an operation
// on a resource whose existence it is allowed to know about.
type PermissionError struct {
	UserID     string
	ResourceID uint
	Resource   string
	Action     string
	Reason     string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %s cannot %s %s %d: %s", e.UserID, e.Action, e.Resource, e.ResourceID, e.Reason)
}

func NewPermissionError(userID string, resourceID uint, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

// InternalError wraps a persistence or downstream failure. It is reported to
// telemetry and surfaced to callers as INTERNAL_ERROR, never as a silent
// empty result.
type InternalError struct {
	Op  string
	Err error
}

const InternalErrorCode = "INTERNAL_ERROR"

func (e *InternalError) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", InternalErrorCode, e.Op, e.Err)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

func NewInternalError(op string, err error) *InternalError {
	return &InternalError{Op: op, Err: err}
}

// AsClientError extracts a ClientError if err carries one.
func AsClientError(err error) (*ClientError, bool) {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// AsPermissionError extracts a PermissionError if err carries one.
func AsPermissionError(err error) (*PermissionError, bool) {
	var pe *PermissionError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// AsInternalError extracts an InternalError if err carries one.
func AsInternalError(err error) (*InternalError, bool) {
	var ie *InternalError
	if errors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}
