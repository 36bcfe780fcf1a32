package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope published for every registration lifecycle change.
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Event types published by the registration workflow.
const (
	TypeInvitationSent        = "registration.invitation_sent"
	TypeInvitationRequested   = "registration.invitation_requested"
	TypeRegistrationConfirmed = "registration.confirmed"
	TypeGroupChanged          = "registration.group_changed"
	TypeInternalError         = "system.internal_error"
)

// Topics the events are routed to.
const (
	TopicRegistrations = "registrations"
	TopicNotifications = "notifications"
	TopicErrors        = "errors"
)

const (
	eventSource  = "registration-service"
	eventVersion = "1.0"
)

// NewEvent builds an envelope with a fresh ID and timestamp.
func NewEvent(eventType string, data interface{}) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    eventSource,
		Version:   eventVersion,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// InvitationEvent is the payload for invitation lifecycle events. The
// notification service turns it into the invitation email.
type InvitationEvent struct {
	RegistrationID uint    `json:"registration_id"`
	CourseID       uint    `json:"course_id"`
	CourseCode     string  `json:"course_code"`
	CourseName     string  `json:"course_name"`
	UserID         *string `json:"user_id,omitempty"`
	Email          *string `json:"email,omitempty"`
	InitiatorID    string  `json:"initiator_id"`
}

// GroupChangeEvent is the payload for group assignment changes.
type GroupChangeEvent struct {
	RegistrationID uint   `json:"registration_id"`
	CourseID       uint   `json:"course_id"`
	GroupKind      string `json:"group_kind"`
	Group          *int   `json:"group,omitempty"`
}

// InternalErrorEvent carries failure telemetry for operations that report
// INTERNAL_ERROR to the client.
type InternalErrorEvent struct {
	Operation string `json:"operation"`
	Detail    string `json:"detail"`
	UserID    string `json:"user_id,omitempty"`
}

// EventPublisher abstracts the message broker.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event Event) error
	Close() error
}

// MockEventPublisher records published events for tests.
type MockEventPublisher struct {
	mu     sync.Mutex
	events []Event
	logger *slog.Logger
}

func NewMockEventPublisher(logger *slog.Logger) *MockEventPublisher {
	return &MockEventPublisher{logger: logger}
}

func (m *MockEventPublisher) Publish(ctx context.Context, topic string, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	if m.logger != nil {
		m.logger.Debug("mock event published", "topic", topic, "type", event.Type, "id", event.ID)
	}
	return nil
}

func (m *MockEventPublisher) Close() error {
	return nil
}

// GetPublishedEvents returns a copy of all recorded events.
func (m *MockEventPublisher) GetPublishedEvents() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// ClearEvents discards all recorded events.
func (m *MockEventPublisher) ClearEvents() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}
