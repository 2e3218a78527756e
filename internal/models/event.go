package models

import (
	"encoding/json"
	"strings"
	"time"
)

// EventType categorizes events in the system.
type EventType string

const (
	// Command events
	EventTypeCommandHandled      EventType = "command.handled"
	EventTypeCommandRejected     EventType = "command.rejected"
	EventTypeCommandUnrecognized EventType = "command.unrecognized"
	EventTypeCommandFailed       EventType = "command.failed"

	// Action events
	EventTypeActionCreated  EventType = "action.created"
	EventTypeActionSwitched EventType = "action.switched"
	EventTypeStepRecorded   EventType = "step.recorded"
	EventTypeStepsDeleted   EventType = "step.deleted"

	// Execution events
	EventTypeExecutionStarted   EventType = "execution.started"
	EventTypeExecutionCompleted EventType = "execution.completed"
	EventTypeExecutionFailed    EventType = "execution.failed"
	EventTypeExecutionStopped   EventType = "execution.stopped"

	// Robot events
	EventTypeLimbStateChanged EventType = "limb.state_changed"
	EventTypeGripperCommanded EventType = "gripper.commanded"

	// System events
	EventTypeError EventType = "error"
)

// EntityType identifies the type of entity an event relates to.
type EntityType string

const (
	EntityTypeSession EntityType = "session"
	EntityTypeAction  EntityType = "action"
	EntityTypeLimb    EntityType = "limb"
	EntityTypeSystem  EntityType = "system"
)

// Event represents an append-only log entry.
type Event struct {
	// ID is the unique identifier for the event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type categorizes the event.
	Type EventType `json:"type"`

	// EntityType identifies what kind of entity this event relates to.
	EntityType EntityType `json:"entity_type"`

	// EntityID is the ID of the related entity.
	EntityID string `json:"entity_id"`

	// Payload contains event-specific data.
	Payload json.RawMessage `json:"payload,omitempty"`

	// Metadata contains additional context.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Validate checks if the event is valid.
func (e *Event) Validate() error {
	validation := &ValidationErrors{}
	if strings.TrimSpace(string(e.Type)) == "" {
		validation.AddMessage("type", "event type is required")
	}
	if strings.TrimSpace(string(e.EntityType)) == "" {
		validation.AddMessage("entity_type", "entity_type is required")
	}
	if strings.TrimSpace(e.EntityID) == "" {
		validation.AddMessage("entity_id", "entity_id is required")
	}
	return validation.Err()
}

// CommandPayload is the payload for command.* events.
type CommandPayload struct {
	CommandID string  `json:"command_id"`
	Command   Command `json:"command"`
	Raw       string  `json:"raw,omitempty"`
	State     string  `json:"state,omitempty"`
	Detail    string  `json:"detail,omitempty"`
	Error     string  `json:"error,omitempty"`
	StepIndex *int    `json:"step_index,omitempty"`
	Duration  string  `json:"duration,omitempty"`
}

// ErrorPayload is the payload for error events.
type ErrorPayload struct {
	Error   string `json:"error"`
	Context string `json:"context,omitempty"`
}
