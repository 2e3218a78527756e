// Package events turns command outcomes into session log entries.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/opencode-ai/pbd/internal/dispatcher"
	"github.com/opencode-ai/pbd/internal/logging"
	"github.com/opencode-ai/pbd/internal/models"
	"github.com/rs/zerolog"
)

// Repository is the minimal interface needed to write events.
type Repository interface {
	Create(ctx context.Context, event *models.Event) error
}

// LogOutcome records a command outcome for a session, plus the domain event
// the command produced when it was handled.
func LogOutcome(ctx context.Context, repo Repository, sessionID string, out dispatcher.Outcome) error {
	if repo == nil {
		return fmt.Errorf("event repository is required")
	}
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}

	p := models.CommandPayload{
		CommandID: out.ID,
		Command:   out.Command,
		Raw:       out.Raw,
		State:     string(out.State),
		Detail:    out.Detail,
		Error:     out.Error,
	}
	if out.StepIndex >= 0 {
		idx := out.StepIndex
		p.StepIndex = &idx
	}
	if d := out.Duration(); d > 0 {
		p.Duration = d.String()
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal command payload: %w", err)
	}

	event := &models.Event{
		Timestamp:  out.HandledAt,
		Type:       commandEventType(out.Status),
		EntityType: models.EntityTypeSession,
		EntityID:   sessionID,
		Payload:    payload,
	}
	if out.Priority {
		event.Metadata = map[string]string{"priority": "true"}
	}
	if err := repo.Create(ctx, event); err != nil {
		return err
	}

	if domain := domainEvent(out); domain != nil {
		domain.Timestamp = out.HandledAt
		domain.EntityID = sessionID
		domain.Payload = payload
		return repo.Create(ctx, domain)
	}
	return nil
}

func commandEventType(status dispatcher.OutcomeStatus) models.EventType {
	switch status {
	case dispatcher.OutcomeHandled:
		return models.EventTypeCommandHandled
	case dispatcher.OutcomeRejected:
		return models.EventTypeCommandRejected
	case dispatcher.OutcomeUnrecognized:
		return models.EventTypeCommandUnrecognized
	default:
		return models.EventTypeCommandFailed
	}
}

// domainEvent maps an outcome onto the action, execution, or limb event it
// represents. Rejected and unrecognized commands have none.
func domainEvent(out dispatcher.Outcome) *models.Event {
	if out.Command == models.CommandExecuteAction && out.Status == dispatcher.OutcomeFailed {
		return &models.Event{Type: models.EventTypeExecutionFailed, EntityType: models.EntityTypeAction}
	}
	if out.Status != dispatcher.OutcomeHandled {
		return nil
	}

	switch out.Command {
	case models.CommandCreateNewAction, models.CommandNextAction, models.CommandPreviousAction, dispatcher.CommandSwitchAction:
		typ := models.EventTypeActionSwitched
		if out.Command == models.CommandCreateNewAction {
			typ = models.EventTypeActionCreated
		}
		return &models.Event{Type: typ, EntityType: models.EntityTypeAction}
	case models.CommandRecordObjectPose, models.CommandSavePose:
		return &models.Event{Type: models.EventTypeStepRecorded, EntityType: models.EntityTypeAction}
	case models.CommandDeleteLastStep, models.CommandDeleteAllSteps:
		return &models.Event{Type: models.EventTypeStepsDeleted, EntityType: models.EntityTypeAction}
	case models.CommandExecuteAction:
		return &models.Event{Type: models.EventTypeExecutionCompleted, EntityType: models.EntityTypeAction}
	case models.CommandStopExecution:
		return &models.Event{Type: models.EventTypeExecutionStopped, EntityType: models.EntityTypeAction}
	}
	if _, _, ok := out.Command.FreezeTarget(); ok {
		return &models.Event{Type: models.EventTypeLimbStateChanged, EntityType: models.EntityTypeLimb}
	}
	if _, _, ok := out.Command.GripperTarget(); ok {
		return &models.Event{Type: models.EventTypeGripperCommanded, EntityType: models.EntityTypeLimb}
	}
	return nil
}

// Recorder drains an outcome stream into the event log.
type Recorder struct {
	repo      Repository
	sessionID string
	logger    zerolog.Logger
}

// NewRecorder creates a recorder writing under sessionID.
func NewRecorder(repo Repository, sessionID string) *Recorder {
	return &Recorder{
		repo:      repo,
		sessionID: sessionID,
		logger:    logging.Component("events"),
	}
}

// Run records outcomes until ctx ends or the channel closes. Write failures
// are logged and do not stop the recorder.
func (r *Recorder) Run(ctx context.Context, outcomes <-chan dispatcher.Outcome) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case out, ok := <-outcomes:
			if !ok {
				return nil
			}
			if err := LogOutcome(ctx, r.repo, r.sessionID, out); err != nil {
				r.logger.Warn().Err(err).Str("command_id", out.ID).Msg("failed to record outcome")
			}
		}
	}
}
