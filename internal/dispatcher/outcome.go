package dispatcher

import (
	"errors"
	"time"

	"github.com/opencode-ai/pbd/internal/interaction"
	"github.com/opencode-ai/pbd/internal/models"
)

// OutcomeStatus classifies how a command ended.
type OutcomeStatus string

const (
	// OutcomeHandled means the machine applied the command.
	OutcomeHandled OutcomeStatus = "handled"
	// OutcomeRejected means the command was illegal for the current state and
	// nothing changed.
	OutcomeRejected OutcomeStatus = "rejected"
	// OutcomeFailed means a hardware command failed.
	OutcomeFailed OutcomeStatus = "failed"
	// OutcomeUnrecognized means the token is not in the vocabulary and never
	// reached the machine.
	OutcomeUnrecognized OutcomeStatus = "unrecognized"
)

// Outcome is the result of one submitted command, reported to the boundary
// that produced it.
type Outcome struct {
	ID        string            `json:"id"`
	Raw       string            `json:"raw"`
	Command   models.Command    `json:"command"`
	Status    OutcomeStatus     `json:"status"`
	Detail    string            `json:"detail,omitempty"`
	Error     string            `json:"error,omitempty"`
	State     interaction.State `json:"state,omitempty"`
	StepIndex int               `json:"step_index"`
	Priority  bool              `json:"priority,omitempty"`

	ReceivedAt time.Time `json:"received_at"`
	HandledAt  time.Time `json:"handled_at"`

	// Err is the underlying error for in-process callers.
	Err error `json:"-"`
}

// OK reports whether the command was applied.
func (o Outcome) OK() bool {
	return o.Status == OutcomeHandled
}

// Duration is the time from submission to completion.
func (o Outcome) Duration() time.Duration {
	if o.HandledAt.IsZero() {
		return 0
	}
	return o.HandledAt.Sub(o.ReceivedAt)
}

func classify(err error) OutcomeStatus {
	switch {
	case err == nil:
		return OutcomeHandled
	case errors.Is(err, ErrUnrecognizedCommand):
		return OutcomeUnrecognized
	case errors.Is(err, interaction.ErrHardware):
		return OutcomeFailed
	case errors.Is(err, interaction.ErrBusy),
		errors.Is(err, interaction.ErrNoCurrentAction),
		errors.Is(err, interaction.ErrEmptyAction),
		errors.Is(err, interaction.ErrNothingToRecord),
		errors.Is(err, interaction.ErrIndexOutOfRange),
		errors.Is(err, interaction.ErrUnsupportedStep),
		errors.Is(err, interaction.ErrUnknownCommand),
		errors.Is(err, ErrDispatcherNotRunning):
		return OutcomeRejected
	default:
		return OutcomeFailed
	}
}
