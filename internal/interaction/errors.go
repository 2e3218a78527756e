package interaction

import (
	"errors"
	"fmt"

	"github.com/opencode-ai/pbd/internal/action"
	"github.com/opencode-ai/pbd/internal/models"
)

// Interaction errors. Action errors are re-exported so callers only need this
// package to classify outcomes.
var (
	ErrBusy            = errors.New("command not allowed in current state")
	ErrNothingToRecord = errors.New("no arm is relaxed")
	ErrUnsupportedStep = errors.New("step type is not executable")
	ErrUnknownCommand  = errors.New("unknown command")
	ErrHardware        = errors.New("hardware command failed")
	ErrNoCurrentAction = action.ErrNoCurrentAction
	ErrEmptyAction     = action.ErrEmptyAction
	ErrIndexOutOfRange = action.ErrIndexOutOfRange
)

// BusyError reports a command that is illegal in the current machine state.
type BusyError struct {
	Command models.Command
	State   State
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("%s not allowed while %s", e.Command, e.State)
}

// Is matches ErrBusy.
func (e *BusyError) Is(target error) bool {
	return target == ErrBusy
}

// HardwareCommandFailure reports a capability call that failed during a step.
// StepIndex is -1 for direct commands outside playback.
type HardwareCommandFailure struct {
	StepIndex int
	Limb      models.Limb
	Op        string
	Cause     error
}

func (e *HardwareCommandFailure) Error() string {
	if e.StepIndex < 0 {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Limb, e.Cause)
	}
	return fmt.Sprintf("step %d: %s %s: %v", e.StepIndex, e.Op, e.Limb, e.Cause)
}

// Unwrap returns the capability error.
func (e *HardwareCommandFailure) Unwrap() error {
	return e.Cause
}

// Is matches ErrHardware.
func (e *HardwareCommandFailure) Is(target error) bool {
	return target == ErrHardware
}
