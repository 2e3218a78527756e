// Package action provides the ordered step sequences authored by demonstration.
package action

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/opencode-ai/pbd/internal/models"
)

// Action errors.
var (
	ErrNoCurrentAction = errors.New("no current action")
	ErrEmptyAction     = errors.New("action has no steps")
	ErrIndexOutOfRange = errors.New("step index out of range")
)

// IndexOutOfRangeError reports an access outside [0, count).
type IndexOutOfRangeError struct {
	Index int
	Count int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("step index %d out of range [0, %d)", e.Index, e.Count)
}

// Is matches ErrIndexOutOfRange.
func (e *IndexOutOfRangeError) Is(target error) bool {
	return target == ErrIndexOutOfRange
}

// Action is an ordered sequence of steps. Insertion order is execution order.
//
// Action is not safe for concurrent use; the interaction machine is its only
// writer.
type Action struct {
	ID        string
	Number    int
	CreatedAt time.Time

	steps []models.Step
}

// New creates an empty action with the given 1-based number.
func New(number int) *Action {
	return &Action{
		ID:        uuid.New().String(),
		Number:    number,
		CreatedAt: time.Now().UTC(),
	}
}

// Name returns the display name of the action.
func (a *Action) Name() string {
	return fmt.Sprintf("Action%d", a.Number)
}

// Append stores a copy of the step and returns its index.
func (a *Action) Append(step models.Step) int {
	a.steps = append(a.steps, step.Clone())
	return len(a.steps) - 1
}

// DeleteLast removes the final step. An empty action returns ErrEmptyAction
// and is left unchanged.
func (a *Action) DeleteLast() error {
	if len(a.steps) == 0 {
		return ErrEmptyAction
	}
	a.steps[len(a.steps)-1] = models.Step{}
	a.steps = a.steps[:len(a.steps)-1]
	return nil
}

// DeleteAll clears the sequence. It is idempotent.
func (a *Action) DeleteAll() {
	a.steps = nil
}

// Len returns the number of steps.
func (a *Action) Len() int {
	return len(a.steps)
}

// StepAt returns a copy of the step at index.
func (a *Action) StepAt(index int) (models.Step, error) {
	if index < 0 || index >= len(a.steps) {
		return models.Step{}, &IndexOutOfRangeError{Index: index, Count: len(a.steps)}
	}
	return a.steps[index].Clone(), nil
}

// Steps returns a copy of every step in order.
func (a *Action) Steps() []models.Step {
	out := make([]models.Step, len(a.steps))
	for i, s := range a.steps {
		out[i] = s.Clone()
	}
	return out
}
