package scripts

import (
	"context"
	"fmt"
	"time"

	"github.com/opencode-ai/pbd/internal/dispatcher"
	"github.com/opencode-ai/pbd/internal/interaction"
)

// Sender delivers a command token and reports its outcome. A non-nil error
// means the token was not delivered or was not applied.
type Sender interface {
	Send(ctx context.Context, raw string) (dispatcher.Outcome, error)
}

// StateFunc reports the current machine state for wait steps.
type StateFunc func(ctx context.Context) (interaction.State, error)

// StepResult describes one executed script step.
type StepResult struct {
	Index   int
	Step    ScriptStep
	Outcome *dispatcher.Outcome
	Err     error
	Elapsed time.Duration
}

// Report summarizes a script run.
type Report struct {
	Script    string
	Steps     int
	Completed int
	Failed    int
	Duration  time.Duration
}

// Runner replays scripts.
type Runner struct {
	sender Sender
	state  StateFunc

	// PollInterval is how often wait steps check the machine state.
	PollInterval time.Duration
}

// NewRunner creates a runner. state may be nil when scripts have no wait
// steps.
func NewRunner(sender Sender, state StateFunc) *Runner {
	return &Runner{sender: sender, state: state, PollInterval: 50 * time.Millisecond}
}

// Run executes the script in order. It stops at the first command that is not
// applied unless the step allows it. onStep, when set, sees every step.
func (r *Runner) Run(ctx context.Context, script *Script, onStep func(StepResult)) (Report, error) {
	report := Report{Script: script.Name, Steps: len(script.Steps)}
	started := time.Now()

	for i, step := range script.Steps {
		stepStart := time.Now()
		res := StepResult{Index: i, Step: step}

		switch step.Type {
		case StepTypeCommand:
			out, err := r.sender.Send(ctx, step.Command)
			if err == nil && !out.OK() {
				err = out.Err
				if err == nil {
					err = fmt.Errorf("%s: %s", out.Status, out.Error)
				}
			}
			if out.ID != "" {
				res.Outcome = &out
			}
			res.Err = err

		case StepTypePause:
			d, err := positiveDuration(step.Duration)
			if err != nil {
				res.Err = fmt.Errorf("pause duration: %w", err)
				break
			}
			res.Err = sleep(ctx, d)

		case StepTypeWait:
			res.Err = r.wait(ctx, step)
		}

		res.Elapsed = time.Since(stepStart)
		if onStep != nil {
			onStep(res)
		}

		if res.Err != nil {
			report.Failed++
			if ctx.Err() != nil || !step.ContinueOnError {
				report.Duration = time.Since(started)
				return report, fmt.Errorf("step %d (%s): %w", i+1, describe(step), res.Err)
			}
			continue
		}
		report.Completed++
	}
	report.Duration = time.Since(started)
	return report, nil
}

func (r *Runner) wait(ctx context.Context, step ScriptStep) error {
	if r.state == nil {
		return fmt.Errorf("wait steps need a state source")
	}
	timeout := DefaultWaitTimeout
	if step.Duration != "" {
		d, err := positiveDuration(step.Duration)
		if err != nil {
			return fmt.Errorf("wait timeout: %w", err)
		}
		timeout = d
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	want := interaction.State(step.State)
	ticker := time.NewTicker(r.PollInterval)
	defer ticker.Stop()
	for {
		state, err := r.state(ctx)
		if err != nil {
			return err
		}
		if state == want {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for %s (last %s)", want, state)
		case <-ticker.C:
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func describe(step ScriptStep) string {
	switch step.Type {
	case StepTypeCommand:
		return step.Command
	case StepTypeWait:
		return "wait " + step.State
	default:
		return string(step.Type) + " " + step.Duration
	}
}

// DispatcherSender adapts an in-process dispatcher.
type DispatcherSender struct {
	Dispatcher *dispatcher.Dispatcher
}

// Send implements Sender.
func (s DispatcherSender) Send(ctx context.Context, raw string) (dispatcher.Outcome, error) {
	return s.Dispatcher.Dispatch(ctx, raw)
}
