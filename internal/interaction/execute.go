package interaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/opencode-ai/pbd/internal/models"
)

// execution tracks an in-flight playback.
type execution struct {
	actionName string
	total      int
	current    int
	stopAsked  bool
	cancel     context.CancelFunc
	done       chan struct{}
}

// ExecutionReport summarizes the most recent playback.
type ExecutionReport struct {
	ActionName string    `json:"action_name"`
	Total      int       `json:"total"`
	Completed  int       `json:"completed"`
	Stopped    bool      `json:"stopped"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

// Execute replays the current action step by step and blocks until it
// completes, fails, or is stopped. The action's steps are snapshotted before
// playback begins and are never modified.
func (m *Machine) Execute(ctx context.Context) (Result, error) {
	run, res, err := m.BeginExecute(ctx)
	if err != nil {
		return res, err
	}
	return run()
}

// BeginExecute validates the current action, snapshots its steps and moves
// the machine to EXECUTING before returning. The returned func performs the
// playback and returns the final result; it must be called exactly once.
// Commands handled after BeginExecute returns see the EXECUTING state.
func (m *Machine) BeginExecute(ctx context.Context) (func() (Result, error), Result, error) {
	cmd := models.CommandExecuteAction

	m.mu.Lock()
	defer m.mu.Unlock()

	res := Result{Command: cmd, StepIndex: -1, State: m.state}
	if err := m.busyUnless(cmd, StateIdle); err != nil {
		return nil, res, err
	}
	cur, err := m.library.Current()
	if err != nil {
		return nil, res, err
	}
	steps := cur.Steps()
	if len(steps) == 0 {
		return nil, res, ErrEmptyAction
	}
	for i, step := range steps {
		if !step.Executable() {
			return nil, res, fmt.Errorf("step %d (%s): %w", i, step.Type, ErrUnsupportedStep)
		}
	}

	execCtx, cancel := context.WithCancel(ctx)
	exec := &execution{
		actionName: cur.Name(),
		total:      len(steps),
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	m.exec = exec
	m.transitionLocked(StateExecuting)
	res.State = m.state

	m.logger.Info().
		Str("action", exec.actionName).
		Int("steps", len(steps)).
		Msg("execution started")

	run := func() (Result, error) {
		return m.finishExecute(execCtx, exec, steps, res)
	}
	return run, res, nil
}

func (m *Machine) finishExecute(ctx context.Context, exec *execution, steps []models.Step, res Result) (Result, error) {
	completed, runErr := m.runSteps(ctx, exec, steps)
	exec.cancel()

	m.mu.Lock()
	stopped := runErr == nil && completed < len(steps)
	report := &ExecutionReport{
		ActionName: exec.actionName,
		Total:      len(steps),
		Completed:  completed,
		Stopped:    stopped,
		FinishedAt: time.Now().UTC(),
	}
	if runErr != nil {
		report.Error = runErr.Error()
	}
	m.lastExecution = report
	m.exec = nil
	m.transitionLocked(StateIdle)
	res.State = m.state
	m.mu.Unlock()
	close(exec.done)

	res.Completed = completed
	res.Stopped = stopped
	switch {
	case runErr != nil:
		var hw *HardwareCommandFailure
		if errors.As(runErr, &hw) {
			res.StepIndex = hw.StepIndex
		}
		metricExecutions.WithLabelValues("failed").Inc()
		m.logger.Warn().Err(runErr).Str("action", exec.actionName).Int("completed", completed).Msg("execution failed")
		return res, runErr
	case stopped:
		res.StepIndex = completed
		res.Detail = fmt.Sprintf("stopped %s after %d of %d steps", exec.actionName, completed, len(steps))
		metricExecutions.WithLabelValues("stopped").Inc()
		m.logger.Info().Str("action", exec.actionName).Int("completed", completed).Msg("execution stopped")
	default:
		res.Detail = fmt.Sprintf("executed %s (%d steps)", exec.actionName, completed)
		metricExecutions.WithLabelValues("completed").Inc()
		m.logger.Info().Str("action", exec.actionName).Msg("execution completed")
	}
	return res, nil
}

// runSteps executes steps in order. It returns the number of steps that
// completed. A nil error with fewer completed steps than len(steps) means the
// run was canceled.
func (m *Machine) runSteps(ctx context.Context, exec *execution, steps []models.Step) (int, error) {
	for i, step := range steps {
		if ctx.Err() != nil {
			return i, nil
		}

		m.mu.Lock()
		exec.current = i
		m.mu.Unlock()

		started := time.Now()
		if err := m.runStep(ctx, i, step); err != nil {
			if ctx.Err() != nil {
				// Canceled mid-move: the capability aborted or finished the
				// in-flight move and no further steps run.
				return i, nil
			}
			return i, err
		}
		metricStepDuration.Observe(float64(time.Since(started).Milliseconds()))

		m.logger.Debug().Int("step", i).Msg("step completed")
	}
	return len(steps), nil
}

func (m *Machine) runStep(ctx context.Context, index int, step models.Step) error {
	target, _ := step.Target()

	for _, limb := range target.Limbs() {
		if err := m.ensureFrozen(ctx, index, limb); err != nil {
			return err
		}
		moveCtx := ctx
		if m.config.StepTimeout > 0 {
			var cancel context.CancelFunc
			moveCtx, cancel = context.WithTimeout(ctx, m.config.StepTimeout)
			defer cancel()
		}
		if err := m.robot.MoveArmTo(moveCtx, limb, target.Arm(limb).Pose); err != nil {
			return &HardwareCommandFailure{StepIndex: index, Limb: limb, Op: "move_arm_to", Cause: err}
		}
	}

	for _, limb := range models.Arms {
		want := step.GripperAction.For(limb)
		if want == "" {
			continue
		}
		have, err := m.robot.CaptureGripperState(ctx, limb)
		if err != nil {
			return &HardwareCommandFailure{StepIndex: index, Limb: limb, Op: "capture_gripper_state", Cause: err}
		}
		if have == want {
			continue
		}
		if err := m.robot.SetGripper(ctx, limb, want); err != nil {
			return &HardwareCommandFailure{StepIndex: index, Limb: limb, Op: "set_gripper", Cause: err}
		}
	}
	return nil
}

func (m *Machine) ensureFrozen(ctx context.Context, index int, limb models.Limb) error {
	m.mu.Lock()
	frozen := m.freeze[limb] == models.FreezeStateFrozen
	m.mu.Unlock()
	if frozen {
		return nil
	}

	if err := m.robot.SetFreeze(ctx, limb, models.FreezeStateFrozen); err != nil {
		return &HardwareCommandFailure{StepIndex: index, Limb: limb, Op: "set_freeze", Cause: err}
	}
	m.mu.Lock()
	m.freeze[limb] = models.FreezeStateFrozen
	m.mu.Unlock()
	return nil
}

// Stop cancels an in-flight execution and waits until the machine is idle
// again or ctx ends. Outside execution it is rejected with a BusyError.
func (m *Machine) Stop(ctx context.Context) (Result, error) {
	cmd := models.CommandStopExecution

	m.mu.Lock()
	res := Result{Command: cmd, StepIndex: -1, State: m.state}
	if m.state != StateExecuting || m.exec == nil {
		m.mu.Unlock()
		return res, &BusyError{Command: cmd, State: res.State}
	}
	exec := m.exec
	exec.stopAsked = true
	res.StepIndex = exec.current
	exec.cancel()
	m.mu.Unlock()

	m.logger.Info().Str("action", exec.actionName).Int("step", res.StepIndex).Msg("stop requested")

	select {
	case <-exec.done:
	case <-ctx.Done():
		res.Detail = "stop requested; execution still winding down"
		return res, nil
	}

	res.State = m.State()
	res.Detail = fmt.Sprintf("stopped %s during step %d", exec.actionName, res.StepIndex)
	return res, nil
}
