// Package interaction provides the action-authoring and playback state machine.
package interaction

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opencode-ai/pbd/internal/action"
	"github.com/opencode-ai/pbd/internal/logging"
	"github.com/opencode-ai/pbd/internal/models"
	"github.com/opencode-ai/pbd/internal/robot"
	"github.com/rs/zerolog"
)

// State is the mode of the interaction machine. Limb freeze flags are tracked
// separately and are not exclusive with it.
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StateExecuting State = "executing"
)

// Result describes a handled command.
type Result struct {
	Command models.Command
	Detail  string

	// State is the machine state after handling.
	State State

	// StepIndex is the recorded step for record commands, or the step that was
	// in flight when execution ended. -1 when not applicable.
	StepIndex int

	// Completed is the number of steps executed by an execute command.
	Completed int

	// Stopped is set when execution ended because of a stop request.
	Stopped bool
}

// Config contains machine configuration.
type Config struct {
	// StepTimeout bounds each arm move during playback. Zero disables it.
	StepTimeout time.Duration
}

// Machine owns the action library, the limb freeze flags and the machine
// state. Every mutation happens under mu; playback releases mu while waiting
// on the robot so stop requests and status reads stay responsive.
type Machine struct {
	config  Config
	robot   robot.Capability
	logger  zerolog.Logger
	library *action.Library

	mu            sync.Mutex
	state         State
	freeze        map[models.Limb]models.FreezeState
	recordStarted time.Time
	exec          *execution
	lastExecution *ExecutionReport
}

// Option configures a Machine.
type Option func(*Machine)

// WithLogger overrides the component logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Machine) {
		m.logger = logger
	}
}

// WithConfig sets machine configuration.
func WithConfig(config Config) Option {
	return func(m *Machine) {
		m.config = config
	}
}

// NewMachine creates an idle machine with every limb relaxed and no actions.
func NewMachine(capability robot.Capability, opts ...Option) *Machine {
	m := &Machine{
		robot:   capability,
		logger:  logging.Component("interaction"),
		library: action.NewLibrary(),
		state:   StateIdle,
		freeze:  make(map[models.Limb]models.FreezeState, len(models.Limbs)),
	}
	for _, limb := range models.Limbs {
		m.freeze[limb] = models.FreezeStateRelaxed
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current machine state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Freeze returns the freeze state of a limb.
func (m *Machine) Freeze(limb models.Limb) models.FreezeState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.freeze[limb]
}

// Handle applies a command. Execute blocks until playback ends; StopExecution
// is routed to Stop. Every failure is returned as an error and leaves the
// action and freeze flags as they were.
func (m *Machine) Handle(ctx context.Context, cmd models.Command) (Result, error) {
	switch cmd {
	case models.CommandExecuteAction:
		return m.Execute(ctx)
	case models.CommandStopExecution:
		return m.Stop(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	res := Result{Command: cmd, StepIndex: -1}
	var err error

	switch cmd {
	case models.CommandRelaxRightArm, models.CommandRelaxLeftArm,
		models.CommandFreezeRightArm, models.CommandFreezeLeftArm,
		models.CommandRelaxHead, models.CommandFreezeHead:
		err = m.setFreezeLocked(ctx, cmd, &res)

	case models.CommandOpenRightHand, models.CommandOpenLeftHand,
		models.CommandCloseRightHand, models.CommandCloseLeftHand:
		err = m.setGripperLocked(ctx, cmd, &res)

	case models.CommandCreateNewAction:
		err = m.createActionLocked(cmd, &res)

	case models.CommandRecordObjectPose, models.CommandSavePose:
		err = m.recordStepLocked(ctx, cmd, &res)

	case models.CommandDeleteLastStep, models.CommandDeleteAllSteps:
		err = m.deleteStepsLocked(cmd, &res)

	case models.CommandNextAction, models.CommandPreviousAction:
		err = m.navigateLocked(cmd, &res)

	case models.CommandStartRecordingMotion, models.CommandStopRecordingMotion:
		err = m.recordMotionLocked(cmd, &res)

	case models.CommandTestMicrophone:
		res.Detail = "microphone ok"

	default:
		err = fmt.Errorf("%w: %q", ErrUnknownCommand, cmd)
	}

	res.State = m.state
	if err != nil {
		m.logger.Debug().Err(err).Str("command", string(cmd)).Str("state", string(m.state)).Msg("command rejected")
		return res, err
	}
	m.logger.Info().Str("command", string(cmd)).Str("detail", res.Detail).Msg("command handled")
	return res, nil
}

func (m *Machine) busyUnless(cmd models.Command, allowed ...State) error {
	for _, s := range allowed {
		if m.state == s {
			return nil
		}
	}
	return &BusyError{Command: cmd, State: m.state}
}

func (m *Machine) transitionLocked(to State) {
	if m.state == to {
		return
	}
	metricStateTransitions.WithLabelValues(string(m.state), string(to)).Inc()
	m.logger.Debug().Str("from", string(m.state)).Str("to", string(to)).Msg("state transition")
	m.state = to
}

func (m *Machine) setFreezeLocked(ctx context.Context, cmd models.Command, res *Result) error {
	if err := m.busyUnless(cmd, StateIdle, StateRecording); err != nil {
		return err
	}
	limb, mode, _ := cmd.FreezeTarget()
	if err := m.robot.SetFreeze(ctx, limb, mode); err != nil {
		return &HardwareCommandFailure{StepIndex: -1, Limb: limb, Op: "set_freeze", Cause: err}
	}
	m.freeze[limb] = mode
	res.Detail = fmt.Sprintf("%s %s", limb, mode)
	return nil
}

func (m *Machine) setGripperLocked(ctx context.Context, cmd models.Command, res *Result) error {
	if err := m.busyUnless(cmd, StateIdle, StateRecording); err != nil {
		return err
	}
	limb, state, _ := cmd.GripperTarget()
	if err := m.robot.SetGripper(ctx, limb, state); err != nil {
		return &HardwareCommandFailure{StepIndex: -1, Limb: limb, Op: "set_gripper", Cause: err}
	}
	res.Detail = fmt.Sprintf("%s gripper %s", limb, state)
	return nil
}

// createActionLocked makes a fresh action current. An existing empty current
// action is kept instead of piling up empty actions.
func (m *Machine) createActionLocked(cmd models.Command, res *Result) error {
	if err := m.busyUnless(cmd, StateIdle, StateRecording); err != nil {
		return err
	}
	m.transitionLocked(StateIdle)

	if cur, err := m.library.Current(); err == nil && cur.Len() == 0 {
		res.Detail = fmt.Sprintf("%s is empty and remains current", cur.Name())
		return nil
	}
	a := m.library.Create()
	res.Detail = fmt.Sprintf("created %s", a.Name())
	return nil
}

func (m *Machine) relaxedArmsLocked() []models.Limb {
	arms := make([]models.Limb, 0, len(models.Arms))
	for _, limb := range models.Arms {
		if m.freeze[limb] == models.FreezeStateRelaxed {
			arms = append(arms, limb)
		}
	}
	return arms
}

func (m *Machine) recordStepLocked(ctx context.Context, cmd models.Command, res *Result) error {
	if err := m.busyUnless(cmd, StateIdle); err != nil {
		return err
	}
	cur, err := m.library.Current()
	if err != nil {
		return err
	}
	arms := m.relaxedArmsLocked()
	if len(arms) == 0 {
		return ErrNothingToRecord
	}

	snap, err := robot.Capture(ctx, m.robot, arms)
	if err != nil {
		return fmt.Errorf("capture step: %w", err)
	}
	idx := cur.Append(snap.Step())
	metricStepsRecorded.Inc()

	res.StepIndex = idx
	res.Detail = fmt.Sprintf("recorded step %d of %s", idx+1, cur.Name())
	return nil
}

func (m *Machine) deleteStepsLocked(cmd models.Command, res *Result) error {
	if err := m.busyUnless(cmd, StateIdle); err != nil {
		return err
	}
	cur, err := m.library.Current()
	if err != nil {
		return err
	}

	if cmd == models.CommandDeleteAllSteps {
		cur.DeleteAll()
		res.Detail = fmt.Sprintf("cleared %s", cur.Name())
		return nil
	}
	if err := cur.DeleteLast(); err != nil {
		return err
	}
	res.Detail = fmt.Sprintf("%s has %d steps", cur.Name(), cur.Len())
	return nil
}

func (m *Machine) navigateLocked(cmd models.Command, res *Result) error {
	if err := m.busyUnless(cmd, StateIdle); err != nil {
		return err
	}

	var moved bool
	var err error
	if cmd == models.CommandNextAction {
		moved, err = m.library.Next()
	} else {
		moved, err = m.library.Previous()
	}
	if err != nil {
		return err
	}

	cur, _ := m.library.Current()
	if moved {
		res.Detail = fmt.Sprintf("switched to %s", cur.Name())
	} else {
		res.Detail = fmt.Sprintf("already at %s", cur.Name())
	}
	return nil
}

// recordMotionLocked toggles the reserved RECORDING state. Trajectory steps
// cannot be executed, so nothing captured here is added to the action.
func (m *Machine) recordMotionLocked(cmd models.Command, res *Result) error {
	if cmd == models.CommandStartRecordingMotion {
		if err := m.busyUnless(cmd, StateIdle); err != nil {
			return err
		}
		m.recordStarted = time.Now()
		m.transitionLocked(StateRecording)
		res.Detail = "motion recording started"
		return nil
	}

	if err := m.busyUnless(cmd, StateRecording); err != nil {
		return err
	}
	elapsed := time.Since(m.recordStarted)
	m.recordStarted = time.Time{}
	m.transitionLocked(StateIdle)
	res.Detail = fmt.Sprintf("motion recording stopped after %s; trajectories are not added to actions", elapsed.Round(time.Millisecond))
	return nil
}

// SwitchAction makes the action with the given 1-based number current.
func (m *Machine) SwitchAction(number int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateIdle {
		return &BusyError{Command: "switch-action", State: m.state}
	}
	return m.library.Switch(number)
}

// CurrentSteps returns a copy of the current action's steps.
func (m *Machine) CurrentSteps() ([]models.Step, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, err := m.library.Current()
	if err != nil {
		return nil, err
	}
	return cur.Steps(), nil
}
