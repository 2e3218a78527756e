package robot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opencode-ai/pbd/internal/logging"
	"github.com/opencode-ai/pbd/internal/models"
	"github.com/rs/zerolog"
)

// SimulatorConfig configures the in-memory robot.
type SimulatorConfig struct {
	// MoveLatency is how long a move takes to complete.
	MoveLatency time.Duration

	// Home is the initial pose of both arms.
	Home models.Pose
}

// DefaultSimulatorConfig returns a simulator with short moves.
func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{
		MoveLatency: 200 * time.Millisecond,
		Home:        models.NewPose(0.5, 0, 0.8, models.IdentityQuaternion),
	}
}

// Simulator is an in-memory dual-arm robot. Relaxed arms can be guided by
// hand with Guide; frozen arms accept moves.
type Simulator struct {
	config SimulatorConfig
	logger zerolog.Logger

	mu       sync.Mutex
	poses    map[models.Limb]models.Pose
	grippers map[models.Limb]models.GripperState
	freeze   map[models.Limb]models.FreezeState
	failMove map[models.Limb]error
}

// NewSimulator creates a simulator with every limb relaxed at the home pose and
// both grippers open.
func NewSimulator(config SimulatorConfig) *Simulator {
	if config.MoveLatency < 0 {
		config.MoveLatency = 0
	}
	if config.Home.Orientation.Norm() == 0 {
		config.Home = DefaultSimulatorConfig().Home
	}

	s := &Simulator{
		config:   config,
		logger:   logging.Component("simulator"),
		poses:    make(map[models.Limb]models.Pose),
		grippers: make(map[models.Limb]models.GripperState),
		freeze:   make(map[models.Limb]models.FreezeState),
		failMove: make(map[models.Limb]error),
	}
	for _, limb := range models.Arms {
		s.poses[limb] = config.Home
		s.grippers[limb] = models.GripperOpen
	}
	for _, limb := range models.Limbs {
		s.freeze[limb] = models.FreezeStateRelaxed
	}
	return s
}

// Guide moves a relaxed arm as an operator would by hand.
func (s *Simulator) Guide(limb models.Limb, pose models.Pose) error {
	if !limb.IsArm() {
		return ErrNotAnArm
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.freeze[limb] != models.FreezeStateRelaxed {
		return fmt.Errorf("guide %s: limb is frozen", limb)
	}
	s.poses[limb] = pose
	return nil
}

// FailMoves makes subsequent moves of limb fail with err. A nil err clears it.
func (s *Simulator) FailMoves(limb models.Limb, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failMove, limb)
		return
	}
	s.failMove[limb] = err
}

// CapturePose implements Capability.
func (s *Simulator) CapturePose(ctx context.Context, limb models.Limb) (models.Pose, error) {
	if !limb.IsArm() {
		return models.Pose{}, ErrNotAnArm
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.poses[limb], nil
}

// CaptureGripperState implements Capability.
func (s *Simulator) CaptureGripperState(ctx context.Context, limb models.Limb) (models.GripperState, error) {
	if !limb.IsArm() {
		return "", ErrNotAnArm
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grippers[limb], nil
}

// MoveArmTo implements Capability. The move takes MoveLatency and is aborted
// when ctx is canceled.
func (s *Simulator) MoveArmTo(ctx context.Context, limb models.Limb, pose models.Pose) error {
	if !limb.IsArm() {
		return ErrNotAnArm
	}
	if err := pose.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrMoveFailed, err)
	}

	s.mu.Lock()
	if s.freeze[limb] != models.FreezeStateFrozen {
		s.mu.Unlock()
		return ErrLimbRelaxed
	}
	if err := s.failMove[limb]; err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrMoveFailed, err)
	}
	start := s.poses[limb]
	s.mu.Unlock()

	s.logger.Debug().
		Str("limb", string(limb)).
		Float64("distance", start.DistanceTo(pose)).
		Msg("moving arm")

	if s.config.MoveLatency > 0 {
		timer := time.NewTimer(s.config.MoveLatency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrMoveAborted, ctx.Err())
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrMoveAborted, err)
	}

	s.mu.Lock()
	s.poses[limb] = pose
	s.mu.Unlock()
	return nil
}

// SetGripper implements Capability.
func (s *Simulator) SetGripper(ctx context.Context, limb models.Limb, state models.GripperState) error {
	if !limb.IsArm() {
		return ErrNotAnArm
	}
	if !state.Valid() {
		return fmt.Errorf("%w: invalid state %q", ErrGripperFault, state)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grippers[limb] = state
	return nil
}

// SetFreeze implements Capability.
func (s *Simulator) SetFreeze(ctx context.Context, limb models.Limb, state models.FreezeState) error {
	if !limb.Valid() {
		return ErrUnknownLimb
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.freeze[limb] = state
	return nil
}
