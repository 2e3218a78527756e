// Package robot defines the hardware capability the interaction core drives,
// plus pose capture and an in-memory simulator.
package robot

import (
	"context"
	"errors"

	"github.com/opencode-ai/pbd/internal/models"
)

// Robot errors.
var (
	ErrUnknownLimb  = errors.New("unknown limb")
	ErrNotAnArm     = errors.New("limb has no end-effector")
	ErrLimbRelaxed  = errors.New("limb is relaxed")
	ErrMoveFailed   = errors.New("arm move failed")
	ErrMoveAborted  = errors.New("arm move aborted")
	ErrGripperFault = errors.New("gripper command failed")
)

// Capability is the arm, gripper and servo interface of the robot. Every call
// is synchronous and reports failure as an error, never a silent no-op.
// Implementations should return promptly with ErrMoveAborted when ctx is
// canceled during a move.
type Capability interface {
	CapturePose(ctx context.Context, limb models.Limb) (models.Pose, error)
	CaptureGripperState(ctx context.Context, limb models.Limb) (models.GripperState, error)
	MoveArmTo(ctx context.Context, limb models.Limb, pose models.Pose) error
	SetGripper(ctx context.Context, limb models.Limb, state models.GripperState) error
	SetFreeze(ctx context.Context, limb models.Limb, state models.FreezeState) error
}
