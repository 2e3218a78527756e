package robot

import (
	"context"
	"fmt"

	"github.com/opencode-ai/pbd/internal/models"
)

// Snapshot is the robot state captured for one step.
type Snapshot struct {
	Target  models.ArmTarget
	Gripper models.GripperAction
}

// Step converts the snapshot into an ARM_TARGET step.
func (s Snapshot) Step() models.Step {
	return models.NewArmTargetStep(s.Target, s.Gripper)
}

// Capture reads the pose of every arm in arms and the state of both grippers.
// Arms not listed are left out of the target so they are not moved on replay.
// Capture has no side effects on the robot.
func Capture(ctx context.Context, capability Capability, arms []models.Limb) (Snapshot, error) {
	var snap Snapshot
	for _, limb := range arms {
		if !limb.IsArm() {
			continue
		}
		pose, err := capability.CapturePose(ctx, limb)
		if err != nil {
			return Snapshot{}, fmt.Errorf("capture %s pose: %w", limb, err)
		}
		state := &models.ArmState{Pose: pose, RefFrame: models.DefaultRefFrame}
		switch limb {
		case models.LimbRightArm:
			snap.Target.Right = state
		case models.LimbLeftArm:
			snap.Target.Left = state
		}
	}

	for _, limb := range models.Arms {
		g, err := capability.CaptureGripperState(ctx, limb)
		if err != nil {
			return Snapshot{}, fmt.Errorf("capture %s gripper: %w", limb, err)
		}
		switch limb {
		case models.LimbRightArm:
			snap.Gripper.Right = g
		case models.LimbLeftArm:
			snap.Gripper.Left = g
		}
	}

	return snap, nil
}
