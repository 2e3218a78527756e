package robot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opencode-ai/pbd/internal/models"
	"github.com/stretchr/testify/require"
)

func TestSimulatorGuideAndCapture(t *testing.T) {
	sim := NewSimulator(SimulatorConfig{})
	ctx := context.Background()
	target := models.NewPose(0.6, -0.3, 0.9, models.IdentityQuaternion)

	require.NoError(t, sim.Guide(models.LimbRightArm, target))
	require.NoError(t, sim.SetGripper(ctx, models.LimbLeftArm, models.GripperClosed))

	snap, err := Capture(ctx, sim, []models.Limb{models.LimbRightArm})
	require.NoError(t, err)
	require.NotNil(t, snap.Target.Right)
	require.Nil(t, snap.Target.Left, "left arm was not requested")
	require.Equal(t, target, snap.Target.Right.Pose)
	require.Equal(t, models.DefaultRefFrame, snap.Target.Right.RefFrame)
	require.Equal(t, models.GripperOpen, snap.Gripper.Right)
	require.Equal(t, models.GripperClosed, snap.Gripper.Left)

	step := snap.Step()
	require.True(t, step.Executable())
}

func TestSimulatorGuideRequiresRelaxed(t *testing.T) {
	sim := NewSimulator(SimulatorConfig{})
	require.NoError(t, sim.SetFreeze(context.Background(), models.LimbLeftArm, models.FreezeStateFrozen))

	err := sim.Guide(models.LimbLeftArm, models.NewPose(0, 0, 0, models.IdentityQuaternion))
	require.Error(t, err)
	require.ErrorIs(t, sim.Guide(models.LimbHead, models.Pose{}), ErrNotAnArm)
}

func TestSimulatorMoveRequiresFrozen(t *testing.T) {
	sim := NewSimulator(SimulatorConfig{})
	err := sim.MoveArmTo(context.Background(), models.LimbRightArm, models.NewPose(0, 0, 1, models.IdentityQuaternion))
	require.ErrorIs(t, err, ErrLimbRelaxed)
}

func TestSimulatorMoveCompletes(t *testing.T) {
	sim := NewSimulator(SimulatorConfig{MoveLatency: 5 * time.Millisecond})
	ctx := context.Background()
	dest := models.NewPose(0.2, 0.2, 0.2, models.IdentityQuaternion)

	require.NoError(t, sim.SetFreeze(ctx, models.LimbRightArm, models.FreezeStateFrozen))
	require.NoError(t, sim.MoveArmTo(ctx, models.LimbRightArm, dest))

	pose, err := sim.CapturePose(ctx, models.LimbRightArm)
	require.NoError(t, err)
	require.Equal(t, dest, pose)
}

func TestSimulatorMoveAbortsOnCancel(t *testing.T) {
	sim := NewSimulator(SimulatorConfig{MoveLatency: time.Minute})
	require.NoError(t, sim.SetFreeze(context.Background(), models.LimbRightArm, models.FreezeStateFrozen))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- sim.MoveArmTo(ctx, models.LimbRightArm, models.NewPose(1, 1, 1, models.IdentityQuaternion))
	}()
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrMoveAborted)
	case <-time.After(2 * time.Second):
		t.Fatal("move did not abort after cancel")
	}
}

func TestSimulatorInjectedFailure(t *testing.T) {
	sim := NewSimulator(SimulatorConfig{})
	ctx := context.Background()
	require.NoError(t, sim.SetFreeze(ctx, models.LimbLeftArm, models.FreezeStateFrozen))

	boom := errors.New("joint limit")
	sim.FailMoves(models.LimbLeftArm, boom)
	err := sim.MoveArmTo(ctx, models.LimbLeftArm, models.NewPose(0, 0, 0, models.IdentityQuaternion))
	require.ErrorIs(t, err, ErrMoveFailed)

	sim.FailMoves(models.LimbLeftArm, nil)
	require.NoError(t, sim.MoveArmTo(ctx, models.LimbLeftArm, models.NewPose(0, 0, 0, models.IdentityQuaternion)))
}
