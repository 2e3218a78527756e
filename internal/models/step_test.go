package models

import "testing"

func TestStepCloneIsDeep(t *testing.T) {
	right := ArmState{Pose: NewPose(0.5, -0.2, 0.9, IdentityQuaternion), RefFrame: DefaultRefFrame}
	step := NewArmTargetStep(ArmTarget{Right: &right}, GripperAction{Right: GripperOpen})

	clone := step.Clone()
	clone.ArmTarget.Right.Pose.Position.X = 42
	clone.GripperAction.Right = GripperClosed

	if step.ArmTarget.Right.Pose.Position.X != 0.5 {
		t.Fatalf("clone mutated original pose: %v", step.ArmTarget.Right.Pose)
	}
	if step.GripperAction.Right != GripperOpen {
		t.Fatalf("clone mutated original gripper action")
	}
}

func TestNewArmTargetStepCopiesInput(t *testing.T) {
	right := ArmState{Pose: NewPose(1, 2, 3, IdentityQuaternion)}
	step := NewArmTargetStep(ArmTarget{Right: &right}, GripperAction{})
	right.Pose.Position.Z = 99

	target, ok := step.Target()
	if !ok {
		t.Fatal("expected arm target step")
	}
	if target.Right.Pose.Position.Z != 3 {
		t.Fatalf("step shares caller memory: z=%v", target.Right.Pose.Position.Z)
	}
	if limbs := target.Limbs(); len(limbs) != 1 || limbs[0] != LimbRightArm {
		t.Fatalf("unexpected limbs: %v", limbs)
	}
}

func TestTrajectoryStepIsNotExecutable(t *testing.T) {
	step := Step{Type: StepTypeArmTrajectory, ArmTrajectory: &ArmTrajectory{}}
	if step.Executable() {
		t.Fatal("trajectory steps must not be executable")
	}
	if got := step.Type.String(); got != "arm_trajectory" {
		t.Fatalf("unexpected type string %q", got)
	}
}

func TestPoseValidate(t *testing.T) {
	if err := NewPose(0, 0, 0, IdentityQuaternion).Validate(); err != nil {
		t.Fatalf("identity pose should be valid: %v", err)
	}
	if err := NewPose(0, 0, 0, Quaternion{}).Validate(); err == nil {
		t.Fatal("zero quaternion should be rejected")
	}
}
