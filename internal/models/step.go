package models

import "fmt"

// StepType tags which payload of a Step is meaningful.
type StepType uint8

const (
	// StepTypeArmTarget moves each recorded arm to a single pose.
	StepTypeArmTarget StepType = 0
	// StepTypeArmTrajectory is reserved for timed pose sequences. No
	// constructor exists and such steps are rejected at execution.
	StepTypeArmTrajectory StepType = 1
)

func (t StepType) String() string {
	switch t {
	case StepTypeArmTarget:
		return "arm_target"
	case StepTypeArmTrajectory:
		return "arm_trajectory"
	default:
		return fmt.Sprintf("step_type(%d)", uint8(t))
	}
}

// ArmTarget holds the pose for each arm that was demonstrated. An arm left
// nil is not moved when the step executes.
type ArmTarget struct {
	Right *ArmState `json:"right,omitempty"`
	Left  *ArmState `json:"left,omitempty"`
}

// Arm returns the recorded state for one arm, or nil.
func (t ArmTarget) Arm(limb Limb) *ArmState {
	switch limb {
	case LimbRightArm:
		return t.Right
	case LimbLeftArm:
		return t.Left
	default:
		return nil
	}
}

// Limbs returns the arms that have a recorded pose, right first.
func (t ArmTarget) Limbs() []Limb {
	limbs := make([]Limb, 0, 2)
	for _, limb := range Arms {
		if t.Arm(limb) != nil {
			limbs = append(limbs, limb)
		}
	}
	return limbs
}

func (t ArmTarget) clone() ArmTarget {
	out := ArmTarget{}
	if t.Right != nil {
		r := *t.Right
		out.Right = &r
	}
	if t.Left != nil {
		l := *t.Left
		out.Left = &l
	}
	return out
}

// ArmTrajectory is reserved for continuous motion capture.
type ArmTrajectory struct {
	Timing []float64  `json:"timing,omitempty"`
	Right  []ArmState `json:"right,omitempty"`
	Left   []ArmState `json:"left,omitempty"`
}

// Condition is reserved for step pre/post conditions. It is carried but never
// evaluated.
type Condition struct {
	Expression string `json:"expression,omitempty"`
}

// GripperAction is the desired gripper state per hand. An empty value leaves
// that gripper untouched.
type GripperAction struct {
	Right GripperState `json:"right,omitempty"`
	Left  GripperState `json:"left,omitempty"`
}

// For returns the desired state for the given arm.
func (g GripperAction) For(limb Limb) GripperState {
	switch limb {
	case LimbRightArm:
		return g.Right
	case LimbLeftArm:
		return g.Left
	default:
		return ""
	}
}

// Step is one recorded unit of an action.
type Step struct {
	Type          StepType       `json:"type"`
	ArmTarget     *ArmTarget     `json:"arm_target,omitempty"`
	ArmTrajectory *ArmTrajectory `json:"arm_trajectory,omitempty"`
	PreCond       *Condition     `json:"pre_cond,omitempty"`
	PostCond      *Condition     `json:"post_cond,omitempty"`
	GripperAction GripperAction  `json:"gripper_action"`
}

// NewArmTargetStep builds the only executable step variant.
func NewArmTargetStep(target ArmTarget, gripper GripperAction) Step {
	t := target.clone()
	return Step{
		Type:          StepTypeArmTarget,
		ArmTarget:     &t,
		GripperAction: gripper,
	}
}

// Target returns the arm target when the step is an ARM_TARGET step.
func (s Step) Target() (ArmTarget, bool) {
	if s.Type != StepTypeArmTarget || s.ArmTarget == nil {
		return ArmTarget{}, false
	}
	return *s.ArmTarget, true
}

// Executable reports whether the step can be replayed.
func (s Step) Executable() bool {
	_, ok := s.Target()
	return ok
}

// Clone returns a deep copy so stored steps cannot be mutated through it.
func (s Step) Clone() Step {
	out := Step{Type: s.Type, GripperAction: s.GripperAction}
	if s.ArmTarget != nil {
		t := s.ArmTarget.clone()
		out.ArmTarget = &t
	}
	if s.ArmTrajectory != nil {
		tr := ArmTrajectory{
			Timing: append([]float64(nil), s.ArmTrajectory.Timing...),
			Right:  append([]ArmState(nil), s.ArmTrajectory.Right...),
			Left:   append([]ArmState(nil), s.ArmTrajectory.Left...),
		}
		out.ArmTrajectory = &tr
	}
	if s.PreCond != nil {
		c := *s.PreCond
		out.PreCond = &c
	}
	if s.PostCond != nil {
		c := *s.PostCond
		out.PostCond = &c
	}
	return out
}
