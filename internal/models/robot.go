package models

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// DefaultRefFrame is the frame poses are expressed in unless captured otherwise.
const DefaultRefFrame = "base_link"

// Limb identifies a freezable part of the robot.
type Limb string

const (
	LimbRightArm Limb = "right_arm"
	LimbLeftArm  Limb = "left_arm"
	LimbHead     Limb = "head"
)

// Arms lists the limbs that carry an end-effector, right first.
var Arms = []Limb{LimbRightArm, LimbLeftArm}

// Limbs lists every freezable limb.
var Limbs = []Limb{LimbRightArm, LimbLeftArm, LimbHead}

// IsArm reports whether the limb has an end-effector and gripper.
func (l Limb) IsArm() bool {
	return l == LimbRightArm || l == LimbLeftArm
}

// Valid reports whether the limb is known.
func (l Limb) Valid() bool {
	return l.IsArm() || l == LimbHead
}

// FreezeState is the servo mode of a limb.
type FreezeState string

const (
	// FreezeStateRelaxed means the limb is compliant and can be moved by hand.
	FreezeStateRelaxed FreezeState = "relaxed"
	// FreezeStateFrozen means the limb holds position and accepts move commands.
	FreezeStateFrozen FreezeState = "frozen"
)

// GripperState is the desired or observed state of a gripper.
type GripperState string

const (
	GripperOpen   GripperState = "open"
	GripperClosed GripperState = "closed"
)

// Valid reports whether the gripper state is known.
func (g GripperState) Valid() bool {
	return g == GripperOpen || g == GripperClosed
}

// Quaternion is a unit orientation.
type Quaternion struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
	W float64 `json:"w" yaml:"w"`
}

// IdentityQuaternion is the zero rotation.
var IdentityQuaternion = Quaternion{W: 1}

// Norm returns the quaternion magnitude.
func (q Quaternion) Norm() float64 {
	return math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
}

// Pose is an end-effector position and orientation.
type Pose struct {
	Position    r3.Vector  `json:"position"`
	Orientation Quaternion `json:"orientation"`
}

// NewPose builds a pose from a position and orientation.
func NewPose(x, y, z float64, orientation Quaternion) Pose {
	return Pose{Position: r3.Vector{X: x, Y: y, Z: z}, Orientation: orientation}
}

// DistanceTo returns the euclidean distance between two pose positions.
func (p Pose) DistanceTo(other Pose) float64 {
	return p.Position.Distance(other.Position)
}

// Validate checks that the orientation is a usable rotation.
func (p Pose) Validate() error {
	n := p.Orientation.Norm()
	if n < 1e-6 {
		return fmt.Errorf("orientation quaternion has zero norm")
	}
	if math.IsNaN(n) || math.IsNaN(p.Position.X+p.Position.Y+p.Position.Z) {
		return fmt.Errorf("pose contains NaN")
	}
	return nil
}

func (p Pose) String() string {
	return fmt.Sprintf("(%.3f, %.3f, %.3f)", p.Position.X, p.Position.Y, p.Position.Z)
}

// ArmState is a captured end-effector pose with the frame it is expressed in.
type ArmState struct {
	Pose     Pose   `json:"pose"`
	RefFrame string `json:"ref_frame"`
}
