package interaction

import (
	"context"
	"sync"

	"github.com/opencode-ai/pbd/internal/models"
)

type robotCall struct {
	op    string
	limb  models.Limb
	pose  models.Pose
	state string
}

// fakeRobot records capability calls in order. Moves can be gated so tests
// can hold playback mid-step, and individual move calls can be failed.
type fakeRobot struct {
	mu       sync.Mutex
	calls    []robotCall
	poses    map[models.Limb]models.Pose
	grippers map[models.Limb]models.GripperState
	moves    int

	// failMove maps a 0-based move call number to the error it returns.
	failMove   map[int]error
	failFreeze error

	// gate, when set, blocks each move until a value is received or ctx ends.
	gate        chan struct{}
	moveStarted chan int
}

func newFakeRobot() *fakeRobot {
	return &fakeRobot{
		poses: map[models.Limb]models.Pose{
			models.LimbRightArm: models.NewPose(0.5, -0.3, 0.8, models.IdentityQuaternion),
			models.LimbLeftArm:  models.NewPose(0.5, 0.3, 0.8, models.IdentityQuaternion),
		},
		grippers: map[models.Limb]models.GripperState{
			models.LimbRightArm: models.GripperOpen,
			models.LimbLeftArm:  models.GripperOpen,
		},
		failMove:    make(map[int]error),
		moveStarted: make(chan int, 64),
	}
}

func (f *fakeRobot) guide(limb models.Limb, pose models.Pose) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.poses[limb] = pose
}

func (f *fakeRobot) record(c robotCall) {
	f.calls = append(f.calls, c)
}

func (f *fakeRobot) movesTo() []robotCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []robotCall
	for _, c := range f.calls {
		if c.op == "move" {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeRobot) callsOf(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.op == op {
			n++
		}
	}
	return n
}

func (f *fakeRobot) CapturePose(ctx context.Context, limb models.Limb) (models.Pose, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.poses[limb], nil
}

func (f *fakeRobot) CaptureGripperState(ctx context.Context, limb models.Limb) (models.GripperState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.grippers[limb], nil
}

func (f *fakeRobot) MoveArmTo(ctx context.Context, limb models.Limb, pose models.Pose) error {
	f.mu.Lock()
	n := f.moves
	f.moves++
	f.record(robotCall{op: "move", limb: limb, pose: pose})
	err := f.failMove[n]
	gate := f.gate
	f.mu.Unlock()

	select {
	case f.moveStarted <- n:
	default:
	}

	if err != nil {
		return err
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	f.poses[limb] = pose
	f.mu.Unlock()
	return nil
}

func (f *fakeRobot) SetGripper(ctx context.Context, limb models.Limb, state models.GripperState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(robotCall{op: "gripper", limb: limb, state: string(state)})
	f.grippers[limb] = state
	return nil
}

func (f *fakeRobot) SetFreeze(ctx context.Context, limb models.Limb, state models.FreezeState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFreeze != nil {
		return f.failFreeze
	}
	f.record(robotCall{op: "freeze", limb: limb, state: string(state)})
	return nil
}
