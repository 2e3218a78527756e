package models

import "strings"

// Command is a discrete token produced by the speech or GUI boundary.
type Command string

const (
	CommandRelaxRightArm        Command = "relax-right-arm"
	CommandRelaxLeftArm         Command = "relax-left-arm"
	CommandFreezeRightArm       Command = "freeze-right-arm"
	CommandFreezeLeftArm        Command = "freeze-left-arm"
	CommandOpenRightHand        Command = "open-right-hand"
	CommandOpenLeftHand         Command = "open-left-hand"
	CommandCloseRightHand       Command = "close-right-hand"
	CommandCloseLeftHand        Command = "close-left-hand"
	CommandRelaxHead            Command = "relax-head"
	CommandFreezeHead           Command = "freeze-head"
	CommandRecordObjectPose     Command = "record-object-pose"
	CommandSavePose             Command = "save-pose"
	CommandExecuteAction        Command = "execute-action"
	CommandStopExecution        Command = "stop-execution"
	CommandCreateNewAction      Command = "create-new-action"
	CommandNextAction           Command = "next-action"
	CommandPreviousAction       Command = "previous-action"
	CommandDeleteAllSteps       Command = "delete-all-steps"
	CommandDeleteLastStep       Command = "delete-last-step"
	CommandStartRecordingMotion Command = "start-recording-motion"
	CommandStopRecordingMotion  Command = "stop-recording-motion"
	CommandTestMicrophone       Command = "test-microphone"
	CommandUnrecognized         Command = "unrecognized"
)

// Commands lists the recognized vocabulary in a stable order.
var Commands = []Command{
	CommandRelaxRightArm,
	CommandRelaxLeftArm,
	CommandFreezeRightArm,
	CommandFreezeLeftArm,
	CommandOpenRightHand,
	CommandOpenLeftHand,
	CommandCloseRightHand,
	CommandCloseLeftHand,
	CommandRelaxHead,
	CommandFreezeHead,
	CommandRecordObjectPose,
	CommandSavePose,
	CommandExecuteAction,
	CommandStopExecution,
	CommandCreateNewAction,
	CommandNextAction,
	CommandPreviousAction,
	CommandDeleteAllSteps,
	CommandDeleteLastStep,
	CommandStartRecordingMotion,
	CommandStopRecordingMotion,
	CommandTestMicrophone,
}

var commandSet = func() map[Command]struct{} {
	set := make(map[Command]struct{}, len(Commands))
	for _, c := range Commands {
		set[c] = struct{}{}
	}
	return set
}()

// ParseCommand normalizes a raw token. Unknown tokens, including the literal
// "unrecognized", map to CommandUnrecognized with ok=false.
func ParseCommand(raw string) (Command, bool) {
	token := strings.ToLower(strings.TrimSpace(raw))
	token = strings.ReplaceAll(token, "_", "-")
	cmd := Command(token)
	if _, ok := commandSet[cmd]; !ok {
		return CommandUnrecognized, false
	}
	return cmd, true
}

// FreezeTarget returns the limb and mode a relax/freeze command applies to.
func (c Command) FreezeTarget() (Limb, FreezeState, bool) {
	switch c {
	case CommandRelaxRightArm:
		return LimbRightArm, FreezeStateRelaxed, true
	case CommandRelaxLeftArm:
		return LimbLeftArm, FreezeStateRelaxed, true
	case CommandFreezeRightArm:
		return LimbRightArm, FreezeStateFrozen, true
	case CommandFreezeLeftArm:
		return LimbLeftArm, FreezeStateFrozen, true
	case CommandRelaxHead:
		return LimbHead, FreezeStateRelaxed, true
	case CommandFreezeHead:
		return LimbHead, FreezeStateFrozen, true
	default:
		return "", "", false
	}
}

// GripperTarget returns the arm and gripper state an open/close command applies to.
func (c Command) GripperTarget() (Limb, GripperState, bool) {
	switch c {
	case CommandOpenRightHand:
		return LimbRightArm, GripperOpen, true
	case CommandOpenLeftHand:
		return LimbLeftArm, GripperOpen, true
	case CommandCloseRightHand:
		return LimbRightArm, GripperClosed, true
	case CommandCloseLeftHand:
		return LimbLeftArm, GripperClosed, true
	default:
		return "", "", false
	}
}

// AllowedWhileExecuting reports whether the command may be handled while an
// action is playing back.
func (c Command) AllowedWhileExecuting() bool {
	switch c {
	case CommandStopExecution, CommandTestMicrophone:
		return true
	default:
		return false
	}
}
