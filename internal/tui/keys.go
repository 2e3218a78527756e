package tui

import "github.com/opencode-ai/pbd/internal/models"

// binding maps a key to the command token it sends.
type binding struct {
	key     string
	command models.Command
	label   string
}

// bindings lists the console keys in help order.
var bindings = []binding{
	{"n", models.CommandCreateNewAction, "new action"},
	{"[", models.CommandPreviousAction, "previous action"},
	{"]", models.CommandNextAction, "next action"},
	{"s", models.CommandSavePose, "save pose"},
	{"p", models.CommandRecordObjectPose, "record object pose"},
	{"d", models.CommandDeleteLastStep, "delete last step"},
	{"D", models.CommandDeleteAllSteps, "delete all steps"},
	{"x", models.CommandExecuteAction, "execute"},
	{" ", models.CommandStopExecution, "stop"},
	{"r", models.CommandRelaxRightArm, "relax right arm"},
	{"R", models.CommandFreezeRightArm, "freeze right arm"},
	{"l", models.CommandRelaxLeftArm, "relax left arm"},
	{"L", models.CommandFreezeLeftArm, "freeze left arm"},
	{"h", models.CommandRelaxHead, "relax head"},
	{"H", models.CommandFreezeHead, "freeze head"},
	{"o", models.CommandOpenRightHand, "open right hand"},
	{"c", models.CommandCloseRightHand, "close right hand"},
	{"O", models.CommandOpenLeftHand, "open left hand"},
	{"C", models.CommandCloseLeftHand, "close left hand"},
	{"m", models.CommandStartRecordingMotion, "start motion"},
	{"M", models.CommandStopRecordingMotion, "stop motion"},
	{"t", models.CommandTestMicrophone, "test microphone"},
}

var keyCommands = func() map[string]models.Command {
	m := make(map[string]models.Command, len(bindings))
	for _, b := range bindings {
		m[b.key] = b.command
	}
	return m
}()

func keyLabel(key string) string {
	if key == " " {
		return "space"
	}
	return key
}
