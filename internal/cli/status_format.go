package cli

import (
	"fmt"
	"strings"

	"github.com/opencode-ai/pbd/internal/dispatcher"
	"github.com/opencode-ai/pbd/internal/interaction"
	"github.com/opencode-ai/pbd/internal/models"
)

func formatMachineState(state interaction.State) string {
	switch state {
	case interaction.StateIdle:
		return colorize("IDLE", colorGreen)
	case interaction.StateRecording:
		return colorize("RECORDING", colorMagenta)
	case interaction.StateExecuting:
		return colorize("EXECUTING", colorCyan)
	default:
		return colorize(strings.ToUpper(string(state)), colorYellow)
	}
}

func formatOutcomeStatus(status dispatcher.OutcomeStatus) string {
	switch status {
	case dispatcher.OutcomeHandled:
		return colorize("OK", colorGreen)
	case dispatcher.OutcomeRejected:
		return colorize("REJECTED", colorYellow)
	case dispatcher.OutcomeUnrecognized:
		return colorize("UNKNOWN", colorMagenta)
	default:
		return colorize("FAILED", colorRed)
	}
}

func formatFreeze(mode models.FreezeState) string {
	if mode == models.FreezeStateRelaxed {
		return colorize(string(mode), colorCyan)
	}
	return string(mode)
}

func formatOutcomeLine(out dispatcher.Outcome) string {
	text := out.Detail
	if out.Error != "" {
		text = out.Error
	}
	return fmt.Sprintf("%-9s %-24s %s", formatOutcomeStatus(out.Status), out.Command, text)
}

func formatExecution(report *interaction.ExecutionReport) string {
	text := fmt.Sprintf("%s %d/%d", report.ActionName, report.Completed, report.Total)
	switch {
	case report.Error != "":
		return text + " " + colorize("failed: "+report.Error, colorRed)
	case report.Stopped:
		return text + " " + colorize("stopped", colorYellow)
	default:
		return text
	}
}
