package cli

import (
	"fmt"
	"io"
	"os"
	"time"
)

// progressOut receives progress lines. Stdout stays clean for piping.
var progressOut io.Writer = os.Stderr

type progressStep struct {
	label   string
	started time.Time
}

// startProgress prints label and returns a step to close with Done or Fail.
// It returns nil when progress output is disabled; nil steps are no-ops.
func startProgress(label string) *progressStep {
	if !progressEnabled() {
		return nil
	}
	fmt.Fprintf(progressOut, "%s... ", label)
	return &progressStep{label: label, started: time.Now()}
}

func (p *progressStep) Done() {
	if p == nil {
		return
	}
	fmt.Fprintf(progressOut, "%s (%s)\n", colorize("done", colorGreen), formatDuration(time.Since(p.started)))
}

func (p *progressStep) Fail(err error) {
	if p == nil {
		return
	}
	if err == nil {
		fmt.Fprintln(progressOut, colorize("failed", colorRed))
		return
	}
	fmt.Fprintf(progressOut, "%s: %v\n", colorize("failed", colorRed), err)
}

func progressEnabled() bool {
	if IsJSONOutput() || IsJSONLOutput() || noProgress {
		return false
	}
	for _, key := range []string{"PBD_NO_PROGRESS", "NO_PROGRESS"} {
		if _, ok := os.LookupEnv(key); ok {
			return false
		}
	}
	return true
}

// formatDuration rounds to a precision that suits the magnitude.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return d.String()
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	case d < time.Minute:
		return d.Round(100 * time.Millisecond).String()
	default:
		return d.Round(time.Second).String()
	}
}
