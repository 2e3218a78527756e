// Package scripts loads and replays YAML scripts of command tokens.
package scripts

// Script is an ordered list of command tokens with optional pauses, replayed
// through the dispatcher as if spoken.
type Script struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description"`
	Steps       []ScriptStep `yaml:"steps"`
	Tags        []string     `yaml:"tags,omitempty"`
	Source      string       `yaml:"-"` // file path or "builtin"
}

// ScriptStep is one entry of a script.
type ScriptStep struct {
	Type    StepType `yaml:"type"`
	Command string   `yaml:"command,omitempty"`

	// Duration is the pause length, or the wait timeout.
	Duration string `yaml:"duration,omitempty"`

	// State is the machine state a wait step blocks for.
	State string `yaml:"state,omitempty"`

	// ContinueOnError keeps the script going when the command is not applied.
	ContinueOnError bool   `yaml:"continue_on_error,omitempty"`
	Note            string `yaml:"note,omitempty"`
}

// StepType defines the kind of script step.
type StepType string

const (
	StepTypeCommand StepType = "command"
	StepTypePause   StepType = "pause"
	StepTypeWait    StepType = "wait"
)
