package scripts

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/opencode-ai/pbd/internal/interaction"
	"github.com/opencode-ai/pbd/internal/models"
	"gopkg.in/yaml.v3"
)

// DefaultWaitTimeout bounds a wait step without a duration.
const DefaultWaitTimeout = time.Minute

// LoadScript reads a single script from disk.
func LoadScript(path string) (*Script, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("script path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script %s: %w", path, err)
	}

	script, err := parseScript(data)
	if err != nil {
		return nil, fmt.Errorf("parse script %s: %w", path, err)
	}
	script.Source = path
	return script, nil
}

// LoadScriptsFromDir loads every .yaml/.yml script in dir. A missing
// directory yields no scripts.
func LoadScriptsFromDir(dir string) ([]*Script, error) {
	if strings.TrimSpace(dir) == "" {
		return []*Script{}, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*Script{}, nil
		}
		return nil, fmt.Errorf("read scripts dir %s: %w", dir, err)
	}

	scripts := make([]*Script, 0)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		script, err := LoadScript(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		scripts = append(scripts, script)
	}

	sort.Slice(scripts, func(i, j int) bool {
		return scripts[i].Name < scripts[j].Name
	})
	return scripts, nil
}

func parseScript(data []byte) (*Script, error) {
	var script Script
	if err := yaml.Unmarshal(data, &script); err != nil {
		return nil, err
	}

	script.Name = strings.TrimSpace(script.Name)
	if script.Name == "" {
		return nil, fmt.Errorf("script name is required")
	}
	script.Description = strings.TrimSpace(script.Description)

	if len(script.Steps) == 0 {
		return nil, fmt.Errorf("script steps are required")
	}
	for i := range script.Steps {
		if err := normalizeStep(&script.Steps[i]); err != nil {
			return nil, fmt.Errorf("script step %d: %w", i+1, err)
		}
	}
	return &script, nil
}

func normalizeStep(step *ScriptStep) error {
	step.Type = StepType(strings.ToLower(strings.TrimSpace(string(step.Type))))
	step.Command = strings.TrimSpace(step.Command)
	step.Duration = strings.TrimSpace(step.Duration)
	step.State = strings.ToLower(strings.TrimSpace(step.State))

	// A bare command entry implies the command type.
	if step.Type == "" && step.Command != "" {
		step.Type = StepTypeCommand
	}

	switch step.Type {
	case StepTypeCommand:
		if step.Command == "" {
			return fmt.Errorf("command is required")
		}
		cmd, ok := models.ParseCommand(step.Command)
		if !ok {
			return fmt.Errorf("unknown command %q", step.Command)
		}
		step.Command = string(cmd)

	case StepTypePause:
		if step.Duration == "" {
			return fmt.Errorf("pause duration is required")
		}
		if _, err := positiveDuration(step.Duration); err != nil {
			return fmt.Errorf("invalid pause duration: %w", err)
		}

	case StepTypeWait:
		switch interaction.State(step.State) {
		case interaction.StateIdle, interaction.StateRecording, interaction.StateExecuting:
		case "":
			step.State = string(interaction.StateIdle)
		default:
			return fmt.Errorf("unknown state %q", step.State)
		}
		if step.Duration != "" {
			if _, err := positiveDuration(step.Duration); err != nil {
				return fmt.Errorf("invalid wait timeout: %w", err)
			}
		}

	default:
		return fmt.Errorf("unknown step type %q", step.Type)
	}
	return nil
}

func positiveDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be greater than 0")
	}
	return d, nil
}
