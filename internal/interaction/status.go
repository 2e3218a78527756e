package interaction

import (
	"fmt"
	"strings"

	"github.com/opencode-ai/pbd/internal/models"
)

// Status is a point-in-time view of the machine.
type Status struct {
	State         State                              `json:"state"`
	Freeze        map[models.Limb]models.FreezeState `json:"freeze"`
	ActionCount   int                                `json:"action_count"`
	CurrentAction int                                `json:"current_action"`
	CurrentName   string                             `json:"current_name,omitempty"`
	CurrentID     string                             `json:"current_id,omitempty"`
	StepCount     int                                `json:"step_count"`

	// ExecutingStep is the step in flight while executing, otherwise -1.
	ExecutingStep int  `json:"executing_step"`
	Stopping      bool `json:"stopping,omitempty"`

	LastExecution *ExecutionReport `json:"last_execution,omitempty"`
}

// Status returns a snapshot of the machine.
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Status{
		State:         m.state,
		Freeze:        make(map[models.Limb]models.FreezeState, len(m.freeze)),
		ActionCount:   m.library.Len(),
		CurrentAction: m.library.CurrentNumber(),
		ExecutingStep: -1,
	}
	for limb, mode := range m.freeze {
		st.Freeze[limb] = mode
	}
	if cur, err := m.library.Current(); err == nil {
		st.CurrentName = cur.Name()
		st.CurrentID = cur.ID
		st.StepCount = cur.Len()
	}
	if m.exec != nil {
		st.ExecutingStep = m.exec.current
		st.Stopping = m.exec.stopAsked
	}
	if m.lastExecution != nil {
		report := *m.lastExecution
		st.LastExecution = &report
	}
	return st
}

// String renders the status the way the operator console prints it.
func (s Status) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "State: %s\n", s.State)
	fmt.Fprintf(&b, "Total number of actions: %d\n", s.ActionCount)
	if s.CurrentName != "" {
		fmt.Fprintf(&b, "Current action: %s\n", s.CurrentName)
	} else {
		b.WriteString("Current action: none\n")
	}
	fmt.Fprintf(&b, "Number of steps in action: %d\n", s.StepCount)
	for _, limb := range models.Limbs {
		fmt.Fprintf(&b, "%s: %s\n", limb, s.Freeze[limb])
	}
	if s.ExecutingStep >= 0 {
		fmt.Fprintf(&b, "Executing step: %d\n", s.ExecutingStep+1)
	}
	return strings.TrimRight(b.String(), "\n")
}
