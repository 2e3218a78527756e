package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/opencode-ai/pbd/internal/dispatcher"
	"github.com/opencode-ai/pbd/internal/interaction"
	"github.com/opencode-ai/pbd/internal/models"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu     sync.Mutex
	sent   []string
	status interaction.Status
	err    error
}

func (b *fakeBackend) Send(ctx context.Context, raw string) (dispatcher.Outcome, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, raw)
	if b.err != nil {
		return dispatcher.Outcome{}, b.err
	}
	return dispatcher.Outcome{Command: models.Command(raw), Status: dispatcher.OutcomeHandled, Detail: "ok " + raw}, nil
}

func (b *fakeBackend) Status(ctx context.Context) (interaction.Status, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status, nil
}

func press(t *testing.T, m model, key string) (model, tea.Cmd) {
	t.Helper()
	var msg tea.KeyMsg
	switch key {
	case " ":
		msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	updated, cmd := m.Update(msg)
	return updated.(model), cmd
}

func TestKeysSendCommands(t *testing.T) {
	backend := &fakeBackend{}
	m := newModel(context.Background(), backend, Config{})

	m, cmd := press(t, m, "s")
	require.NotNil(t, cmd)
	require.Equal(t, 1, m.inFlight)

	msg := cmd()
	out, ok := msg.(outcomeMsg)
	require.True(t, ok)
	require.Equal(t, string(models.CommandSavePose), out.raw)

	updated, _ := m.Update(out)
	m = updated.(model)
	require.Zero(t, m.inFlight)
	require.Len(t, m.log, 1)
	require.Contains(t, m.logView(), "ok save-pose")

	_, cmd = press(t, m, " ")
	require.NotNil(t, cmd)
	cmd()
	require.Equal(t, []string{"save-pose", "stop-execution"}, backend.sent)
}

func TestEveryBindingIsARecognizedCommand(t *testing.T) {
	seen := make(map[string]bool)
	for _, b := range bindings {
		require.False(t, seen[b.key], "duplicate key %q", b.key)
		seen[b.key] = true
		_, ok := models.ParseCommand(string(b.command))
		require.True(t, ok, "binding %q", b.key)
	}
	require.Len(t, bindings, len(models.Commands))
}

func TestLogKeepsLatestEntries(t *testing.T) {
	m := newModel(context.Background(), &fakeBackend{}, Config{})
	for i := 0; i < maxLog+3; i++ {
		m.appendLog(outcomeMsg{raw: "test-microphone", outcome: dispatcher.Outcome{Status: dispatcher.OutcomeHandled}})
	}
	require.Len(t, m.log, maxLog)

	m.appendLog(outcomeMsg{raw: "save-pose", err: errors.New("connection refused")})
	last := m.log[len(m.log)-1]
	require.Equal(t, dispatcher.OutcomeFailed, last.status)
	require.Equal(t, "connection refused", last.text)
}

func TestViewShowsStatus(t *testing.T) {
	backend := &fakeBackend{status: interaction.Status{
		State:         interaction.StateExecuting,
		ActionCount:   2,
		CurrentAction: 2,
		CurrentName:   "Action2",
		StepCount:     3,
		ExecutingStep: 1,
		Freeze: map[models.Limb]models.FreezeState{
			models.LimbRightArm: models.FreezeStateFrozen,
			models.LimbLeftArm:  models.FreezeStateRelaxed,
			models.LimbHead:     models.FreezeStateRelaxed,
		},
	}}
	m := newModel(context.Background(), backend, Config{Title: "test console"})

	updated, _ := m.Update(m.pollStatus()())
	m = updated.(model)

	view := m.View()
	require.Contains(t, view, "test console")
	require.Contains(t, view, "EXECUTING")
	require.Contains(t, view, "Action2 (2 of 2)")
	require.Contains(t, view, "step 2 of 3")

	updated, _ = m.Update(tea.WindowSizeMsg{Width: 20, Height: 5})
	require.True(t, strings.Contains(updated.(model).View(), "Terminal too small"))
}

func TestQuit(t *testing.T) {
	m := newModel(context.Background(), &fakeBackend{}, Config{})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	_, ok := cmd().(tea.QuitMsg)
	require.True(t, ok)
}
