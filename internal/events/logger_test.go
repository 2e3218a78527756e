package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/opencode-ai/pbd/internal/dispatcher"
	"github.com/opencode-ai/pbd/internal/interaction"
	"github.com/opencode-ai/pbd/internal/models"
	"github.com/rs/zerolog"
)

type fakeRepo struct {
	events []*models.Event
	err    error
}

func (r *fakeRepo) Create(ctx context.Context, event *models.Event) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

func outcome(cmd models.Command, status dispatcher.OutcomeStatus) dispatcher.Outcome {
	now := time.Now().UTC()
	return dispatcher.Outcome{
		ID:         "cmd-1",
		Raw:        string(cmd),
		Command:    cmd,
		Status:     status,
		State:      interaction.StateIdle,
		StepIndex:  -1,
		ReceivedAt: now.Add(-time.Millisecond),
		HandledAt:  now,
	}
}

func TestLogOutcome(t *testing.T) {
	tests := []struct {
		name    string
		out     dispatcher.Outcome
		want    []models.EventType
		wantErr bool
	}{
		{
			name: "recorded step",
			out:  outcome(models.CommandSavePose, dispatcher.OutcomeHandled),
			want: []models.EventType{models.EventTypeCommandHandled, models.EventTypeStepRecorded},
		},
		{
			name: "rejected command has no domain event",
			out:  outcome(models.CommandDeleteLastStep, dispatcher.OutcomeRejected),
			want: []models.EventType{models.EventTypeCommandRejected},
		},
		{
			name: "unrecognized token",
			out:  outcome(models.CommandUnrecognized, dispatcher.OutcomeUnrecognized),
			want: []models.EventType{models.EventTypeCommandUnrecognized},
		},
		{
			name: "failed execution",
			out:  outcome(models.CommandExecuteAction, dispatcher.OutcomeFailed),
			want: []models.EventType{models.EventTypeCommandFailed, models.EventTypeExecutionFailed},
		},
		{
			name: "freeze",
			out:  outcome(models.CommandFreezeLeftArm, dispatcher.OutcomeHandled),
			want: []models.EventType{models.EventTypeCommandHandled, models.EventTypeLimbStateChanged},
		},
		{
			name: "gripper",
			out:  outcome(models.CommandCloseRightHand, dispatcher.OutcomeHandled),
			want: []models.EventType{models.EventTypeCommandHandled, models.EventTypeGripperCommanded},
		},
		{
			name: "switch action",
			out:  outcome(dispatcher.CommandSwitchAction, dispatcher.OutcomeHandled),
			want: []models.EventType{models.EventTypeCommandHandled, models.EventTypeActionSwitched},
		},
		{
			name: "microphone check",
			out:  outcome(models.CommandTestMicrophone, dispatcher.OutcomeHandled),
			want: []models.EventType{models.EventTypeCommandHandled},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeRepo{}
			if err := LogOutcome(context.Background(), repo, "session-1", tt.out); err != nil {
				t.Fatalf("LogOutcome failed: %v", err)
			}
			if len(repo.events) != len(tt.want) {
				t.Fatalf("expected %d events, got %d", len(tt.want), len(repo.events))
			}
			for i, want := range tt.want {
				if repo.events[i].Type != want {
					t.Errorf("event %d: expected %q, got %q", i, want, repo.events[i].Type)
				}
				if repo.events[i].EntityID != "session-1" {
					t.Errorf("event %d: unexpected entity id %q", i, repo.events[i].EntityID)
				}
			}

			var payload models.CommandPayload
			if err := json.Unmarshal(repo.events[0].Payload, &payload); err != nil {
				t.Fatalf("decode payload: %v", err)
			}
			if payload.Command != tt.out.Command || payload.StepIndex != nil {
				t.Errorf("unexpected payload: %+v", payload)
			}
		})
	}
}

func TestLogOutcomeRequiresSession(t *testing.T) {
	if err := LogOutcome(context.Background(), &fakeRepo{}, "", dispatcher.Outcome{}); err == nil {
		t.Fatal("expected error for missing session")
	}
	if err := LogOutcome(context.Background(), nil, "s", dispatcher.Outcome{}); err == nil {
		t.Fatal("expected error for missing repository")
	}
}

func TestRecorderKeepsRunningAfterWriteFailure(t *testing.T) {
	repo := &fakeRepo{err: errors.New("disk full")}
	rec := NewRecorder(repo, "session-1")
	rec.logger = zerolog.Nop()

	ch := make(chan dispatcher.Outcome, 2)
	ch <- outcome(models.CommandSavePose, dispatcher.OutcomeHandled)
	ch <- outcome(models.CommandSavePose, dispatcher.OutcomeHandled)
	close(ch)

	if err := rec.Run(context.Background(), ch); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(ch) != 0 {
		t.Fatalf("expected channel drained, %d left", len(ch))
	}
}
