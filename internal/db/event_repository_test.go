package db

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/opencode-ai/pbd/internal/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := OpenInMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if _, err := database.MigrateUp(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return database
}

func TestMigrateUpIsIdempotent(t *testing.T) {
	database := openTestDB(t)

	n, err := database.MigrateUp(context.Background())
	if err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no pending migrations, got %d", n)
	}
}

func TestEventRepositoryCreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewEventRepository(openTestDB(t))

	payload, _ := json.Marshal(models.CommandPayload{CommandID: "c1", Command: models.CommandSavePose})
	event := &models.Event{
		Type:       models.EventTypeCommandHandled,
		EntityType: models.EntityTypeSession,
		EntityID:   "session-1",
		Payload:    payload,
		Metadata:   map[string]string{"source": "test"},
	}
	if err := repo.Create(ctx, event); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if event.ID == "" {
		t.Fatal("expected ID to be set")
	}

	got, err := repo.Get(ctx, event.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Type != models.EventTypeCommandHandled {
		t.Errorf("unexpected type %q", got.Type)
	}
	if got.Metadata["source"] != "test" {
		t.Errorf("metadata not round-tripped: %v", got.Metadata)
	}

	var decoded models.CommandPayload
	if err := json.Unmarshal(got.Payload, &decoded); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if decoded.Command != models.CommandSavePose {
		t.Errorf("unexpected command %q", decoded.Command)
	}
}

func TestEventRepositoryRejectsInvalid(t *testing.T) {
	repo := NewEventRepository(openTestDB(t))

	err := repo.Create(context.Background(), &models.Event{Type: models.EventTypeError})
	if !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}

	if _, err := repo.Get(context.Background(), "missing"); !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}
}

func TestEventRepositoryQueryPagination(t *testing.T) {
	ctx := context.Background()
	repo := NewEventRepository(openTestDB(t))

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	types := []models.EventType{
		models.EventTypeCommandHandled,
		models.EventTypeCommandRejected,
		models.EventTypeCommandHandled,
		models.EventTypeExecutionStarted,
		models.EventTypeCommandHandled,
	}
	for i, typ := range types {
		err := repo.Create(ctx, &models.Event{
			Timestamp:  base.Add(time.Duration(i) * time.Millisecond),
			Type:       typ,
			EntityType: models.EntityTypeSession,
			EntityID:   "s",
		})
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	page, err := repo.Query(ctx, EventQuery{Limit: 2})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(page.Events) != 2 || page.NextCursor == "" {
		t.Fatalf("expected first page of 2 with cursor, got %d %q", len(page.Events), page.NextCursor)
	}

	var all []*models.Event
	all = append(all, page.Events...)
	for page.NextCursor != "" {
		page, err = repo.Query(ctx, EventQuery{Limit: 2, Cursor: page.NextCursor})
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		all = append(all, page.Events...)
	}
	if len(all) != len(types) {
		t.Fatalf("expected %d events, got %d", len(types), len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Timestamp.Before(all[i-1].Timestamp) {
			t.Fatalf("events out of order at %d", i)
		}
	}

	handled, err := repo.Query(ctx, EventQuery{Types: []models.EventType{models.EventTypeCommandHandled}})
	if err != nil {
		t.Fatalf("Query by type: %v", err)
	}
	if len(handled.Events) != 3 {
		t.Fatalf("expected 3 handled events, got %d", len(handled.Events))
	}

	counts, err := repo.CountByType(ctx, EventQuery{})
	if err != nil {
		t.Fatalf("CountByType: %v", err)
	}
	if counts[models.EventTypeCommandHandled] != 3 || counts[models.EventTypeCommandRejected] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}

	recent, err := repo.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 || recent[1].Type != models.EventTypeCommandHandled || recent[0].Type != models.EventTypeExecutionStarted {
		t.Fatalf("unexpected recent events: %+v", recent)
	}

	removed, err := repo.DeleteBefore(ctx, base.Add(2*time.Millisecond))
	if err != nil {
		t.Fatalf("DeleteBefore: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
}
