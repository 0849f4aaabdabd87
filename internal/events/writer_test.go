package events

import (
	"context"
	"testing"
	"time"

	"planwise/internal/store"
)

func newTestWriter(t *testing.T) (context.Context, Writer) {
	t.Helper()
	db, err := store.Open(store.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := store.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	w := Writer{DB: db, Now: func() time.Time {
		return time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	}}
	return context.Background(), w
}

func TestAppendAndTail(t *testing.T) {
	ctx, w := newTestWriter(t)
	if err := w.Append(ctx, "priority.recalculated", "", "", Payload{"updated": 3}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := w.Append(ctx, "sprint.plan_applied", "sprint", "s1", Payload{"selected": 4}); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := w.Latest(ctx, 10, "")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("events = %d, want 2", len(got))
	}
	if got[0].Type != "sprint.plan_applied" {
		t.Fatalf("newest first violated: %+v", got[0])
	}
	if got[0].EntityKind != "sprint" || got[0].EntityID != "s1" {
		t.Fatalf("entity columns lost: %+v", got[0])
	}
	if got[0].Payload["selected"] != float64(4) {
		t.Fatalf("payload mismatch: %+v", got[0].Payload)
	}
	if got[1].EntityKind != "" {
		t.Fatalf("empty entity kind round-tripped as %q", got[1].EntityKind)
	}
}

func TestLatestFiltersByType(t *testing.T) {
	ctx, w := newTestWriter(t)
	for _, evt := range []string{"nudges.generated", "conflicts.detected", "nudges.generated"} {
		if err := w.Append(ctx, evt, "", "", nil); err != nil {
			t.Fatalf("append %s: %v", evt, err)
		}
	}
	got, err := w.Latest(ctx, 10, "nudges.generated")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("filtered events = %d, want 2", len(got))
	}
	for _, e := range got {
		if e.Type != "nudges.generated" {
			t.Fatalf("filter leaked %q", e.Type)
		}
	}
}
