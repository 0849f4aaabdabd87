package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLite {
	t.Helper()
	db, err := Open(Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	s := NewSQLite(db)
	s.Now = func() time.Time { return time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC) }
	return s
}

func TestCreateAndGetEntity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e, err := s.CreateEntity(ctx, "project", "active", map[string]any{"name": "Atlas"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if e.Version != 1 {
		t.Fatalf("expected version 1, got %d", e.Version)
	}

	got, err := s.Entity(ctx, e.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(got.Data, &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc["name"] != "Atlas" {
		t.Fatalf("expected name Atlas, got %v", doc["name"])
	}

	if _, err := s.Entity(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateEntityMergesPatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e, err := s.CreateEntity(ctx, "project", "active", map[string]any{"name": "Atlas", "risk_score": 40.0})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := s.UpdateEntity(ctx, e.ID, e.Version, map[string]any{"priority_score": 74.0, "risk_score": nil})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Version != 2 {
		t.Fatalf("expected version 2, got %d", updated.Version)
	}
	var doc map[string]any
	if err := json.Unmarshal(updated.Data, &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc["name"] != "Atlas" {
		t.Fatalf("merge lost untouched key, got %v", doc["name"])
	}
	if doc["priority_score"] != 74.0 {
		t.Fatalf("expected priority_score 74, got %v", doc["priority_score"])
	}
	if _, ok := doc["risk_score"]; ok {
		t.Fatalf("nil patch value should remove the key")
	}
}

func TestUpdateEntityStaleVersion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e, err := s.CreateEntity(ctx, "task", "todo", map[string]any{"title": "design review"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.UpdateEntity(ctx, e.ID, e.Version, map[string]any{"estimated_hours": 8}); err != nil {
		t.Fatalf("first update: %v", err)
	}
	_, err = s.UpdateEntity(ctx, e.ID, e.Version, map[string]any{"estimated_hours": 16})
	if !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}
}

func TestSoftDeleteHidesEntity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e, err := s.CreateEntity(ctx, "person", "active", map[string]any{"name": "Dana"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	gone, err := s.UpdateStatus(ctx, e.ID, e.Version, "deleted")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if gone.Status != "deleted" || gone.Version != e.Version+1 {
		t.Fatalf("delete must report the final row state, got %+v", gone)
	}
	if _, err := s.UpdateStatus(ctx, e.ID, gone.Version, "active"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("status change on a deleted entity: got %v, want ErrNotFound", err)
	}
	if _, err := s.Entity(ctx, e.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	people, err := s.EntitiesByKind(ctx, "person", "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(people) != 0 {
		t.Fatalf("deleted entity surfaced in list")
	}
}

func TestLinksAndBacklinks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task, _ := s.CreateEntity(ctx, "task", "todo", map[string]any{"title": "api"})
	skill, _ := s.CreateEntity(ctx, "skill", "active", map[string]any{"name": "go"})
	if err := s.CreateLink(ctx, task.ID, skill.ID, "task_requires_skill", map[string]any{"minimum_proficiency": 3, "is_mandatory": true}); err != nil {
		t.Fatalf("link: %v", err)
	}

	out, err := s.Linked(ctx, task.ID, "task_requires_skill")
	if err != nil {
		t.Fatalf("linked: %v", err)
	}
	if len(out) != 1 || out[0].Entity.ID != skill.ID {
		t.Fatalf("expected one linked skill, got %+v", out)
	}
	var payload struct {
		MinimumProficiency int  `json:"minimum_proficiency"`
		IsMandatory        bool `json:"is_mandatory"`
	}
	if err := json.Unmarshal(out[0].LinkData, &payload); err != nil {
		t.Fatalf("decode link data: %v", err)
	}
	if payload.MinimumProficiency != 3 || !payload.IsMandatory {
		t.Fatalf("unexpected link payload %+v", payload)
	}

	back, err := s.Backlinks(ctx, skill.ID, "task_requires_skill")
	if err != nil {
		t.Fatalf("backlinks: %v", err)
	}
	if len(back) != 1 || back[0].Entity.ID != task.ID {
		t.Fatalf("expected one backlink to the task, got %+v", back)
	}
}

func TestGraphQueryDependentCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, _ := s.CreateEntity(ctx, "task", "in_progress", map[string]any{"title": "schema"})
	b, _ := s.CreateEntity(ctx, "task", "todo", map[string]any{"title": "api"})
	c, _ := s.CreateEntity(ctx, "task", "done", map[string]any{"title": "spike"})
	s.CreateLink(ctx, a.ID, b.ID, "task_blocks", map[string]any{"dependency_type": "hard"})
	s.CreateLink(ctx, a.ID, c.ID, "task_blocks", map[string]any{"dependency_type": "hard"})

	rows, err := s.GraphQuery(ctx, GraphQuery{Pattern: PatternDependentCount, EntityID: a.ID})
	if err != nil {
		t.Fatalf("graph: %v", err)
	}
	// done dependents do not count
	if len(rows) != 1 || rows[0].Count != 1 {
		t.Fatalf("expected dependent count 1, got %+v", rows)
	}
}

func TestGraphQueryBlockingTasks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	hub, _ := s.CreateEntity(ctx, "task", "in_progress", map[string]any{"title": "auth"})
	for i := 0; i < 3; i++ {
		dep, _ := s.CreateEntity(ctx, "task", "todo", map[string]any{"title": "dep"})
		s.CreateLink(ctx, hub.ID, dep.ID, "task_blocks", nil)
	}
	quiet, _ := s.CreateEntity(ctx, "task", "in_progress", map[string]any{"title": "docs"})
	dep, _ := s.CreateEntity(ctx, "task", "todo", map[string]any{"title": "dep"})
	s.CreateLink(ctx, quiet.ID, dep.ID, "task_blocks", nil)

	rows, err := s.GraphQuery(ctx, GraphQuery{Pattern: PatternBlockingTasks, MinDependents: 3})
	if err != nil {
		t.Fatalf("graph: %v", err)
	}
	if len(rows) != 1 || rows[0].EntityID != hub.ID || rows[0].Count != 3 {
		t.Fatalf("expected only the hub task with 3 dependents, got %+v", rows)
	}
}
