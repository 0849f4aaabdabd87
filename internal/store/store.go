// Package store defines the data-access contract the schedulers run
// against: versioned typed entities with JSON payloads, typed links
// between them, and two graph-shaped dependency queries. The sqlite
// implementation in this package is the reference backend.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrVersionMismatch = errors.New("version mismatch")
)

// Entity is the stored envelope. Domain shape lives in Data; the
// envelope carries identity, lifecycle status and the optimistic
// concurrency version.
type Entity struct {
	ID        string
	Kind      string
	Status    string
	Version   int64
	Data      json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Linked pairs a neighbouring entity with the payload of the link
// that reached it.
type Linked struct {
	Entity   Entity
	LinkData json.RawMessage
}

// Graph query patterns.
const (
	// PatternDependentCount counts live entities the subject links to.
	PatternDependentCount = "dependent_count"
	// PatternBlockingTasks finds in-flight tasks blocking at least
	// MinDependents unfinished tasks.
	PatternBlockingTasks = "blocking_tasks"
)

type GraphQuery struct {
	Pattern       string
	EntityID      string
	LinkType      string
	MinDependents int
}

type GraphRow struct {
	EntityID string
	Count    int
}

// Store is the contract schedulers depend on. Soft-deleted entities
// never surface through any read. UpdateEntity merges the patch into
// the JSON payload and bumps the version; a stale version yields
// ErrVersionMismatch and the caller decides whether to retry.
type Store interface {
	EntitiesByKind(ctx context.Context, kind, status string) ([]Entity, error)
	Entity(ctx context.Context, id string) (Entity, error)
	Linked(ctx context.Context, sourceID, linkType string) ([]Linked, error)
	Backlinks(ctx context.Context, targetID, linkType string) ([]Linked, error)
	CreateEntity(ctx context.Context, kind, status string, data any) (Entity, error)
	UpdateEntity(ctx context.Context, id string, version int64, patch map[string]any) (Entity, error)
	UpdateStatus(ctx context.Context, id string, version int64, status string) (Entity, error)
	CreateLink(ctx context.Context, sourceID, targetID, linkType string, data any) error
	GraphQuery(ctx context.Context, q GraphQuery) ([]GraphRow, error)
}
