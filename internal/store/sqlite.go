package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const defaultDBName = "planwise.db"

type Config struct {
	Workspace string
}

func dbPath(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, ".planwise", defaultDBName)
}

// EnsureWorkspace creates the workspace directory if missing.
func EnsureWorkspace(workspace string) (string, error) {
	path := filepath.Join(workspace, ".planwise")
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

// Open opens the SQLite database with foreign keys on.
func Open(cfg Config) (*sql.DB, error) {
	if _, err := EnsureWorkspace(cfg.Workspace); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=foreign_keys(1)", dbPath(cfg.Workspace))
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Path returns the db path for the workspace.
func Path(workspace string) string {
	return dbPath(workspace)
}

// SQLite is the reference Store backend.
type SQLite struct {
	DB  *sql.DB
	Now func() time.Time
}

func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{DB: db, Now: time.Now}
}

func (s *SQLite) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

const entityColumns = `id,kind,status,version,data,created_at,updated_at`

func scanEntity(scan func(dest ...any) error) (Entity, error) {
	var e Entity
	var data, createdAt, updatedAt string
	if err := scan(&e.ID, &e.Kind, &e.Status, &e.Version, &data, &createdAt, &updatedAt); err != nil {
		return e, err
	}
	e.Data = json.RawMessage(data)
	var err error
	if e.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return e, fmt.Errorf("parse created_at: %w", err)
	}
	if e.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return e, fmt.Errorf("parse updated_at: %w", err)
	}
	return e, nil
}

func (s *SQLite) EntitiesByKind(ctx context.Context, kind, status string) ([]Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE kind=? AND status!='deleted'`
	args := []any{kind}
	if status != "" {
		query += ` AND status=?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at, id`
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Entity
	for rows.Next() {
		e, err := scanEntity(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func (s *SQLite) Entity(ctx context.Context, id string) (Entity, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM entities WHERE id=? AND status!='deleted'`, id)
	e, err := scanEntity(row.Scan)
	if err == sql.ErrNoRows {
		return e, ErrNotFound
	}
	return e, err
}

func (s *SQLite) neighbours(ctx context.Context, query, id, linkType string) ([]Linked, error) {
	rows, err := s.DB.QueryContext(ctx, query, id, linkType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Linked
	for rows.Next() {
		var l Linked
		var data, createdAt, updatedAt, linkData string
		if err := rows.Scan(&l.Entity.ID, &l.Entity.Kind, &l.Entity.Status, &l.Entity.Version, &data, &createdAt, &updatedAt, &linkData); err != nil {
			return nil, err
		}
		l.Entity.Data = json.RawMessage(data)
		if l.Entity.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		if l.Entity.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
			return nil, fmt.Errorf("parse updated_at: %w", err)
		}
		l.LinkData = json.RawMessage(linkData)
		res = append(res, l)
	}
	return res, rows.Err()
}

func (s *SQLite) Linked(ctx context.Context, sourceID, linkType string) ([]Linked, error) {
	return s.neighbours(ctx, `SELECT e.id,e.kind,e.status,e.version,e.data,e.created_at,e.updated_at,l.data
FROM links l JOIN entities e ON e.id=l.target_id
WHERE l.source_id=? AND l.link_type=? AND e.status!='deleted'
ORDER BY l.created_at, e.id`, sourceID, linkType)
}

func (s *SQLite) Backlinks(ctx context.Context, targetID, linkType string) ([]Linked, error) {
	return s.neighbours(ctx, `SELECT e.id,e.kind,e.status,e.version,e.data,e.created_at,e.updated_at,l.data
FROM links l JOIN entities e ON e.id=l.source_id
WHERE l.target_id=? AND l.link_type=? AND e.status!='deleted'
ORDER BY l.created_at, e.id`, targetID, linkType)
}

func (s *SQLite) CreateEntity(ctx context.Context, kind, status string, data any) (Entity, error) {
	if kind == "" {
		return Entity{}, fmt.Errorf("entity kind required")
	}
	if status == "" {
		status = "active"
	}
	payload := []byte(`{}`)
	if data != nil {
		var err error
		payload, err = json.Marshal(data)
		if err != nil {
			return Entity{}, fmt.Errorf("marshal entity data: %w", err)
		}
	}
	e := Entity{
		ID:        uuid.NewString(),
		Kind:      kind,
		Status:    status,
		Version:   1,
		Data:      payload,
		CreatedAt: s.now(),
		UpdatedAt: s.now(),
	}
	_, err := s.DB.ExecContext(ctx, `INSERT INTO entities(id,kind,status,version,data,created_at,updated_at) VALUES (?,?,?,?,?,?,?)`,
		e.ID, e.Kind, e.Status, e.Version, string(e.Data), e.CreatedAt.Format(time.RFC3339), e.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return Entity{}, fmt.Errorf("create %s: %w", kind, err)
	}
	return e, nil
}

// UpdateEntity merges patch keys into the JSON payload. A nil patch
// value removes the key. The row version must match or the update is
// rejected with ErrVersionMismatch.
func (s *SQLite) UpdateEntity(ctx context.Context, id string, version int64, patch map[string]any) (Entity, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return Entity{}, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM entities WHERE id=? AND status!='deleted'`, id)
	current, err := scanEntity(row.Scan)
	if err == sql.ErrNoRows {
		return Entity{}, ErrNotFound
	}
	if err != nil {
		return Entity{}, err
	}
	if current.Version != version {
		return Entity{}, fmt.Errorf("update %s at version %d, have %d: %w", id, version, current.Version, ErrVersionMismatch)
	}

	var doc map[string]any
	if err := json.Unmarshal(current.Data, &doc); err != nil {
		return Entity{}, fmt.Errorf("decode entity data: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	for k, v := range patch {
		if v == nil {
			delete(doc, k)
			continue
		}
		doc[k] = v
	}
	merged, err := json.Marshal(doc)
	if err != nil {
		return Entity{}, fmt.Errorf("encode entity data: %w", err)
	}

	now := s.now()
	res, err := tx.ExecContext(ctx, `UPDATE entities SET data=?, version=version+1, updated_at=? WHERE id=? AND version=?`,
		string(merged), now.Format(time.RFC3339), id, version)
	if err != nil {
		return Entity{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Entity{}, ErrVersionMismatch
	}
	if err := tx.Commit(); err != nil {
		return Entity{}, err
	}
	current.Data = merged
	current.Version = version + 1
	current.UpdatedAt = now
	return current, nil
}

// UpdateStatus moves an entity to a new status, including 'deleted'.
// The returned Entity reflects the row after the move, so a soft
// delete still reports its final state to the caller.
func (s *SQLite) UpdateStatus(ctx context.Context, id string, version int64, status string) (Entity, error) {
	if status == "" {
		return Entity{}, fmt.Errorf("status required")
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return Entity{}, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM entities WHERE id=? AND status!='deleted'`, id)
	current, err := scanEntity(row.Scan)
	if err == sql.ErrNoRows {
		return Entity{}, ErrNotFound
	}
	if err != nil {
		return Entity{}, err
	}
	if current.Version != version {
		return Entity{}, fmt.Errorf("set status of %s at version %d, have %d: %w", id, version, current.Version, ErrVersionMismatch)
	}

	now := s.now()
	res, err := tx.ExecContext(ctx, `UPDATE entities SET status=?, version=version+1, updated_at=? WHERE id=? AND version=?`,
		status, now.Format(time.RFC3339), id, version)
	if err != nil {
		return Entity{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Entity{}, ErrVersionMismatch
	}
	if err := tx.Commit(); err != nil {
		return Entity{}, err
	}
	current.Status = status
	current.Version = version + 1
	current.UpdatedAt = now
	return current, nil
}

func (s *SQLite) CreateLink(ctx context.Context, sourceID, targetID, linkType string, data any) error {
	if linkType == "" {
		return fmt.Errorf("link type required")
	}
	payload := []byte(`{}`)
	if data != nil {
		var err error
		payload, err = json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal link data: %w", err)
		}
	}
	_, err := s.DB.ExecContext(ctx, `INSERT INTO links(source_id,target_id,link_type,data,created_at) VALUES (?,?,?,?,?)
ON CONFLICT(source_id,target_id,link_type) DO UPDATE SET data=excluded.data`,
		sourceID, targetID, linkType, string(payload), s.now().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("link %s -[%s]-> %s: %w", sourceID, linkType, targetID, err)
	}
	return nil
}

func (s *SQLite) GraphQuery(ctx context.Context, q GraphQuery) ([]GraphRow, error) {
	switch q.Pattern {
	case PatternDependentCount:
		linkType := q.LinkType
		if linkType == "" {
			linkType = "task_blocks"
		}
		row := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM links l
JOIN entities e ON e.id=l.target_id
WHERE l.source_id=? AND l.link_type=? AND e.status NOT IN ('done','completed','deleted')`, q.EntityID, linkType)
		var count int
		if err := row.Scan(&count); err != nil {
			return nil, err
		}
		return []GraphRow{{EntityID: q.EntityID, Count: count}}, nil
	case PatternBlockingTasks:
		min := q.MinDependents
		if min <= 0 {
			min = 1
		}
		rows, err := s.DB.QueryContext(ctx, `SELECT l.source_id, COUNT(*) AS c FROM links l
JOIN entities src ON src.id=l.source_id
JOIN entities dst ON dst.id=l.target_id
WHERE l.link_type='task_blocks'
  AND src.status IN ('todo','in_progress')
  AND dst.status NOT IN ('done','completed','deleted')
GROUP BY l.source_id
HAVING c>=?
ORDER BY c DESC`, min)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		var res []GraphRow
		for rows.Next() {
			var r GraphRow
			if err := rows.Scan(&r.EntityID, &r.Count); err != nil {
				return nil, err
			}
			res = append(res, r)
		}
		return res, rows.Err()
	default:
		return nil, fmt.Errorf("unsupported graph pattern %q", q.Pattern)
	}
}
