// Package production provides host-facing adapters for C7's optional
// interfaces (core.Persister, core.EventPublisher, core.Visualizer) plus a
// Prometheus metrics hook, grounded on the teacher's internal/production
// package of the same shape.
package production

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
	"gopkg.in/yaml.v3"

	"github.com/scxmlgo/scxml/internal/core"
)

// JSONPersister is a file-based core.Persister using one JSON file per
// session, named after its session id.
type JSONPersister struct {
	dir string
}

// NewJSONPersister creates a JSONPersister, ensuring dir exists.
func NewJSONPersister(dir string) (*JSONPersister, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return &JSONPersister{dir: dir}, nil
}

func (p *JSONPersister) Save(ctx context.Context, snapshot core.Snapshot) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	fn := filepath.Join(p.dir, snapshot.SessionID+".json")
	if err := os.WriteFile(fn, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", fn, err)
	}
	return nil
}

func (p *JSONPersister) Load(ctx context.Context, sessionID string) (core.Snapshot, error) {
	fn := filepath.Join(p.dir, sessionID+".json")
	data, err := os.ReadFile(fn)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return core.Snapshot{}, fmt.Errorf("session %q: %w", sessionID, os.ErrNotExist)
		}
		return core.Snapshot{}, fmt.Errorf("read %s: %w", fn, err)
	}
	var snapshot core.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return core.Snapshot{}, fmt.Errorf("json unmarshal: %w", err)
	}
	return snapshot, nil
}

// YAMLPersister is a file-based core.Persister using YAML serialization,
// kept alongside JSONPersister for hosts that want human-editable snapshots.
type YAMLPersister struct {
	dir string
}

// NewYAMLPersister creates a YAMLPersister, ensuring dir exists.
func NewYAMLPersister(dir string) (*YAMLPersister, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return &YAMLPersister{dir: dir}, nil
}

func (p *YAMLPersister) Save(ctx context.Context, snapshot core.Snapshot) error {
	data, err := yaml.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("yaml marshal: %w", err)
	}
	fn := filepath.Join(p.dir, snapshot.SessionID+".yaml")
	if err := os.WriteFile(fn, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", fn, err)
	}
	return nil
}

func (p *YAMLPersister) Load(ctx context.Context, sessionID string) (core.Snapshot, error) {
	fn := filepath.Join(p.dir, sessionID+".yaml")
	data, err := os.ReadFile(fn)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return core.Snapshot{}, fmt.Errorf("session %q: %w", sessionID, os.ErrNotExist)
		}
		return core.Snapshot{}, fmt.Errorf("read %s: %w", fn, err)
	}
	var snapshot core.Snapshot
	if err := yaml.Unmarshal(data, &snapshot); err != nil {
		return core.Snapshot{}, fmt.Errorf("yaml unmarshal: %w", err)
	}
	return snapshot, nil
}

// SQLitePersister is a core.Persister backed by a single SQLite table, one
// row per session keyed by session id — the teacher never shipped a
// database-backed persister; this wires modernc.org/sqlite (the pure-Go
// driver already required by go.mod) into a concrete component rather than
// leaving it an unused dependency.
type SQLitePersister struct {
	db *sql.DB
}

// NewSQLitePersister opens (creating if absent) a SQLite database at path
// and ensures its schema exists.
func NewSQLitePersister(path string) (*SQLitePersister, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	const schema = `CREATE TABLE IF NOT EXISTS snapshots (
		session_id TEXT PRIMARY KEY,
		data       TEXT NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &SQLitePersister{db: db}, nil
}

// Close releases the underlying database handle.
func (p *SQLitePersister) Close() error {
	return p.db.Close()
}

func (p *SQLitePersister) Save(ctx context.Context, snapshot core.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO snapshots (session_id, data) VALUES (?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET data = excluded.data`,
		snapshot.SessionID, string(data))
	if err != nil {
		return fmt.Errorf("sqlite save: %w", err)
	}
	return nil
}

func (p *SQLitePersister) Load(ctx context.Context, sessionID string) (core.Snapshot, error) {
	var data string
	err := p.db.QueryRowContext(ctx, `SELECT data FROM snapshots WHERE session_id = ?`, sessionID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Snapshot{}, fmt.Errorf("session %q: %w", sessionID, os.ErrNotExist)
	}
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("sqlite load: %w", err)
	}
	var snapshot core.Snapshot
	if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
		return core.Snapshot{}, fmt.Errorf("json unmarshal: %w", err)
	}
	return snapshot, nil
}
