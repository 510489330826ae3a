// Package snapshotstore keeps a local SQLite cache of recent graph snapshots
// so a graph can be reopened offline and its recent history inspected.
package snapshotstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/edumap/pkg/model"
)

// DefaultKeep is how many snapshots are retained per graph.
const DefaultKeep = 20

// ErrNotFound is returned when a graph or version has no cached snapshot.
var ErrNotFound = errors.New("snapshot not found")

// Store is a SQLite backed snapshot cache. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
	keep int
	now  func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithKeep sets the number of snapshots kept per graph. Values below 1 keep
// DefaultKeep.
func WithKeep(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.keep = n
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open opens (creating if needed) the cache database at path.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}
	// modernc.org/sqlite registers the "sqlite" driver.
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cannot open cache: %w", err)
	}
	// One connection keeps the pragmas in force and serialises writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	if err := createSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db, path: path, keep: DefaultKeep, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func createSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS graphs (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			graph_id TEXT NOT NULL,
			created_at TEXT NOT NULL,
			node_count INTEGER NOT NULL,
			body TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_graph ON snapshots(graph_id, id)`,
	}
	for _, q := range stmts {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save records snap as the newest version of graphID and prunes versions
// beyond the retention limit. An empty title keeps the stored one.
func (s *Store) Save(ctx context.Context, graphID, title string, snap model.Snapshot) (model.Version, error) {
	if graphID == "" {
		return model.Version{}, errors.New("save snapshot: empty graph id")
	}
	body, err := json.Marshal(snap)
	if err != nil {
		return model.Version{}, fmt.Errorf("encode snapshot: %w", err)
	}
	created := s.now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Version{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO graphs(id, title, updated_at) VALUES(?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   title = CASE WHEN excluded.title = '' THEN graphs.title ELSE excluded.title END,
		   updated_at = excluded.updated_at`,
		graphID, title, created); err != nil {
		return model.Version{}, fmt.Errorf("upsert graph: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots(graph_id, created_at, node_count, body) VALUES(?, ?, ?, ?)`,
		graphID, created, len(snap.Nodes), string(body))
	if err != nil {
		return model.Version{}, fmt.Errorf("insert snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Version{}, err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM snapshots WHERE graph_id = ? AND id NOT IN (
			SELECT id FROM snapshots WHERE graph_id = ? ORDER BY id DESC LIMIT ?
		)`, graphID, graphID, s.keep); err != nil {
		return model.Version{}, fmt.Errorf("prune snapshots: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.Version{}, err
	}
	return model.Version{ID: strconv.FormatInt(id, 10), CreatedAt: created, NodeCount: len(snap.Nodes)}, nil
}

// Latest returns the newest cached snapshot of graphID.
func (s *Store) Latest(ctx context.Context, graphID string) (model.Snapshot, model.Version, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, node_count, body FROM snapshots
		 WHERE graph_id = ? ORDER BY id DESC LIMIT 1`, graphID)
	return scanSnapshot(row)
}

// Get returns one specific cached version of graphID.
func (s *Store) Get(ctx context.Context, graphID, versionID string) (model.Snapshot, model.Version, error) {
	id, err := strconv.ParseInt(versionID, 10, 64)
	if err != nil {
		return model.Snapshot{}, model.Version{}, fmt.Errorf("version %q: %w", versionID, ErrNotFound)
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, node_count, body FROM snapshots
		 WHERE graph_id = ? AND id = ?`, graphID, id)
	return scanSnapshot(row)
}

func scanSnapshot(row *sql.Row) (model.Snapshot, model.Version, error) {
	var (
		id   int64
		v    model.Version
		body string
	)
	if err := row.Scan(&id, &v.CreatedAt, &v.NodeCount, &body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Snapshot{}, model.Version{}, ErrNotFound
		}
		return model.Snapshot{}, model.Version{}, err
	}
	v.ID = strconv.FormatInt(id, 10)

	var snap model.Snapshot
	if err := json.Unmarshal([]byte(body), &snap); err != nil {
		return model.Snapshot{}, model.Version{}, fmt.Errorf("decode snapshot %s: %w", v.ID, err)
	}
	return snap, v, nil
}

// Versions lists the cached versions of graphID, newest first.
func (s *Store) Versions(ctx context.Context, graphID string) ([]model.Version, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, node_count FROM snapshots
		 WHERE graph_id = ? ORDER BY id DESC`, graphID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Version
	for rows.Next() {
		var (
			id int64
			v  model.Version
		)
		if err := rows.Scan(&id, &v.CreatedAt, &v.NodeCount); err != nil {
			return nil, err
		}
		v.ID = strconv.FormatInt(id, 10)
		out = append(out, v)
	}
	return out, rows.Err()
}

// Graphs lists every cached graph, most recently saved first.
func (s *Store) Graphs(ctx context.Context) ([]model.GraphSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title FROM graphs ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.GraphSummary
	for rows.Next() {
		var g model.GraphSummary
		if err := rows.Scan(&g.ID, &g.Title); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// Delete removes a graph and all of its snapshots.
func (s *Store) Delete(ctx context.Context, graphID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE graph_id = ?`, graphID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM graphs WHERE id = ?`, graphID); err != nil {
		return err
	}
	return tx.Commit()
}
