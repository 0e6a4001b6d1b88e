// Package sqlite provides a SQLite-backed record store. It reuses the
// in-memory transactional engine and snapshots the full state to a single
// table as JSON after every successful commit.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"liveview/internal/infra/persistence/memory"
	"liveview/pkg/results"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Compile-time contract assertion ensuring the store satisfies the results
// persistence interface.
var _ results.RecordStore = (*Store)(nil)

const snapshotBucket = "snapshot"

// Store persists the in-memory state to a SQLite file.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore constructs a snapshotting SQLite-backed record store, creating
// parent directories and hydrating any existing snapshot.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "liveview.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create state table: %w", err)
	}
	s := &Store{Store: memory.NewStore(), db: db, path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) load() error {
	var payload []byte
	err := s.db.QueryRow(`SELECT payload FROM state WHERE bucket = ?`, snapshotBucket).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	var snapshot memory.Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	s.ImportState(snapshot)
	return nil
}

func (s *Store) persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.ExportState()
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if _, err := s.db.Exec(
		`INSERT INTO state(bucket, payload) VALUES(?, ?)
		 ON CONFLICT(bucket) DO UPDATE SET payload = excluded.payload`,
		snapshotBucket, payload,
	); err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

// RunInTransaction applies fn via the embedded store, then snapshots to
// SQLite when the commit succeeds. The durable snapshot is best effort behind
// the in-memory state: when persist fails the commit has already been applied
// and delivered to observers, so the returned error signals a stale snapshot
// that heals on the next successful commit, not a rolled-back commit.
func (s *Store) RunInTransaction(ctx context.Context, fn func(results.Transaction) error) (results.Commit, error) {
	commit, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return commit, err
	}
	if err := s.persist(); err != nil {
		return commit, err
	}
	return commit, nil
}
