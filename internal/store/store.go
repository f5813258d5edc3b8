package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/ncruces/go-sqlite3/driver"
)

// ErrIncompatibleStore is returned by Open when an existing database carries
// a schema version this build does not understand.
var ErrIncompatibleStore = errors.New("store: incompatible schema version")

// Store is the embedded relational store: the coordination engine's working
// set and execution substrate. A Store owns one pooled *sql.DB used for
// CRUD and administrative work; the coordination engine opens additional,
// single-connection handles (see WorkerConn) for partitioned self-joins so
// that per-connection temp tables and registered predicates stay isolated
// per worker.
type Store struct {
	// writerMu serializes the per-batch "append local_network into target"
	// step described by the coordination engine's partitioning discipline.
	// It is exported via WriterMutex so engine workers holding their own
	// *sql.DB handle can still serialize against the same critical section.
	writerMu sync.Mutex

	db   *sql.DB
	path string
}

// Open creates or opens a store at path (use ":memory:" for an ephemeral
// store). Schema creation is idempotent; a pre-existing store stamped with
// an incompatible schema version is a fatal error.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	// SQLite has no real concept of concurrent writers; pinning the pool to
	// one physical connection avoids "database is locked" contention and,
	// for an in-memory store, keeps every caller on the same database
	// instance (":memory:" opens a distinct database per connection
	// otherwise).
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.checkOrSeedVersion(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) checkOrSeedVersion() error {
	var version string
	err := s.db.QueryRow(`select value from metadata where property = 'version'`).Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err := s.db.Exec(`insert into metadata(property, value) values ('version', ?)`, schemaVersion)
		return err
	case err != nil:
		return fmt.Errorf("store: read schema version: %w", err)
	case version != schemaVersion:
		return fmt.Errorf("%w: on-disk version %s, expected %s", ErrIncompatibleStore, version, schemaVersion)
	}
	return nil
}

// Path returns the DSN this store was opened with.
func (s *Store) Path() string { return s.path }

// DB returns the underlying connection pool, for packages (ingest, output)
// that only need ordinary CRUD without custom scalar predicates.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// WriterMutex returns the mutex serializing writes to per-network edge
// tables across every connection touching this store's file, per the
// "single-writer discipline enforced by an external mutex" in the
// specification's concurrency model.
func (s *Store) WriterMutex() *sync.Mutex { return &s.writerMu }

// WithTx runs fn in a transaction, committing on success and rolling back on
// any error (including a panic, which is re-raised after rollback).
func (s *Store) WithTx(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}
