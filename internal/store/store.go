package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"sync"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added index on notifications(recipient_id, created_at) for listener backlog reads
const currentSchemaVersion = 1

// Store provides durable storage for the LendHand collections.
// Uses SQLite with WAL mode for concurrent read access.
//
// Messages intentionally carry no foreign key to requests: deleting a
// request orphans its thread, and orphaned messages are kept as unreachable
// history rather than eagerly purged.
type Store struct {
	db *sql.DB

	// seq stamps every write with a strictly increasing value (CP-2).
	// Seeded from MAX(seq) across all tables at Open.
	seq atomic.Int64

	// writeMu serializes write+publish so the bus observes changes in seq
	// order. SQLite is single-writer anyway; this extends the ordering
	// guarantee to the in-process bus.
	writeMu sync.Mutex

	watchers *watcherSet
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// This function is idempotent - safe to call multiple times.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1) // Single writer to avoid SQLITE_BUSY errors
	db.SetMaxIdleConns(1) // Keep one connection ready

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{
		db:       db,
		watchers: newWatcherSet(),
	}

	last, err := lastSeq(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to seed seq counter: %w", err)
	}
	s.seq.Store(last)

	return s, nil
}

// Close detaches all watchers and closes the database connection.
// Watcher event channels are closed; Close is safe to call once watchers
// are no longer being attached.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	s.watchers.closeAll()
	return s.db.Close()
}

// CurrentSeq returns the last sequence number assigned to a write.
func (s *Store) CurrentSeq() int64 {
	return s.seq.Load()
}

// nextSeq assigns the next sequence number.
func (s *Store) nextSeq() int64 {
	return s.seq.Add(1)
}

// lastSeq reads the highest seq across all collections.
func lastSeq(db *sql.DB) (int64, error) {
	var last sql.NullInt64
	err := db.QueryRow(`
		SELECT MAX(m) FROM (
			SELECT MAX(seq) AS m FROM users
			UNION ALL SELECT MAX(seq) FROM requests
			UNION ALL SELECT MAX(seq) FROM messages
			UNION ALL SELECT MAX(seq) FROM notifications
		)
	`).Scan(&last)
	if err != nil {
		return 0, err
	}
	return last.Int64, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
		version = 1
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds the composite recipient/created_at index for existing
// databases. New databases get an equivalent plan from the single-column
// index, but the composite index keeps listener backlog reads ordered
// without a sort step.
func migrateToV1(db *sql.DB) error {
	// CREATE INDEX IF NOT EXISTS is safe - no-op if index exists
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_notifications_recipient_created
		ON notifications(recipient_id, created_at)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// Query executes a query and returns the resulting rows.
// This is a convenience wrapper around db.QueryContext for diagnostics.
// Callers are responsible for closing the returned rows.
func (s *Store) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
