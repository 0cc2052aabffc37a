package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/shelfwise/shelfwise-server/internal/store"
)

var _ store.Store = (*Store)(nil)

//go:embed schema.sql
var schemaSQL string

// dateLayout is the storage format for borrow/due/return dates. Loans are
// day-granular; created_at timestamps use RFC3339Nano.
const dateLayout = "2006-01-02"

// Store provides SQLite-backed persistence for the Shelfwise server.
//
// Every circulation operation that touches both the books and the
// borrow_records tables runs inside a single transaction, so the copy-count
// invariants hold at rest even under concurrent callers.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates a new SQLite store at the given path.
// It configures WAL mode, sets pragmas, and runs schema migrations.
func Open(path string, logger *slog.Logger) (*Store, error) {
	// _txlock=immediate makes transactions take the write lock up front,
	// so concurrent circulation ops queue on busy_timeout instead of
	// failing mid-transaction on lock upgrade. The _pragma options apply
	// per connection, which an Exec'd PRAGMA would not.
	dsn := path + "?_txlock=immediate" +
		"&_pragma=foreign_keys(1)" +
		"&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite allows a single writer.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// BackupTo writes a consistent snapshot of the database to path. VACUUM
// INTO takes its own read transaction, so snapshots are safe while the
// server keeps serving writes.
func (s *Store) BackupTo(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", path); err != nil {
		return fmt.Errorf("vacuum into %s: %w", path, err)
	}
	return nil
}

// formatTime formats a time.Time to RFC3339Nano for storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime parses a RFC3339Nano string back to time.Time.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// formatDate formats a date-granular time.Time for storage.
func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// parseDate parses a stored date back to time.Time.
func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

// parseNullableDate parses an optional date column.
func parseNullableDate(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseDate(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// nullDateString returns a sql.NullString from a *time.Time date.
func nullDateString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatDate(*t), Valid: true}
}

// nullString returns a sql.NullString, NULL for the empty string.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullInt returns a sql.NullInt64 from an *int.
func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
