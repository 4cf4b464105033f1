package remote

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	_ "modernc.org/sqlite"
)

//go:embed migrations/sqlite/001_kv.sql
var kvSchema string

// Execer is an interface for executing SQL statements
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// ExecQuerier combines both Execer and sqlscan.Querier interfaces
type ExecQuerier interface {
	Execer
	sqlscan.Querier
}

// Entry is one row of the kv table
type Entry struct {
	Key       string    `db:"key"`
	Value     string    `db:"value"`
	UpdatedAt time.Time `db:"updated_at"`
}

// SQLiteStore is a Store kept in a SQLite file, for setups where the shared
// store is a database file on a network share
type SQLiteStore struct {
	path string
	db   *sql.DB
}

// OpenSQLite opens or creates the database at path and applies migrations
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one connection keeps ":memory:" databases shared and writes ordered
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{path: path, db: db}
	if err := store.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	e, err := GetEntry(ctx, s.db, key)
	if err != nil {
		return "", false, err
	}
	if e == nil {
		return "", false, nil
	}
	return e.Value, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	return PutEntry(ctx, s.db, key, value, time.Now().UTC())
}

func (s *SQLiteStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	return ListKeys(ctx, s.db, prefix)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetEntry returns the row for key, or nil when it does not exist
func GetEntry(ctx context.Context, db sqlscan.Querier, key string) (*Entry, error) {
	var e Entry
	err := sqlscan.Get(ctx, db, &e, `SELECT key, value, updated_at FROM kv WHERE key = ?`, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

// PutEntry inserts or replaces the value of key
func PutEntry(ctx context.Context, db Execer, key, value string, at time.Time) error {
	query := `INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	_, err := db.ExecContext(ctx, query, key, value, at)
	return err
}

// ListKeys returns the keys starting with prefix in ascending order
func ListKeys(ctx context.Context, db sqlscan.Querier, prefix string) ([]string, error) {
	var keys []string
	err := sqlscan.Select(ctx, db, &keys, `SELECT key FROM kv WHERE substr(key, 1, length(?)) = ? ORDER BY key`, prefix, prefix)
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// runMigrations applies pending schema migrations
func (s *SQLiteStore) runMigrations() error {
	createMigrationsTable := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`
	if _, err := s.db.Exec(createMigrationsTable); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var applied []int
	if err := sqlscan.Select(context.Background(), s.db, &applied, "SELECT version FROM schema_migrations ORDER BY version"); err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, extractUpMigration(kvSchema)},
	}

	for _, migration := range migrations {
		if contains(applied, migration.version) {
			continue
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		if _, err := tx.Exec(migration.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", migration.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.version, err)
		}
	}
	return nil
}

// extractUpMigration extracts the Up section of a goose-format file
func extractUpMigration(content string) string {
	var up []string
	inUp := false
	inStatement := false

	for _, line := range strings.Split(content, "\n") {
		switch {
		case strings.Contains(line, "-- +goose Up"):
			inUp = true
		case strings.Contains(line, "-- +goose Down"):
			return strings.Join(up, "\n")
		case strings.Contains(line, "-- +goose StatementBegin"):
			inStatement = true
		case strings.Contains(line, "-- +goose StatementEnd"):
			inStatement = false
		case inUp && inStatement:
			up = append(up, line)
		}
	}
	return strings.Join(up, "\n")
}

func contains(slice []int, value int) bool {
	for _, v := range slice {
		if v == value {
			return true
		}
	}
	return false
}
