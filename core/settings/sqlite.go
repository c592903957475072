package settings

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"
)

const settingsTable = "settings"

// SQLiteStore persists the record as key/value rows.
type SQLiteStore struct {
	db *sql.DB
	sq sq.StatementBuilderType
}

// OpenSQLite opens (creating if needed) the database at path and ensures the
// settings table exists. Use ":memory:" for a throwaway store.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("make db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection keeps ":memory:" databases alive and serializes writes
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create settings table: %w", err)
	}

	return &SQLiteStore{db: db, sq: sq.StatementBuilder}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load reads every row; a fresh database yields Default().
func (s *SQLiteStore) Load(ctx context.Context) (Settings, error) {
	query, args, err := s.sq.Select("key", "value").From(settingsTable).ToSql()
	if err != nil {
		return Settings{}, fmt.Errorf("build settings query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return Settings{}, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	fields := map[string]string{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return Settings{}, fmt.Errorf("scan settings row: %w", err)
		}
		fields[key] = value
	}
	if err := rows.Err(); err != nil {
		return Settings{}, fmt.Errorf("read settings rows: %w", err)
	}

	return FromFields(fields), nil
}

// Save replaces the record in one transaction. Stored API keys that are no
// longer present are removed.
func (s *SQLiteStore) Save(ctx context.Context, settings Settings) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin settings tx: %w", err)
	}

	if err := s.save(ctx, tx, settings.Fields()); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit settings: %w", err)
	}
	return nil
}

func (s *SQLiteStore) save(ctx context.Context, tx *sql.Tx, fields map[string]string) error {
	query, args, err := s.sq.Delete(settingsTable).Where(sq.Like{"key": "%" + apiKeySuffix}).ToSql()
	if err != nil {
		return fmt.Errorf("build key cleanup: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clear api keys: %w", err)
	}

	for key, value := range fields {
		query, args, err := s.sq.Insert(settingsTable).
			Columns("key", "value").
			Values(key, value).
			Suffix("ON CONFLICT(key) DO UPDATE SET value = excluded.value").
			ToSql()
		if err != nil {
			return fmt.Errorf("build upsert for %s: %w", key, err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("save setting %s: %w", key, err)
		}
	}
	return nil
}
