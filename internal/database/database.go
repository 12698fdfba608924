package database

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"music-librarian/internal/models"
)

//go:embed schema.sql
var schema string

// Store keeps the cross reference set in a SQLite table. It satisfies cache.Store.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates the database file if needed and applies the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := InitDatabase(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// InitDatabase runs the embedded schema and sets performance PRAGMAs
func InitDatabase(db *sql.DB) error {
	_, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL; PRAGMA cache_size=-2000;")
	if err != nil {
		return err
	}
	_, err = db.Exec(schema)
	return err
}

func (s *Store) Location() string { return s.path }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Load() ([]models.Record, error) {
	rows, err := s.db.Query(`
	SELECT name, COALESCE(remote_id, ''), COALESCE(local_id, ''), outcome
	FROM cross_refs
	ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query cross refs: %w", err)
	}
	defer rows.Close()

	var records []models.Record
	for rows.Next() {
		var r models.Record
		var outcome string
		if err := rows.Scan(&r.Name, &r.RemoteID, &r.LocalID, &outcome); err != nil {
			return nil, fmt.Errorf("scan cross ref: %w", err)
		}
		r.Outcome = models.Outcome(outcome)
		records = append(records, r)
	}
	return records, rows.Err()
}

// Save replaces the table contents with records inside one transaction, so a
// failed save leaves the previous set intact.
func (s *Store) Save(records []models.Record) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec("DELETE FROM cross_refs"); err != nil {
		return fmt.Errorf("clear cross refs: %w", err)
	}

	stmt, err := tx.Prepare(`
	INSERT INTO cross_refs (position, name, remote_id, local_id, outcome, last_updated)
	VALUES (?, ?, NULLIF(?, ''), NULLIF(?, ''), ?, CURRENT_TIMESTAMP)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		if _, err := stmt.Exec(i, r.Name, r.RemoteID, r.LocalID, string(r.Outcome)); err != nil {
			return fmt.Errorf("insert cross ref %q: %w", r.Name, err)
		}
	}
	return tx.Commit()
}
