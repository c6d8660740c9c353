package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/samber/oops"
	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, oops.Errorf("mkdir storage dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, oops.Errorf("sql.Open: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err = db.Exec(schema); err != nil {
		db.Close()
		return nil, oops.Errorf("failed to create kv table: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Get(key string) (string, bool, error) {
	var value string

	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}

		return "", false, oops.Errorf("select %s: %w", key, err)
	}

	return value, true, nil
}

func (s *SQLite) Set(key, value string) error {
	if _, err := s.db.Exec(
		`INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	); err != nil {
		return oops.Errorf("upsert %s: %w", key, err)
	}

	return nil
}

func (s *SQLite) Delete(keys ...string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return oops.Errorf("Begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, key := range keys {
		if _, err = tx.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
			return oops.Errorf("delete %s: %w", key, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return oops.Errorf("Commit: %w", err)
	}

	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
