package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Dialect captures the SQL differences between the supported databases.
type Dialect struct {
	Name   string
	Driver string

	// bind renders the n-th (1-based) placeholder.
	bind func(n int) string
	// full reports whether err means the database ran out of space.
	full func(err error) bool
}

var (
	SqliteDialect = Dialect{
		Name:   "sqlite",
		Driver: "sqlite3",
		bind:   func(int) string { return "?" },
		full: func(err error) bool {
			var se sqlite3.Error
			return errors.As(err, &se) && se.Code == sqlite3.ErrFull
		},
	}

	PostgresDialect = Dialect{
		Name:   "postgres",
		Driver: "postgres",
		bind:   func(n int) string { return fmt.Sprintf("$%d", n) },
		full: func(err error) bool {
			var pe *pq.Error
			// 53100 disk_full, 53200 out_of_memory
			return errors.As(err, &pe) && (pe.Code == "53100" || pe.Code == "53200")
		},
	}
)

// SqlStore stores all slots in a single table.
//
// Table:
//
//	slots(slot, value)  PRIMARY KEY (slot)
type SqlStore struct {
	mu      sync.RWMutex
	db      *sql.DB
	dialect Dialect
}

// NewSqliteStore opens (or creates) a SQLite database at dbPath.
func NewSqliteStore(dbPath string) (*SqlStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open(SqliteDialect.Driver, dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	return NewSqlStoreFromDB(db, SqliteDialect)
}

// NewPostgresStore connects to the database named by dsn.
func NewPostgresStore(dsn string) (*SqlStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres: dsn is required")
	}
	db, err := sql.Open(PostgresDialect.Driver, dsn)
	if err != nil {
		return nil, err
	}
	return NewSqlStoreFromDB(db, PostgresDialect)
}

// NewSqlStoreFromDB wraps an open handle and makes sure the slots table
// exists. The store takes ownership of db.
func NewSqlStoreFromDB(db *sql.DB, d Dialect) (*SqlStore, error) {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS slots (
		slot TEXT NOT NULL PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: create slots table: %w", d.Name, err)
	}
	return &SqlStore{db: db, dialect: d}, nil
}

func (s *SqlStore) q(query string) string {
	n := 0
	var b strings.Builder
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(s.dialect.bind(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SqlStore) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if s.dialect.full(err) {
		return fmt.Errorf("%s %s: %w: %v", s.dialect.Name, op, ErrQuotaExceeded, err)
	}
	return fmt.Errorf("%s %s: %w", s.dialect.Name, op, err)
}

func (s *SqlStore) Close() error {
	return s.db.Close()
}

func (s *SqlStore) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var value string
	err := s.db.QueryRow(s.q("SELECT value FROM slots WHERE slot = ?"), key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, s.wrap("get", err)
	}
	return value, true, nil
}

func (s *SqlStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		s.q(`INSERT INTO slots (slot, value) VALUES (?, ?)
		 ON CONFLICT(slot) DO UPDATE SET value = excluded.value`),
		key, value,
	)
	return s.wrap("set", err)
}

func (s *SqlStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(s.q("DELETE FROM slots WHERE slot = ?"), key)
	return s.wrap("delete", err)
}

func (s *SqlStore) Keys() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query("SELECT slot FROM slots ORDER BY slot")
	if err != nil {
		return nil, s.wrap("keys", err)
	}
	defer rows.Close()
	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
