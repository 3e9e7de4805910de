package store_test

import (
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/stevemurr/dashstate/store"
)

// newMockStore creates a SqlStore over sqlmock with automatic expectation checking.
func newMockStore(t *testing.T, d store.Dialect) (*store.SqlStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS slots").WillReturnResult(sqlmock.NewResult(0, 0))
	s, err := store.NewSqlStoreFromDB(db, d)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return s, mock
}

var (
	upsertPostgres = regexp.QuoteMeta("INSERT INTO slots (slot, value) VALUES ($1, $2)")
	upsertSqlite   = regexp.QuoteMeta("INSERT INTO slots (slot, value) VALUES (?, ?)")
	selectPostgres = regexp.QuoteMeta("SELECT value FROM slots WHERE slot = $1")
)

func TestPostgresSetUsesNumberedPlaceholders(t *testing.T) {
	s, mock := newMockStore(t, store.PostgresDialect)
	mock.ExpectExec(upsertPostgres).WithArgs("updates", "[]").WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.Set("updates", "[]"); err != nil {
		t.Fatal(err)
	}
}

func TestPostgresGet(t *testing.T) {
	s, mock := newMockStore(t, store.PostgresDialect)
	mock.ExpectQuery(selectPostgres).WithArgs("updates").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("[]"))
	mock.ExpectQuery(selectPostgres).WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	v, ok, err := s.Get("updates")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || v != "[]" {
		t.Fatalf("expected [], got %q (ok=%v)", v, ok)
	}

	_, ok, err = s.Get("missing")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected missing slot")
	}
}

func TestPostgresDiskFullIsQuotaExceeded(t *testing.T) {
	s, mock := newMockStore(t, store.PostgresDialect)
	mock.ExpectExec(upsertPostgres).WithArgs("updates", "[]").
		WillReturnError(&pq.Error{Code: "53100", Message: "could not extend file"})

	err := s.Set("updates", "[]")
	if !errors.Is(err, store.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
}

func TestPostgresOtherErrorsPassThrough(t *testing.T) {
	s, mock := newMockStore(t, store.PostgresDialect)
	mock.ExpectExec(upsertPostgres).WithArgs("updates", "[]").
		WillReturnError(&pq.Error{Code: "42P01", Message: "relation does not exist"})

	err := s.Set("updates", "[]")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, store.ErrQuotaExceeded) {
		t.Fatalf("did not expect ErrQuotaExceeded, got %v", err)
	}
}

func TestSqliteFullIsQuotaExceeded(t *testing.T) {
	s, mock := newMockStore(t, store.SqliteDialect)
	mock.ExpectExec(upsertSqlite).WithArgs("updates", "[]").
		WillReturnError(sqlite3.Error{Code: sqlite3.ErrFull})

	err := s.Set("updates", "[]")
	if !errors.Is(err, store.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
}

func TestSqlKeys(t *testing.T) {
	s, mock := newMockStore(t, store.PostgresDialect)
	mock.ExpectQuery("SELECT slot FROM slots ORDER BY slot").
		WillReturnRows(sqlmock.NewRows([]string{"slot"}).AddRow("updates").AddRow("updates_backup"))

	keys, err := s.Keys()
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 || keys[0] != "updates" || keys[1] != "updates_backup" {
		t.Fatalf("unexpected keys %v", keys)
	}
}

func TestCreateTableFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS slots").WillReturnError(errors.New("permission denied"))
	mock.ExpectClose()

	if _, err := store.NewSqlStoreFromDB(db, store.PostgresDialect); err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
