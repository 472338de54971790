package storage

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"LandScout/internal/domain"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &DB{DB: db, Dialect: Postgres}, mock
}

func TestWatermarkRepository_PostgresUsesGreatest(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	store := NewWatermarkRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO mailbox_watermarks (scope,last_id,updated_at) VALUES ($1,$2,$3) ON CONFLICT (scope) DO UPDATE SET last_id = GREATEST(")).
		WithArgs("host|user|folder", int64(120), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.Set(context.Background(), "host|user|folder", 120); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestLandRepository_PostgresConflictIsDuplicate(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	repo := NewLandRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (source_id) DO NOTHING RETURNING id")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	land := &domain.Land{SourceID: "imap_3"}
	err := repo.Insert(context.Background(), land)
	if !errors.Is(err, domain.ErrDuplicateSource) {
		t.Fatalf("expected ErrDuplicateSource, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestWatermarkRepository_PostgresMissingScope(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	store := NewWatermarkRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT last_id FROM mailbox_watermarks WHERE scope = $1")).
		WithArgs("s").
		WillReturnRows(sqlmock.NewRows([]string{"last_id"}))

	got, err := store.Get(context.Background(), "s")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}
