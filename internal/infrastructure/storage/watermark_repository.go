package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"LandScout/internal/domain"
	"LandScout/internal/ports"
)

// WatermarkRepository keeps mailbox watermarks in the database.
type WatermarkRepository struct {
	db  *DB
	now func() time.Time
}

var _ ports.WatermarkStore = (*WatermarkRepository)(nil)

// NewWatermarkRepository wires a database handle.
func NewWatermarkRepository(db *DB) *WatermarkRepository {
	return &WatermarkRepository{db: db, now: time.Now}
}

// Get returns 0 for a scope that has never been written.
func (r *WatermarkRepository) Get(ctx context.Context, scope string) (domain.ItemID, error) {
	query, args, err := r.db.Dialect.builder().
		Select("last_id").
		From("mailbox_watermarks").
		Where(sq.Eq{"scope": scope}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build watermark query: %w", err)
	}

	var last int64
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read watermark %s: %w", scope, err)
	}
	if last < 0 {
		return 0, nil
	}
	return domain.ItemID(last), nil
}

// Set stores value unless a larger one is already recorded.
func (r *WatermarkRepository) Set(ctx context.Context, scope string, value domain.ItemID) error {
	suffix := fmt.Sprintf(
		"ON CONFLICT (scope) DO UPDATE SET last_id = %s(mailbox_watermarks.last_id, EXCLUDED.last_id), updated_at = EXCLUDED.updated_at",
		r.db.Dialect.greatest(),
	)
	query, args, err := r.db.Dialect.builder().
		Insert("mailbox_watermarks").
		Columns("scope", "last_id", "updated_at").
		Values(scope, int64(value), formatTime(r.now())).
		Suffix(suffix).
		ToSql()
	if err != nil {
		return fmt.Errorf("build watermark upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("write watermark %s: %w", scope, err)
	}
	return nil
}
