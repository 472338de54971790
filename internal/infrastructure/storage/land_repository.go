package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"LandScout/internal/domain"
	"LandScout/internal/ports"
)

var landColumns = []string{
	"id", "source_id", "title", "url", "price", "area", "municipality", "land_type",
	"description", "legal_status", "received_at", "attributes", "score_total",
	"score_breakdown", "created_at", "updated_at",
}

// LandRepository persists Land records.
type LandRepository struct {
	db  *DB
	now func() time.Time
}

var _ ports.LandRepository = (*LandRepository)(nil)

// NewLandRepository wires a database handle.
func NewLandRepository(db *DB) *LandRepository {
	return &LandRepository{db: db, now: time.Now}
}

// FindBySourceID returns nil without error when no record matches.
func (r *LandRepository) FindBySourceID(ctx context.Context, sourceID string) (*domain.Land, error) {
	query, args, err := r.db.Dialect.builder().
		Select(landColumns...).
		From("lands").
		Where(sq.Eq{"source_id": sourceID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find query: %w", err)
	}

	land, err := scanLand(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find land %s: %w", sourceID, err)
	}
	return &land, nil
}

// Insert stores a new record. A source id that already exists yields
// domain.ErrDuplicateSource; the check and the write are one statement.
func (r *LandRepository) Insert(ctx context.Context, land *domain.Land) error {
	if land == nil {
		return fmt.Errorf("insert land: nil record")
	}
	attributes, breakdown, err := encodeJSON(*land)
	if err != nil {
		return err
	}

	now := r.now().UTC()
	query, args, err := r.db.Dialect.builder().
		Insert("lands").
		Columns(
			"source_id", "title", "url", "price", "area", "municipality", "land_type",
			"description", "legal_status", "received_at", "attributes", "score_total",
			"score_breakdown", "created_at", "updated_at",
		).
		Values(
			land.SourceID, land.Title, land.URL, land.Price, land.Area, land.Municipality, land.LandType,
			land.Description, land.LegalStatus, nullTime(land.ReceivedAt), attributes, land.ScoreTotal,
			breakdown, formatTime(now), formatTime(now),
		).
		Suffix("ON CONFLICT (source_id) DO NOTHING RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	var id int64
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("insert land %s: %w", land.SourceID, domain.ErrDuplicateSource)
	}
	if err != nil {
		return fmt.Errorf("insert land %s: %w", land.SourceID, err)
	}

	land.ID = id
	land.CreatedAt = now
	land.UpdatedAt = now
	return nil
}

// ListAll returns every record ordered by id.
func (r *LandRepository) ListAll(ctx context.Context) ([]domain.Land, error) {
	query, args, err := r.db.Dialect.builder().
		Select(landColumns...).
		From("lands").
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query lands: %w", err)
	}

	var result []domain.Land
	for rows.Next() {
		land, err := scanLand(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan land: %w", err)
		}
		result = append(result, land)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return result, nil
}

// Update rewrites the mutable fields of an existing record; source_id is immutable.
func (r *LandRepository) Update(ctx context.Context, land domain.Land) error {
	attributes, breakdown, err := encodeJSON(land)
	if err != nil {
		return err
	}

	query, args, err := r.db.Dialect.builder().
		Update("lands").
		SetMap(map[string]interface{}{
			"title":           land.Title,
			"url":             land.URL,
			"price":           land.Price,
			"area":            land.Area,
			"municipality":    land.Municipality,
			"land_type":       land.LandType,
			"description":     land.Description,
			"legal_status":    land.LegalStatus,
			"received_at":     nullTime(land.ReceivedAt),
			"attributes":      attributes,
			"score_total":     land.ScoreTotal,
			"score_breakdown": breakdown,
			"updated_at":      formatTime(r.now()),
		}).
		Where(sq.Eq{"id": land.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update land %d: %w", land.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update land %d: %w", land.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("update land %d: not found", land.ID)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLand(row rowScanner) (domain.Land, error) {
	var (
		land                 domain.Land
		price, area, score   sql.NullFloat64
		receivedAt           sql.NullString
		attributes, breakdwn string
		createdAt, updatedAt string
	)

	err := row.Scan(
		&land.ID, &land.SourceID, &land.Title, &land.URL, &price, &area, &land.Municipality,
		&land.LandType, &land.Description, &land.LegalStatus, &receivedAt, &attributes,
		&score, &breakdwn, &createdAt, &updatedAt,
	)
	if err != nil {
		return domain.Land{}, err
	}

	land.Price = floatPtr(price)
	land.Area = floatPtr(area)
	land.ScoreTotal = floatPtr(score)

	if receivedAt.Valid {
		if land.ReceivedAt, err = parseTime(receivedAt.String); err != nil {
			return domain.Land{}, err
		}
	}
	if land.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.Land{}, err
	}
	if land.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return domain.Land{}, err
	}

	if attributes != "" {
		if err := json.Unmarshal([]byte(attributes), &land.Attributes); err != nil {
			return domain.Land{}, fmt.Errorf("decode attributes: %w", err)
		}
	}
	if breakdwn != "" && breakdwn != "{}" {
		if err := json.Unmarshal([]byte(breakdwn), &land.Breakdown); err != nil {
			return domain.Land{}, fmt.Errorf("decode breakdown: %w", err)
		}
	}
	return land, nil
}

func encodeJSON(land domain.Land) (string, string, error) {
	attributes, err := json.Marshal(land.Attributes)
	if err != nil {
		return "", "", fmt.Errorf("encode attributes: %w", err)
	}
	breakdown := []byte("{}")
	if len(land.Breakdown) > 0 {
		if breakdown, err = json.Marshal(land.Breakdown); err != nil {
			return "", "", fmt.Errorf("encode breakdown: %w", err)
		}
	}
	return string(attributes), string(breakdown), nil
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
