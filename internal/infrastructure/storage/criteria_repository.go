package storage

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"LandScout/internal/domain"
	"LandScout/internal/ports"
)

// CriteriaRepository persists scoring criteria.
type CriteriaRepository struct {
	db  *DB
	now func() time.Time
}

var _ ports.WeightRepository = (*CriteriaRepository)(nil)

// NewCriteriaRepository wires a database handle.
func NewCriteriaRepository(db *DB) *CriteriaRepository {
	return &CriteriaRepository{db: db, now: time.Now}
}

// ListActive returns the active weights. Rows with names the engine does not
// know are ignored.
func (r *CriteriaRepository) ListActive(ctx context.Context) (domain.Weights, error) {
	query, args, err := r.db.Dialect.builder().
		Select("criteria_name", "weight").
		From("scoring_criteria").
		Where(sq.Eq{"active": true}).
		OrderBy("criteria_name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build criteria query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query criteria: %w", err)
	}
	defer rows.Close()

	weights := domain.Weights{}
	for rows.Next() {
		var (
			name   string
			weight float64
		)
		if err := rows.Scan(&name, &weight); err != nil {
			return nil, fmt.Errorf("scan criterion: %w", err)
		}
		criterion, err := domain.ParseCriterionName(name)
		if err != nil {
			continue
		}
		weights[criterion] = weight
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return weights, nil
}

// List returns every stored criterion ordered by name, inactive ones included.
func (r *CriteriaRepository) List(ctx context.Context) ([]domain.Criterion, error) {
	query, args, err := r.db.Dialect.builder().
		Select("criteria_name", "weight", "active", "updated_at").
		From("scoring_criteria").
		OrderBy("criteria_name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build criteria query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query criteria: %w", err)
	}
	defer rows.Close()

	var criteria []domain.Criterion
	for rows.Next() {
		var (
			c         domain.Criterion
			name      string
			updatedAt string
		)
		if err := rows.Scan(&name, &c.Weight, &c.Active, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan criterion: %w", err)
		}
		if c.Name, err = domain.ParseCriterionName(name); err != nil {
			continue
		}
		if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, fmt.Errorf("criterion %s: %w", name, err)
		}
		criteria = append(criteria, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return criteria, nil
}

// Upsert writes all criteria by name in one transaction.
func (r *CriteriaRepository) Upsert(ctx context.Context, criteria ...domain.Criterion) error {
	if len(criteria) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin criteria tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := r.now()
	for _, c := range criteria {
		updatedAt := c.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = now
		}
		query, args, err := r.db.Dialect.builder().
			Insert("scoring_criteria").
			Columns("criteria_name", "weight", "active", "updated_at").
			Values(string(c.Name), c.Weight, c.Active, formatTime(updatedAt)).
			Suffix("ON CONFLICT (criteria_name) DO UPDATE SET weight = EXCLUDED.weight, active = EXCLUDED.active, updated_at = EXCLUDED.updated_at").
			ToSql()
		if err != nil {
			return fmt.Errorf("build criterion upsert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert criterion %s: %w", c.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit criteria: %w", err)
	}
	return nil
}
