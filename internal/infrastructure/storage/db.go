package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// SchemaVersion is the current schema version.
const SchemaVersion = 1

// Dialect selects SQL flavour and driver.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// ParseDialect validates a configured driver name.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql", "pq":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", name)
	}
}

func (d Dialect) builder() sq.StatementBuilderType {
	if d == Postgres {
		return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

func (d Dialect) greatest() string {
	if d == Postgres {
		return "GREATEST"
	}
	return "max"
}

// DB couples a connection pool with its dialect.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// Open connects to the database and applies migrations. For SQLite a bare
// file path is accepted and its directory is created.
func Open(ctx context.Context, dialect Dialect, dsn string) (*DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("open: empty dsn")
	}

	if dialect == SQLite && !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("open: create db dir: %w", err)
		}
		dsn = "file:" + dsn + "?mode=rwc&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}

	conn, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("open: sql open: %w", err)
	}
	if dialect == SQLite {
		// sqlite allows a single writer
		conn.SetMaxOpenConns(1)
	}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open: ping: %w", err)
	}

	db := &DB{DB: conn, Dialect: dialect}
	if err := db.Migrate(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open: migrate: %w", err)
	}
	return db, nil
}

// Migrate ensures the schema exists and is at SchemaVersion.
func (db *DB) Migrate(ctx context.Context) error {
	if db == nil || db.DB == nil {
		return fmt.Errorf("migrate: db is nil")
	}

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY)`); err != nil {
		return fmt.Errorf("migrate: create schema_migrations: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("migrate: read current version: %w", err)
	}
	if current >= SchemaVersion {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate: begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range schema(db.Dialect) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %s: %w", firstLine(stmt), err)
		}
	}

	insert, args, err := db.Dialect.builder().Insert("schema_migrations").Columns("version").Values(SchemaVersion).ToSql()
	if err != nil {
		return fmt.Errorf("migrate: build version insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, insert, args...); err != nil {
		return fmt.Errorf("migrate: record version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate: commit: %w", err)
	}
	return nil
}

func schema(d Dialect) []string {
	serial, float, boolean := "INTEGER PRIMARY KEY AUTOINCREMENT", "REAL", "INTEGER"
	if d == Postgres {
		serial, float, boolean = "BIGSERIAL PRIMARY KEY", "DOUBLE PRECISION", "BOOLEAN"
	}

	return []string{
		`CREATE TABLE IF NOT EXISTS lands (
			id ` + serial + `,
			source_id TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL DEFAULT '',
			url TEXT NOT NULL DEFAULT '',
			price ` + float + ` NULL,
			area ` + float + ` NULL,
			municipality TEXT NOT NULL DEFAULT '',
			land_type TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			legal_status TEXT NOT NULL DEFAULT '',
			received_at TEXT NULL,
			attributes TEXT NOT NULL DEFAULT '{}',
			score_total ` + float + ` NULL,
			score_breakdown TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_lands_score_total ON lands(score_total)`,
		`CREATE TABLE IF NOT EXISTS scoring_criteria (
			id ` + serial + `,
			criteria_name TEXT NOT NULL UNIQUE,
			weight ` + float + ` NOT NULL,
			active ` + boolean + ` NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS mailbox_watermarks (
			scope TEXT PRIMARY KEY,
			last_id BIGINT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
	}
}

func firstLine(stmt string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(stmt), "\n")
	return strings.TrimSuffix(strings.TrimSpace(line), "(")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", value, err)
	}
	return t, nil
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}
