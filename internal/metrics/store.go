package metrics

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// Open opens the metrics database with required pragmas and migrations.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func applyPragmas(db *sql.DB) error {
	stmts := []string{
		"PRAGMA foreign_keys=ON;",
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			if stmt == "PRAGMA journal_mode=WAL;" {
				log.Warn().Err(err).Msg("sqlite: WAL mode not enabled")
				continue
			}
			return fmt.Errorf("apply pragma %q: %w", stmt, err)
		}
	}
	return nil
}

//go:embed migrations/*.sql
var migrationsFS embed.FS

func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Store persists per-task metric records.
type Store struct {
	db *sql.DB
}

// NewStore creates a store over an opened database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert writes one task record.
func (s *Store) Insert(ctx context.Context, m TaskMetrics) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO task_metrics(
		task_id, task, model, success, steps,
		prompt_tokens, completion_tokens, total_tokens, baseline_tokens,
		cost_usd, duration_ms, recorded_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.TaskID, m.Task, m.Model, m.Success, m.Steps,
		m.PromptTokens, m.CompletionTokens, m.TotalTokens, m.BaselineTokens,
		m.CostUSD, m.Duration.Milliseconds(), m.RecordedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert task metrics: %w", err)
	}
	return nil
}

// List returns all records, oldest first.
func (s *Store) List(ctx context.Context) ([]TaskMetrics, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
		task_id, task, model, success, steps,
		prompt_tokens, completion_tokens, total_tokens, baseline_tokens,
		cost_usd, duration_ms, recorded_at
		FROM task_metrics ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list task metrics: %w", err)
	}
	defer rows.Close()

	var out []TaskMetrics
	for rows.Next() {
		var m TaskMetrics
		var durationMS int64
		var recordedAt string
		if err := rows.Scan(&m.TaskID, &m.Task, &m.Model, &m.Success, &m.Steps,
			&m.PromptTokens, &m.CompletionTokens, &m.TotalTokens, &m.BaselineTokens,
			&m.CostUSD, &durationMS, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan task metrics: %w", err)
		}
		m.Duration = time.Duration(durationMS) * time.Millisecond
		if ts, err := time.Parse(time.RFC3339, recordedAt); err == nil {
			m.RecordedAt = ts
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task metrics: %w", err)
	}
	return out, nil
}
