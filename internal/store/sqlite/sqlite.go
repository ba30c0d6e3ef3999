package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/nulzo/reliability-forge/internal/store"
	"github.com/nulzo/reliability-forge/internal/store/model"
)

// DB defines the interface for database operations (satisfied by *sqlx.DB and *sqlx.Tx)
type DB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// SqliteRepository implements store.Repository
type SqliteRepository struct {
	db       *sqlx.DB // Required for starting new transactions
	executor DB       // Used for actual queries (can be *sqlx.DB or *sqlx.Tx)
}

func NewSqliteRepository(db *sqlx.DB) *SqliteRepository {
	return &SqliteRepository{
		db:       db,
		executor: db,
	}
}

func (r *SqliteRepository) Close() error {
	return r.db.Close()
}

func (r *SqliteRepository) WithTx(ctx context.Context, fn func(repo store.Repository) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	txRepo := &SqliteRepository{
		db:       r.db,
		executor: tx,
	}

	if err := fn(txRepo); err != nil {
		// attempt rollback, but prioritize original error
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

func (r *SqliteRepository) Runs() store.RunRepository {
	return &runRepo{db: r.executor}
}

type runRepo struct {
	db DB
}

func (r *runRepo) Log(ctx context.Context, run *model.Run) error {
	query := `
	INSERT INTO pipeline_runs (
		id, source, input, requested_pattern, pattern, code,
		code_by_model_json, models, status, error, latency_ms, created_at
	) VALUES (
		:id, :source, :input, :requested_pattern, :pattern, :code,
		:code_by_model_json, :models, :status, :error, :latency_ms, :created_at
	)`
	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("failed to log run %s: %w", run.ID, err)
	}
	return nil
}

func (r *runRepo) GetByID(ctx context.Context, id string) (*model.Run, error) {
	var run model.Run
	err := r.db.GetContext(ctx, &run, `SELECT * FROM pipeline_runs WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *runRepo) GetRecent(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	runs := []model.Run{}
	query := `SELECT * FROM pipeline_runs ORDER BY created_at DESC LIMIT ?`
	err := r.db.SelectContext(ctx, &runs, query, limit)
	return runs, err
}

func (r *runRepo) GetDailyStats(ctx context.Context, days int) ([]model.DailyStats, error) {
	stats := []model.DailyStats{}
	query := `
		SELECT
			DATE(created_at) as date,
			COUNT(*) as total_runs,
			SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END) as failed_runs,
			AVG(latency_ms) as avg_latency
		FROM pipeline_runs
		WHERE created_at >= DATE('now', ?)
		GROUP BY date
		ORDER BY date DESC
	`
	// SQLite date offset format is '-7 days'
	err := r.db.SelectContext(ctx, &stats, query, fmt.Sprintf("-%d days", days))
	return stats, err
}
