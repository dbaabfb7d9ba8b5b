package results

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS game_results (
	game_id      UUID PRIMARY KEY,
	session_id   UUID NOT NULL,
	player_score INT NOT NULL,
	cpu_score    INT NOT NULL,
	vs_cpu       BOOLEAN NOT NULL,
	flips        INT NOT NULL,
	duration_ms  BIGINT NOT NULL,
	finished_at  TIMESTAMPTZ NOT NULL
)`

const insertSQL = `
INSERT INTO game_results
	(game_id, session_id, player_score, cpu_score, vs_cpu, flips, duration_ms, finished_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (game_id) DO NOTHING`

const recentSQL = `
SELECT game_id, session_id, player_score, cpu_score, vs_cpu, flips, duration_ms, finished_at
FROM game_results
ORDER BY finished_at DESC
LIMIT $1`

// db is the subset of *pgxpool.Pool used by PostgresRecorder.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresRecorder stores results in the game_results table.
type PostgresRecorder struct {
	db db
}

// OpenPostgres connects a pool and ensures the results table exists.
func OpenPostgres(ctx context.Context, url string) (*PostgresRecorder, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}
	rec, err := NewPostgresRecorder(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return rec, pool, nil
}

// NewPostgresRecorder creates the results table if needed.
func NewPostgresRecorder(ctx context.Context, pool *pgxpool.Pool) (*PostgresRecorder, error) {
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		return nil, fmt.Errorf("create game_results: %w", err)
	}
	return &PostgresRecorder{db: pool}, nil
}

func (p *PostgresRecorder) Record(ctx context.Context, r Result) error {
	_, err := p.db.Exec(ctx, insertSQL,
		r.GameID, r.SessionID, r.PlayerScore, r.CPUScore, r.VsCPU, r.Flips,
		r.Duration.Milliseconds(), r.FinishedAt)
	if err != nil {
		return fmt.Errorf("record game %s: %w", r.GameID, err)
	}
	return nil
}

func (p *PostgresRecorder) Recent(ctx context.Context, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := p.db.Query(ctx, recentSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent results: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Result, error) {
		var r Result
		var ms int64
		err := row.Scan(&r.GameID, &r.SessionID, &r.PlayerScore, &r.CPUScore, &r.VsCPU, &r.Flips, &ms, &r.FinishedAt)
		r.Duration = time.Duration(ms) * time.Millisecond
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan recent results: %w", err)
	}
	return out, nil
}
