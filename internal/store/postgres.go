package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS equilibrium_runs (
	run_id             UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	seed               BIGINT NOT NULL,
	slate_size         INTEGER NOT NULL,
	pool_size          INTEGER NOT NULL,
	fairness_threshold DOUBLE PRECISION NOT NULL,
	penalty_weight     DOUBLE PRECISION NOT NULL,
	catalog_size       INTEGER NOT NULL,
	stakeholders       JSONB NOT NULL,
	equilibrium        JSONB NOT NULL,
	greedy             JSONB NOT NULL,
	winner_index       INTEGER NOT NULL,
	penalized          INTEGER NOT NULL,
	duration_ms        BIGINT NOT NULL,
	source             TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS equilibrium_runs_created_at_idx ON equilibrium_runs (created_at DESC);`

// EnsureSchema creates the runs table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

const runColumns = `run_id, seed, slate_size, pool_size, fairness_threshold, penalty_weight,
	catalog_size, stakeholders, equilibrium, greedy,
	winner_index, penalized, duration_ms, source, created_at`

func (s *PostgresStore) CreateRun(ctx context.Context, run *Run) error {
	stakeholdersJSON, err := json.Marshal(run.Stakeholders)
	if err != nil {
		return fmt.Errorf("marshal stakeholders: %w", err)
	}
	equilibriumJSON, err := json.Marshal(run.Equilibrium)
	if err != nil {
		return fmt.Errorf("marshal equilibrium outcome: %w", err)
	}
	greedyJSON, err := json.Marshal(run.Greedy)
	if err != nil {
		return fmt.Errorf("marshal greedy outcome: %w", err)
	}

	return s.pool.QueryRow(ctx, `
		INSERT INTO equilibrium_runs (seed, slate_size, pool_size, fairness_threshold, penalty_weight,
			catalog_size, stakeholders, equilibrium, greedy,
			winner_index, penalized, duration_ms, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING run_id, created_at`,
		int64(run.Seed), run.SlateSize, run.PoolSize, run.FairnessThreshold, run.PenaltyWeight,
		run.CatalogSize, stakeholdersJSON, equilibriumJSON, greedyJSON,
		run.WinnerIndex, run.Penalized, run.DurationMs, run.Source,
	).Scan(&run.ID, &run.CreatedAt)
}

func (s *PostgresStore) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM equilibrium_runs WHERE run_id = $1`, id)
	r, err := scanRun(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM equilibrium_runs ORDER BY created_at DESC, run_id`
	args := []interface{}{}
	n := 0
	if filter.Limit > 0 {
		n++
		query += fmt.Sprintf(" LIMIT $%d", n)
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		n++
		query += fmt.Sprintf(" OFFSET $%d", n)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func scanRun(row pgx.Row) (*Run, error) {
	r := &Run{}
	var seed int64
	var stakeholdersJSON, equilibriumJSON, greedyJSON []byte
	err := row.Scan(
		&r.ID, &seed, &r.SlateSize, &r.PoolSize, &r.FairnessThreshold, &r.PenaltyWeight,
		&r.CatalogSize, &stakeholdersJSON, &equilibriumJSON, &greedyJSON,
		&r.WinnerIndex, &r.Penalized, &r.DurationMs, &r.Source, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Seed = uint64(seed)
	if err := json.Unmarshal(stakeholdersJSON, &r.Stakeholders); err != nil {
		return nil, fmt.Errorf("decode stakeholders: %w", err)
	}
	if err := json.Unmarshal(equilibriumJSON, &r.Equilibrium); err != nil {
		return nil, fmt.Errorf("decode equilibrium outcome: %w", err)
	}
	if err := json.Unmarshal(greedyJSON, &r.Greedy); err != nil {
		return nil, fmt.Errorf("decode greedy outcome: %w", err)
	}
	return r, nil
}
