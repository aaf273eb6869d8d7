// Package pg implements internal/store.Store against Postgres via pgx,
// used when config.DatabaseConfig.Mode == "managed".
package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/superbrain/gateway/internal/store"
)

// Store wraps a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to dsn and verifies the connection with a ping.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pg: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) RecordUsage(ctx context.Context, rec store.AIUsageRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ai_usage (id, user_id, provider, model, prompt_tokens, completion_tokens, total_tokens, latency_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.UserID, rec.Provider, rec.Model, rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens, rec.LatencyMS, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("pg: record usage: %w", err)
	}
	return nil
}

func (s *Store) CreateCLIAuthSession(ctx context.Context, sess store.CLIAuthSession) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO cli_auth_sessions (id, cli_type, user_id, status, pty_target, started_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sess.ID, sess.CLIType, sess.UserID, sess.Status, sess.PTYTarget, sess.StartedAt, sess.ExpiresAt)
	if err != nil {
		return fmt.Errorf("pg: create cli auth session: %w", err)
	}
	return nil
}

func (s *Store) UpdateCLIAuthSessionStatus(ctx context.Context, id string, status store.CLIAuthSessionStatus) error {
	_, err := s.pool.Exec(ctx, `UPDATE cli_auth_sessions SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("pg: update cli auth session: %w", err)
	}
	return nil
}

func (s *Store) GetCLIAuthSession(ctx context.Context, id string) (store.CLIAuthSession, error) {
	var sess store.CLIAuthSession
	err := s.pool.QueryRow(ctx, `
		SELECT id, cli_type, user_id, status, pty_target, started_at, expires_at
		FROM cli_auth_sessions WHERE id = $1`, id).
		Scan(&sess.ID, &sess.CLIType, &sess.UserID, &sess.Status, &sess.PTYTarget, &sess.StartedAt, &sess.ExpiresAt)
	if err != nil {
		return store.CLIAuthSession{}, fmt.Errorf("pg: get cli auth session: %w", err)
	}
	return sess, nil
}

func (s *Store) CreateAsyncRun(ctx context.Context, rec store.AsyncRunRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO async_runs (tracking_id, agent_id, cli_type, command, workspace_path, status, started_at, last_output_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.TrackingID, rec.AgentID, rec.CLIType, rec.Command, rec.WorkspacePath, rec.Status, rec.StartedAt, rec.LastOutputAt)
	if err != nil {
		return fmt.Errorf("pg: create async run: %w", err)
	}
	return nil
}

func (s *Store) UpdateAsyncRunStatus(ctx context.Context, trackingID, status string, exitCode *int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE async_runs SET status = $2, exit_code = $3, finished_at = now()
		WHERE tracking_id = $1`, trackingID, status, exitCode)
	if err != nil {
		return fmt.Errorf("pg: update async run status: %w", err)
	}
	return nil
}

func (s *Store) TouchAsyncRunOutput(ctx context.Context, trackingID string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE async_runs SET last_output_at = $2 WHERE tracking_id = $1`, trackingID, at)
	if err != nil {
		return fmt.Errorf("pg: touch async run output: %w", err)
	}
	return nil
}

func (s *Store) ListRunningAsyncRuns(ctx context.Context) ([]store.AsyncRunRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT tracking_id, agent_id, cli_type, command, workspace_path, status, started_at, last_output_at
		FROM async_runs WHERE status = 'running'`)
	if err != nil {
		return nil, fmt.Errorf("pg: list running async runs: %w", err)
	}
	defer rows.Close()

	var recs []store.AsyncRunRecord
	for rows.Next() {
		var r store.AsyncRunRecord
		if err := rows.Scan(&r.TrackingID, &r.AgentID, &r.CLIType, &r.Command, &r.WorkspacePath, &r.Status, &r.StartedAt, &r.LastOutputAt); err != nil {
			return nil, fmt.Errorf("pg: scan async run: %w", err)
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}
