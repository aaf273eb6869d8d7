// Package sqlitestore implements internal/store.Store against an embedded
// SQLite database, used when config.DatabaseConfig.Mode == "standalone"
// (the default) so the gateway runs with zero external services.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/superbrain/gateway/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS ai_usage (
	id TEXT PRIMARY KEY, user_id TEXT, provider TEXT, model TEXT,
	prompt_tokens INTEGER, completion_tokens INTEGER, total_tokens INTEGER,
	latency_ms INTEGER, created_at TEXT
);
CREATE TABLE IF NOT EXISTS cli_auth_sessions (
	id TEXT PRIMARY KEY, cli_type TEXT, user_id TEXT, status TEXT,
	pty_target TEXT, started_at TEXT, expires_at TEXT
);
CREATE TABLE IF NOT EXISTS async_runs (
	tracking_id TEXT PRIMARY KEY, agent_id TEXT, cli_type TEXT, command TEXT,
	workspace_path TEXT, status TEXT, exit_code INTEGER,
	started_at TEXT, finished_at TEXT, last_output_at TEXT
);
`

// Store wraps a database/sql handle over modernc.org/sqlite, the
// pure-Go driver the gateway's pack uses for standalone-mode deployments
// with no cgo toolchain requirement.
type Store struct {
	db *sql.DB
}

// Open creates (if needed) and opens the SQLite file at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: apply schema: %w", err)
	}
	if _, err := db.Exec(routingSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: apply routing schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) RecordUsage(ctx context.Context, rec store.AIUsageRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ai_usage (id, user_id, provider, model, prompt_tokens, completion_tokens, total_tokens, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.Provider, rec.Model, rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens, rec.LatencyMS, rec.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("sqlitestore: record usage: %w", err)
	}
	return nil
}

func (s *Store) CreateCLIAuthSession(ctx context.Context, sess store.CLIAuthSession) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cli_auth_sessions (id, cli_type, user_id, status, pty_target, started_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.CLIType, sess.UserID, sess.Status, sess.PTYTarget,
		sess.StartedAt.Format(time.RFC3339), sess.ExpiresAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("sqlitestore: create cli auth session: %w", err)
	}
	return nil
}

func (s *Store) UpdateCLIAuthSessionStatus(ctx context.Context, id string, status store.CLIAuthSessionStatus) error {
	_, err := s.db.ExecContext(ctx, `UPDATE cli_auth_sessions SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("sqlitestore: update cli auth session: %w", err)
	}
	return nil
}

func (s *Store) GetCLIAuthSession(ctx context.Context, id string) (store.CLIAuthSession, error) {
	var sess store.CLIAuthSession
	var started, expires string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, cli_type, user_id, status, pty_target, started_at, expires_at
		FROM cli_auth_sessions WHERE id = ?`, id).
		Scan(&sess.ID, &sess.CLIType, &sess.UserID, &sess.Status, &sess.PTYTarget, &started, &expires)
	if err != nil {
		return store.CLIAuthSession{}, fmt.Errorf("sqlitestore: get cli auth session: %w", err)
	}
	sess.StartedAt, _ = time.Parse(time.RFC3339, started)
	sess.ExpiresAt, _ = time.Parse(time.RFC3339, expires)
	return sess, nil
}

func (s *Store) CreateAsyncRun(ctx context.Context, rec store.AsyncRunRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO async_runs (tracking_id, agent_id, cli_type, command, workspace_path, status, started_at, last_output_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.TrackingID, rec.AgentID, rec.CLIType, rec.Command, rec.WorkspacePath, rec.Status,
		rec.StartedAt.Format(time.RFC3339), rec.LastOutputAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("sqlitestore: create async run: %w", err)
	}
	return nil
}

func (s *Store) UpdateAsyncRunStatus(ctx context.Context, trackingID, status string, exitCode *int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE async_runs SET status = ?, exit_code = ?, finished_at = ? WHERE tracking_id = ?`,
		status, exitCode, time.Now().Format(time.RFC3339), trackingID)
	if err != nil {
		return fmt.Errorf("sqlitestore: update async run status: %w", err)
	}
	return nil
}

func (s *Store) TouchAsyncRunOutput(ctx context.Context, trackingID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE async_runs SET last_output_at = ? WHERE tracking_id = ?`, at.Format(time.RFC3339), trackingID)
	if err != nil {
		return fmt.Errorf("sqlitestore: touch async run output: %w", err)
	}
	return nil
}

func (s *Store) ListRunningAsyncRuns(ctx context.Context) ([]store.AsyncRunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tracking_id, agent_id, cli_type, command, workspace_path, status, started_at, last_output_at
		FROM async_runs WHERE status = 'running'`)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: list running async runs: %w", err)
	}
	defer rows.Close()

	var recs []store.AsyncRunRecord
	for rows.Next() {
		var r store.AsyncRunRecord
		var started, lastOutput string
		if err := rows.Scan(&r.TrackingID, &r.AgentID, &r.CLIType, &r.Command, &r.WorkspacePath, &r.Status, &started, &lastOutput); err != nil {
			return nil, fmt.Errorf("sqlitestore: scan async run: %w", err)
		}
		r.StartedAt, _ = time.Parse(time.RFC3339, started)
		r.LastOutputAt, _ = time.Parse(time.RFC3339, lastOutput)
		recs = append(recs, r)
	}
	return recs, rows.Err()
}
