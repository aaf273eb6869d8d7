package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/superbrain/gateway/internal/flows"
	"github.com/superbrain/gateway/internal/router"
)

// LoadToolSettings implements router.SettingsStore.
func (s *Store) LoadToolSettings(ctx context.Context, userID string) (router.UserToolSettings, error) {
	var out router.UserToolSettings
	err := s.pool.QueryRow(ctx, `
		SELECT ai_router_mode, classify_only, enabled_tool_ids, confidence_threshold, auto_send_mode
		FROM tool_settings WHERE user_id = $1`, userID).
		Scan(&out.AIRouterMode, &out.ClassifyOnly, &out.EnabledToolIDs, &out.ConfidenceThreshold, &out.AutoSendMode)
	if err != nil {
		return router.UserToolSettings{}, nil
	}
	return out, nil
}

// SaveToolSettings upserts a user's routing preferences.
func (s *Store) SaveToolSettings(ctx context.Context, userID string, settings router.UserToolSettings) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tool_settings (user_id, ai_router_mode, classify_only, enabled_tool_ids, confidence_threshold, auto_send_mode)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			ai_router_mode = excluded.ai_router_mode, classify_only = excluded.classify_only,
			enabled_tool_ids = excluded.enabled_tool_ids, confidence_threshold = excluded.confidence_threshold,
			auto_send_mode = excluded.auto_send_mode`,
		userID, settings.AIRouterMode, settings.ClassifyOnly, settings.EnabledToolIDs, settings.ConfidenceThreshold, settings.AutoSendMode)
	if err != nil {
		return fmt.Errorf("pg: save tool settings: %w", err)
	}
	return nil
}

// Recent implements router.HistoryStore.
func (s *Store) Recent(ctx context.Context, conversationID string, n int) ([]router.Exchange, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT role, content, ts FROM conversation_history
		WHERE conversation_id = $1 ORDER BY id DESC LIMIT $2`, conversationID, n)
	if err != nil {
		return nil, fmt.Errorf("pg: recent history: %w", err)
	}
	defer rows.Close()

	var out []router.Exchange
	for rows.Next() {
		var e router.Exchange
		if err := rows.Scan(&e.Role, &e.Content, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("pg: scan history row: %w", err)
		}
		out = append(out, e)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, rows.Err()
}

// Append implements router.HistoryStore.
func (s *Store) Append(ctx context.Context, conversationID string, e router.Exchange) error {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO conversation_history (conversation_id, role, content, ts) VALUES ($1, $2, $3, $4)`,
		conversationID, e.Role, e.Content, ts)
	if err != nil {
		return fmt.Errorf("pg: append history: %w", err)
	}
	return nil
}

// ListTriggers implements flows.Store.
func (s *Store) ListTriggers(ctx context.Context, accountID string) ([]flows.Trigger, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, flow_id, field, operator, value, enabled FROM flow_triggers
		WHERE account_id = $1 AND enabled = true`, accountID)
	if err != nil {
		return nil, fmt.Errorf("pg: list triggers: %w", err)
	}
	defer rows.Close()

	var out []flows.Trigger
	for rows.Next() {
		var t flows.Trigger
		if err := rows.Scan(&t.ID, &t.FlowID, &t.Field, &t.Operator, &t.Value, &t.Enabled); err != nil {
			return nil, fmt.Errorf("pg: scan trigger: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
