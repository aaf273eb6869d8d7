package sqlitestore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/superbrain/gateway/internal/flows"
	"github.com/superbrain/gateway/internal/router"
)

const routingSchema = `
CREATE TABLE IF NOT EXISTS tool_settings (
	user_id TEXT PRIMARY KEY,
	ai_router_mode TEXT, classify_only INTEGER, enabled_tool_ids TEXT,
	confidence_threshold REAL, auto_send_mode TEXT
);
CREATE TABLE IF NOT EXISTS conversation_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id TEXT, role TEXT, content TEXT, ts TEXT
);
CREATE INDEX IF NOT EXISTS idx_conversation_history_conv ON conversation_history(conversation_id, id);
CREATE TABLE IF NOT EXISTS flow_triggers (
	id TEXT PRIMARY KEY, flow_id TEXT, account_id TEXT,
	field TEXT, operator TEXT, value TEXT, enabled INTEGER
);
`

// LoadToolSettings implements router.SettingsStore. A missing row returns
// the zero UserToolSettings, which router.Route treats as "enabled, no
// tools allow-listed" — the same default a brand-new user gets.
func (s *Store) LoadToolSettings(ctx context.Context, userID string) (router.UserToolSettings, error) {
	var (
		out          router.UserToolSettings
		classifyOnly int
		toolIDsJSON  string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT ai_router_mode, classify_only, enabled_tool_ids, confidence_threshold, auto_send_mode
		FROM tool_settings WHERE user_id = ?`, userID).
		Scan(&out.AIRouterMode, &classifyOnly, &toolIDsJSON, &out.ConfidenceThreshold, &out.AutoSendMode)
	if err != nil {
		return router.UserToolSettings{}, nil
	}
	out.ClassifyOnly = classifyOnly != 0
	if toolIDsJSON != "" {
		_ = json.Unmarshal([]byte(toolIDsJSON), &out.EnabledToolIDs)
	}
	return out, nil
}

// SaveToolSettings upserts a user's routing preferences; not part of the
// SettingsStore interface (which is read-only from the router's
// perspective) but used by whatever surface lets a user change settings.
func (s *Store) SaveToolSettings(ctx context.Context, userID string, settings router.UserToolSettings) error {
	toolIDsJSON, err := json.Marshal(settings.EnabledToolIDs)
	if err != nil {
		return fmt.Errorf("sqlitestore: marshal enabled tool ids: %w", err)
	}
	classifyOnly := 0
	if settings.ClassifyOnly {
		classifyOnly = 1
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tool_settings (user_id, ai_router_mode, classify_only, enabled_tool_ids, confidence_threshold, auto_send_mode)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			ai_router_mode = excluded.ai_router_mode, classify_only = excluded.classify_only,
			enabled_tool_ids = excluded.enabled_tool_ids, confidence_threshold = excluded.confidence_threshold,
			auto_send_mode = excluded.auto_send_mode`,
		userID, settings.AIRouterMode, classifyOnly, string(toolIDsJSON), settings.ConfidenceThreshold, settings.AutoSendMode)
	if err != nil {
		return fmt.Errorf("sqlitestore: save tool settings: %w", err)
	}
	return nil
}

// Recent implements router.HistoryStore, returning the last n exchanges in
// chronological order.
func (s *Store) Recent(ctx context.Context, conversationID string, n int) ([]router.Exchange, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, ts FROM conversation_history
		WHERE conversation_id = ? ORDER BY id DESC LIMIT ?`, conversationID, n)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: recent history: %w", err)
	}
	defer rows.Close()

	var out []router.Exchange
	for rows.Next() {
		var e router.Exchange
		var ts string
		if err := rows.Scan(&e.Role, &e.Content, &ts); err != nil {
			return nil, fmt.Errorf("sqlitestore: scan history row: %w", err)
		}
		e.Timestamp, _ = time.Parse(time.RFC3339, ts)
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
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation_history (conversation_id, role, content, ts) VALUES (?, ?, ?, ?)`,
		conversationID, e.Role, e.Content, ts.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("sqlitestore: append history: %w", err)
	}
	return nil
}

// ListTriggers implements flows.Store.
func (s *Store) ListTriggers(ctx context.Context, accountID string) ([]flows.Trigger, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, flow_id, field, operator, value, enabled FROM flow_triggers
		WHERE account_id = ? AND enabled = 1`, accountID)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: list triggers: %w", err)
	}
	defer rows.Close()

	var out []flows.Trigger
	for rows.Next() {
		var t flows.Trigger
		var enabled int
		if err := rows.Scan(&t.ID, &t.FlowID, &t.Field, &t.Operator, &t.Value, &enabled); err != nil {
			return nil, fmt.Errorf("sqlitestore: scan trigger: %w", err)
		}
		t.Enabled = enabled != 0
		out = append(out, t)
	}
	return out, rows.Err()
}
