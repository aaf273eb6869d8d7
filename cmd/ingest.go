package cmd

import (
	"encoding/json"
	"net/http"

	"github.com/superbrain/gateway/internal/message"
	"github.com/superbrain/gateway/internal/pipeline"
)

// ingestRequest is the wire shape platform adapters POST to /v1/messages —
// a message.Unified plus the request-scoped identity fields RequestContext
// needs (Reply is synthesized server-side, not wire-carried).
type ingestRequest struct {
	Message        message.Unified `json:"message"`
	UserID         string          `json:"userId"`
	AgentID        string          `json:"agentId"`
	AccountID      string          `json:"accountId"`
	ConversationID string          `json:"conversationId"`
	SessionID      string          `json:"sessionId"`
	Mode           string          `json:"mode"`
}

// ingestHandler exposes Pipeline.Process over HTTP for platform adapters
// (adapters are external collaborators that normalize into
// message.Unified and POST it here; the reply is returned synchronously
// for adapters to forward, mirroring how WebSocket handlers
// bridge into internal request handling before returning).
func ingestHandler(pl *pipeline.Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req ingestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		rc := &message.RequestContext{
			UserID:         req.UserID,
			AgentID:        req.AgentID,
			AccountID:      req.AccountID,
			ConversationID: req.ConversationID,
			SessionID:      req.SessionID,
			Mode:           req.Mode,
		}

		res, err := pl.Process(r.Context(), &req.Message, rc)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(res)
	}
}
