package cmd

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/superbrain/gateway/internal/ptymux"
	"github.com/superbrain/gateway/internal/store"
)

// cliAuthHandlers exposes the interactive CLI-login flow (spec's provider
// CLIs authenticate themselves; only the terminal-relay plumbing around
// that flow belongs to this module) over HTTP: start a session and report
// a session's stored status. No handler here relays terminal input/output
// or moves a session out of "pending".
type cliAuthHandlers struct {
	mux   ptymux.Multiplexer
	store store.CLIAuthStore
}

func newCLIAuthHandlers(mux ptymux.Multiplexer, st store.CLIAuthStore) *cliAuthHandlers {
	return &cliAuthHandlers{mux: mux, store: st}
}

type startCLIAuthRequest struct {
	CLIType string `json:"cliType"`
	UserID  string `json:"userId"`
}

// start creates a PTY session for cliType's login command and persists a
// pending CLIAuthSession record that providers.clibridge can poll.
func (h *cliAuthHandlers) start(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req startCLIAuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CLIType == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	session, err := h.mux.Create(r.Context(), cliLoginCommand(req.CLIType))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	rec := store.CLIAuthSession{
		ID:        uuid.NewString(),
		CLIType:   req.CLIType,
		UserID:    req.UserID,
		Status:    store.CLIAuthPending,
		PTYTarget: session.ID(),
		StartedAt: time.Now(),
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}
	if err := h.store.CreateCLIAuthSession(r.Context(), rec); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rec)
}

// status reports a session's current CLIAuthSessionStatus, polled by the
// caller until it leaves "pending".
func (h *cliAuthHandlers) status(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}
	rec, err := h.store.GetCLIAuthSession(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rec)
}

func cliLoginCommand(cliType string) string {
	switch cliType {
	case "claude":
		return "claude login"
	case "gemini":
		return "gemini auth login"
	case "opencode":
		return "opencode auth login"
	default:
		return cliType + " login"
	}
}
