// Package store defines the persistence contracts the gateway depends on
// for the core data model records plus this port's
// supplements (ai_usage, cli_auth_sessions). internal/store/pg provides the
// Postgres-backed implementation; a sqlite-backed one services standalone
// mode per SPEC_FULL §2.
package store

import (
	"context"
	"time"
)

// AIUsageRecord is one persisted provider call. Both store implementations
// accept it through RecordUsage; the provider router does not call
// RecordUsage.
type AIUsageRecord struct {
	ID               string
	UserID           string
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	LatencyMS        int64
	CreatedAt        time.Time
}

// CLIAuthSessionStatus enumerates the lifecycle of an interactive CLI login
// whose terminal runs in an internal/ptymux session; the status itself is
// kept through CLIAuthStore.
type CLIAuthSessionStatus string

const (
	CLIAuthPending       CLIAuthSessionStatus = "pending"
	CLIAuthAuthenticated CLIAuthSessionStatus = "authenticated"
	CLIAuthExpired       CLIAuthSessionStatus = "expired"
)

// CLIAuthSession tracks one interactive CLI login flow (e.g. `claude login`
// run inside a sandboxed terminal) so the gateway knows when a CLI-backed
// provider has a usable credential.
type CLIAuthSession struct {
	ID        string
	CLIType   string
	UserID    string
	Status    CLIAuthSessionStatus
	PTYTarget string
	StartedAt time.Time
	ExpiresAt time.Time
}

// AsyncRunRecord is the persisted lifecycle record for one async CLI
// execution, surviving process restarts so the manager can
// reconcile "running" rows left behind by a crash.
type AsyncRunRecord struct {
	TrackingID    string
	AgentID       string
	CLIType       string
	Command       string
	WorkspacePath string
	Status        string // "running", "completed", "failed", "killed", "stale"
	ExitCode      *int
	StartedAt     time.Time
	FinishedAt    *time.Time
	LastOutputAt  time.Time
}

// Store is the full persistence surface the gateway composes at startup.
// It is assembled from narrower interfaces so components only depend on
// the slice they use.
type Store interface {
	AIUsageStore
	CLIAuthStore
	AsyncRunStore
}

type AIUsageStore interface {
	RecordUsage(ctx context.Context, rec AIUsageRecord) error
}

type CLIAuthStore interface {
	CreateCLIAuthSession(ctx context.Context, s CLIAuthSession) error
	UpdateCLIAuthSessionStatus(ctx context.Context, id string, status CLIAuthSessionStatus) error
	GetCLIAuthSession(ctx context.Context, id string) (CLIAuthSession, error)
}

type AsyncRunStore interface {
	CreateAsyncRun(ctx context.Context, rec AsyncRunRecord) error
	UpdateAsyncRunStatus(ctx context.Context, trackingID, status string, exitCode *int) error
	TouchAsyncRunOutput(ctx context.Context, trackingID string, at time.Time) error
	ListRunningAsyncRuns(ctx context.Context) ([]AsyncRunRecord, error)
}
