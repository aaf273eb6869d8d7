// Package ptymux defines the terminal-session multiplexer contract that
// CLI-backed providers use for interactive login flows (e.g. `claude
// login`, `gemini auth login`) run inside a sandbox container. A real
// multiplexer is out of scope for this repo (spec Non-goals name the
// provider CLIs' own auth UX as external); only the contract and an
// in-memory fake ship here.
package ptymux

import "context"

// Session is one attached pseudo-terminal a CLI auth flow is running in.
type Session interface {
	ID() string
	Write(p []byte) (int, error)
	Read(p []byte) (int, error)
	Close() error
}

// Multiplexer creates, looks up and closes PTY sessions by ID. No websocket
// relay of session I/O exists in the gateway; the cliauth handlers only
// create sessions and report their stored status.
type Multiplexer interface {
	Create(ctx context.Context, target string) (Session, error)
	Get(id string) (Session, bool)
	Close(id string) error
}
