// Package workspace manages the per-agent working directories that async
// CLI executions run inside: path containment, provisioning,
// and scheduled cleanup of stale directories.
package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Manager provisions and bounds the on-disk workspace directories for
// agents. DirFor always returns a path inside Root; Resolve does so only
// when restrictToWorkspace is set.
type Manager struct {
	root                string
	restrictToWorkspace bool
}

// New returns a Manager rooted at root. restrictToWorkspace mirrors
// config.WorkspaceConfig.RestrictToWorkspace; when false, Resolve skips the
// containment check, so a relative path with ".." may leave the agent
// directory (used in local/dev setups). Absolute paths are rejected either way.
func New(root string, restrictToWorkspace bool) (*Manager, error) {
	expanded, err := expandHome(root)
	if err != nil {
		return nil, fmt.Errorf("workspace: expand root %q: %w", root, err)
	}
	if err := os.MkdirAll(expanded, 0o755); err != nil {
		return nil, fmt.Errorf("workspace: create root %q: %w", expanded, err)
	}
	return &Manager{root: expanded, restrictToWorkspace: restrictToWorkspace}, nil
}

// DirFor returns (creating if needed) the workspace directory for an agent,
// rooted at Root()/{agentID}.
func (m *Manager) DirFor(agentID string) (string, error) {
	dir := filepath.Join(m.root, sanitizeSegment(agentID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("workspace: create dir for %q: %w", agentID, err)
	}
	return dir, nil
}

// Resolve joins a relative path requested by a tool against an agent's
// workspace directory and verifies the result does not escape it, per the
// path-containment invariant.
func (m *Manager) Resolve(agentID, requested string) (string, error) {
	base, err := m.DirFor(agentID)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(requested) {
		return "", fmt.Errorf("workspace: absolute path %q not permitted", requested)
	}
	joined := filepath.Join(base, requested)
	if !m.restrictToWorkspace {
		return joined, nil
	}
	rel, err := filepath.Rel(base, joined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("workspace: path %q escapes workspace", requested)
	}
	return joined, nil
}

// Root returns the workspace root directory.
func (m *Manager) Root() string { return m.root }

// Cleanup removes per-agent workspace directories whose contents have not
// been modified in olderThan, returning how many it removed. It is invoked
// by CleanupScheduler, which cmd/root.go starts; the pipeline never calls it.
func (m *Manager) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return 0, fmt.Errorf("workspace: read root: %w", err)
	}

	removed := 0
	cutoff := time.Now().Add(-olderThan)
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return removed, ctx.Err()
		default:
		}
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(m.root, entry.Name())
		modTime, err := dirModTime(path)
		if err != nil {
			slog.Warn("workspace cleanup: stat failed, skipping", "path", path, "error", err)
			continue
		}
		if modTime.After(cutoff) {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			slog.Warn("workspace cleanup: remove failed", "path", path, "error", err)
			continue
		}
		removed++
		slog.Info("workspace cleanup: removed stale directory", "path", path, "age", time.Since(modTime))
	}
	return removed, nil
}

func dirModTime(dir string) (time.Time, error) {
	latest := time.Time{}
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
		return nil
	})
	return latest, err
}

func sanitizeSegment(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == 0 {
			return '_'
		}
		return r
	}, s)
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}

func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
