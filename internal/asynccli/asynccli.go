// Package asynccli runs long-lived CLI coding agents (claude, gemini,
// opencode, or arbitrary shell commands) as tracked background processes
// start, poll, kill, and reconcile crash-orphaned runs,
// optionally isolating the child inside a sandbox container.
package asynccli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/superbrain/gateway/internal/bus"
	"github.com/superbrain/gateway/internal/delivery"
	"github.com/superbrain/gateway/internal/errs"
	"github.com/superbrain/gateway/internal/sandbox"
	"github.com/superbrain/gateway/internal/store"
	"github.com/superbrain/gateway/internal/tempstore"
)

// progressInterval throttles the "progress" bus event to at most once per
// 30s while a run is alive.
const progressInterval = 30 * time.Second

const (
	// staleAfter is how long a run can go without new output before it is
	// flagged stale (but left running — the caller decides whether to act).
	staleAfter = 5 * time.Minute
	// defaultAbsoluteTimeout kills a run outright once it has been alive
	// this long, regardless of recent output.
	defaultAbsoluteTimeout = 60 * time.Minute
	// killGrace is how long Kill waits after SIGTERM before escalating to
	// SIGKILL.
	killGrace = 5 * time.Second
)

// Result is the terminal outcome of one run.
type Result struct {
	TrackingID string
	Stdout     string
	Stderr     string
	ExitCode   int
	Status     string // "completed", "failed", "killed", "timeout"
	Files      []FileInfo
}

// Manager tracks every in-flight CLI run for the process.
type Manager struct {
	store           store.AsyncRunStore
	sandboxMgr      sandbox.Manager
	bus             bus.Publisher
	tempstore       tempstore.Service
	deliveryQueue   *delivery.Queue
	recall          RecallHandler
	absoluteTimeout time.Duration
	maxPerUser      int

	mu       sync.Mutex
	runs     map[string]*run
	perAgent map[string]int
}

type run struct {
	trackingID    string
	agentID       string
	cliType       string
	workspacePath string
	cmd           *exec.Cmd
	container     sandbox.Container
	preSnapshot   map[string]bool
	delivery      DeliveryContext

	mu             sync.Mutex
	stdout         bytes.Buffer
	stderr         bytes.Buffer
	status         string
	exitCode       int
	files          []FileInfo
	startedAt      time.Time
	lastOutputAt   time.Time
	lastProgressAt time.Time
	done           chan struct{}
}

// NewManager builds a Manager. sandboxMgr and publisher may be nil — a nil
// sandbox means every run executes as a bare host process, a nil publisher
// means lifecycle events are not broadcast. Result delivery (recall mode
// or direct mode) is wired in separately via ManagerOptions,
// since a run started without a DeliveryContext never needs it.
func NewManager(st store.AsyncRunStore, sandboxMgr sandbox.Manager, publisher bus.Publisher, maxPerUser int, opts ...ManagerOption) *Manager {
	if maxPerUser <= 0 {
		maxPerUser = 3
	}
	m := &Manager{
		store:           st,
		sandboxMgr:      sandboxMgr,
		bus:             publisher,
		absoluteTimeout: defaultAbsoluteTimeout,
		maxPerUser:      maxPerUser,
		runs:            make(map[string]*run),
		perAgent:        make(map[string]int),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) publish(name string, payload interface{}) {
	if m.bus == nil {
		return
	}
	m.bus.Broadcast(bus.Event{Name: name, Payload: payload})
}

// Start launches command in workspacePath (on the host, or inside a
// sandbox container when one is configured) and returns a tracking ID
// immediately; the command continues running in the background. The
// result carries no delivery context — callers that want the output
// files delivered to a conversation on completion should use
// StartWithDelivery instead; Start alone suits a caller that will block
// on Wait itself, like clibridge.Provider.
func (m *Manager) Start(ctx context.Context, cliType, command, workspacePath, agentID string) (string, error) {
	return m.start(ctx, cliType, command, workspacePath, agentID, DeliveryContext{})
}

// StartWithDelivery is Start plus a DeliveryContext: on completion, output
// files are either replayed into the owning agent's reasoning loop
// (recall mode) or queued straight to the conversation (direct mode), per
// elsewhere in this package.
func (m *Manager) StartWithDelivery(ctx context.Context, cliType, command, workspacePath, agentID string, dc DeliveryContext) (string, error) {
	return m.start(ctx, cliType, command, workspacePath, agentID, dc)
}

func (m *Manager) start(ctx context.Context, cliType, command, workspacePath, agentID string, dc DeliveryContext) (string, error) {
	m.mu.Lock()
	if m.perAgent[agentID] >= m.maxPerUser {
		m.mu.Unlock()
		return "", errs.New(errs.KindChildProcess, fmt.Sprintf("agent %s already has %d concurrent runs", agentID, m.maxPerUser))
	}
	m.perAgent[agentID]++
	m.mu.Unlock()

	trackingID := uuid.NewString()
	r := &run{
		trackingID:    trackingID,
		agentID:       agentID,
		cliType:       cliType,
		workspacePath: workspacePath,
		delivery:      dc,
		preSnapshot:   snapshotWorkspace(workspacePath),
		status:        "running",
		startedAt:     time.Now(),
		lastOutputAt:  time.Now(),
		done:          make(chan struct{}),
	}

	runCtx, cancel := context.WithCancel(context.Background())

	var container sandbox.Container
	if m.sandboxMgr != nil {
		c, err := m.sandboxMgr.Get(ctx, agentID+":"+workspacePath, workspacePath)
		if err != nil && err != sandbox.ErrSandboxDisabled {
			cancel()
			m.releaseSlot(agentID)
			return "", errs.Wrap(errs.KindChildProcess, "acquire sandbox", err)
		}
		container = c
	}
	r.container = container

	if m.store != nil {
		if err := m.store.CreateAsyncRun(ctx, store.AsyncRunRecord{
			TrackingID:    trackingID,
			AgentID:       agentID,
			CLIType:       cliType,
			Command:       command,
			WorkspacePath: workspacePath,
			Status:        "running",
			StartedAt:     r.startedAt,
			LastOutputAt:  r.lastOutputAt,
		}); err != nil {
			slog.Warn("asynccli: failed to persist run start", "tracking_id", trackingID, "error", err)
		}
	}

	m.mu.Lock()
	m.runs[trackingID] = r
	m.mu.Unlock()

	if container != nil {
		go m.runInSandbox(runCtx, r, container, command)
	} else {
		if err := m.runOnHost(runCtx, r, command, workspacePath); err != nil {
			cancel()
			m.releaseSlot(agentID)
			return "", errs.Wrap(errs.KindChildProcess, "start command", err)
		}
	}

	go m.watchdog(runCtx, cancel, r)

	m.publish(bus.EventAsyncCLIStarted, bus.AsyncCLIStartedPayload{TrackingID: trackingID, AgentID: agentID, CLIType: cliType})

	return trackingID, nil
}

func (m *Manager) runOnHost(ctx context.Context, r *run, command, workspacePath string) error {
	cmd := exec.Command("sh", "-c", command)
	cmd.Dir = workspacePath

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	r.cmd = cmd

	go streamInto(&r.stdout, stdoutPipe, r)
	go streamInto(&r.stderr, stderrPipe, r)
	go func() {
		err := cmd.Wait()
		m.finish(r, exitCodeOf(cmd, err), statusFor(err), ctx)
	}()
	return nil
}

func (m *Manager) runInSandbox(ctx context.Context, r *run, container sandbox.Container, command string) {
	result, err := container.Exec(ctx, []string{"sh", "-c", command}, "/workspace")
	if err != nil {
		m.finish(r, -1, "failed", ctx)
		return
	}
	r.mu.Lock()
	r.stdout.WriteString(result.Stdout)
	r.stderr.WriteString(result.Stderr)
	r.lastOutputAt = time.Now()
	r.mu.Unlock()

	status := "completed"
	if result.ExitCode != 0 {
		status = "failed"
	}
	m.finish(r, result.ExitCode, status, ctx)
}

func streamInto(buf *bytes.Buffer, r io.Reader, run *run) {
	chunk := make([]byte, 4096)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			run.mu.Lock()
			buf.Write(chunk[:n])
			run.lastOutputAt = time.Now()
			run.mu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

func exitCodeOf(cmd *exec.Cmd, waitErr error) int {
	if waitErr == nil {
		return 0
	}
	if exitErr, ok := waitErr.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}

func statusFor(waitErr error) string {
	if waitErr == nil {
		return "completed"
	}
	return "failed"
}

func (m *Manager) finish(r *run, exitCode int, status string, ctx context.Context) {
	r.mu.Lock()
	if r.status == "killed" || r.status == "timeout" {
		// a watchdog-driven termination already recorded the terminal state
		terminalStatus := r.status
		r.mu.Unlock()
		m.releaseSlot(r.agentID)
		m.publish(bus.EventAsyncCLICompleted, bus.AsyncCLICompletedPayload{TrackingID: r.trackingID, Status: terminalStatus, ExitCode: exitCode})
		close(r.done)
		return
	}
	r.status = status
	r.exitCode = exitCode
	r.mu.Unlock()

	var files []FileInfo
	if status == "completed" {
		r.mu.Lock()
		stdout := r.stdout.String()
		r.mu.Unlock()
		files = detectOutputFiles(stdout, r.workspacePath, r.preSnapshot, r.startedAt)
		r.mu.Lock()
		r.files = files
		r.mu.Unlock()
	}

	if m.store != nil {
		code := exitCode
		if err := m.store.UpdateAsyncRunStatus(ctx, r.trackingID, status, &code); err != nil {
			slog.Warn("asynccli: failed to persist run completion", "tracking_id", r.trackingID, "error", err)
		}
	}

	m.deliver(ctx, r, files, status)

	m.releaseSlot(r.agentID)
	m.publish(bus.EventAsyncCLICompleted, bus.AsyncCLICompletedPayload{TrackingID: r.trackingID, Status: status, ExitCode: exitCode})
	close(r.done)
}

func (m *Manager) releaseSlot(agentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.perAgent[agentID] > 0 {
		m.perAgent[agentID]--
	}
}

// watchdog enforces the absolute timeout and flags stale runs, treating "no
// output in 5 minutes" as a warning signal and "has been running for 60
// minutes" as a hard kill.
func (m *Manager) watchdog(ctx context.Context, cancel context.CancelFunc, r *run) {
	defer cancel()
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.mu.Lock()
			age := time.Since(r.startedAt)
			idle := time.Since(r.lastOutputAt)
			stillRunning := r.status == "running"
			dueForProgress := time.Since(r.lastProgressAt) >= progressInterval
			lastOutputAt := r.lastOutputAt
			if dueForProgress {
				r.lastProgressAt = time.Now()
			}
			r.mu.Unlock()

			if !stillRunning {
				return
			}
			if dueForProgress {
				m.publish(bus.EventAsyncCLIProgress, bus.AsyncCLIProgressPayload{TrackingID: r.trackingID, LastOutputAt: lastOutputAt.Format(time.RFC3339)})
			}
			if idle >= staleAfter {
				slog.Warn("asynccli: run has produced no output recently", "tracking_id", r.trackingID, "idle", idle)
			}
			if age >= m.absoluteTimeout {
				slog.Warn("asynccli: run exceeded absolute timeout, killing", "tracking_id", r.trackingID, "age", age)
				m.kill(r, "timeout")
				return
			}
		}
	}
}

func (m *Manager) kill(r *run, reason string) {
	r.mu.Lock()
	if r.status != "running" {
		r.mu.Unlock()
		return
	}
	r.status = reason
	cmd := r.cmd
	r.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		m.releaseSlot(r.agentID)
		select {
		case <-r.done:
		default:
			close(r.done)
		}
		return
	}

	_ = cmd.Process.Signal(syscall.SIGTERM)
	timer := time.NewTimer(killGrace)
	defer timer.Stop()

	select {
	case <-r.done:
		return
	case <-timer.C:
		_ = cmd.Process.Kill()
	}
}

// Kill terminates a run via SIGTERM, escalating to SIGKILL after the grace
// period if it hasn't exited.
func (m *Manager) Kill(trackingID string) error {
	m.mu.Lock()
	r, ok := m.runs[trackingID]
	m.mu.Unlock()
	if !ok {
		return errs.New(errs.KindChildProcess, fmt.Sprintf("unknown tracking id %q", trackingID))
	}
	m.kill(r, "killed")
	return nil
}

// Wait blocks until the run finishes or ctx is cancelled.
func (m *Manager) Wait(ctx context.Context, trackingID string) (*Result, error) {
	m.mu.Lock()
	r, ok := m.runs[trackingID]
	m.mu.Unlock()
	if !ok {
		return nil, errs.New(errs.KindChildProcess, fmt.Sprintf("unknown tracking id %q", trackingID))
	}

	select {
	case <-r.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return &Result{
		TrackingID: r.trackingID,
		Stdout:     r.stdout.String(),
		Stderr:     r.stderr.String(),
		ExitCode:   r.exitCode,
		Status:     r.status,
		Files:      r.files,
	}, nil
}

// Status reports a run's current state without blocking.
func (m *Manager) Status(trackingID string) (status string, lastOutputAt time.Time, ok bool) {
	m.mu.Lock()
	r, exists := m.runs[trackingID]
	m.mu.Unlock()
	if !exists {
		return "", time.Time{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status, r.lastOutputAt, true
}

// Reconcile marks every run the store believes is still "running" as
// failed, called once at startup to recover from a crash that left rows
// behind with no process actually alive to finish them.
func (m *Manager) Reconcile(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	running, err := m.store.ListRunningAsyncRuns(ctx)
	if err != nil {
		return fmt.Errorf("asynccli: reconcile: list running runs: %w", err)
	}
	for _, rec := range running {
		code := -1
		if err := m.store.UpdateAsyncRunStatus(ctx, rec.TrackingID, "failed", &code); err != nil {
			slog.Error("asynccli: reconcile: failed to mark run failed", "tracking_id", rec.TrackingID, "error", err)
			continue
		}
		slog.Info("asynccli: reconciled orphaned run as failed", "tracking_id", rec.TrackingID)
	}
	return nil
}
