package asynccli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/superbrain/gateway/internal/delivery"
	"github.com/superbrain/gateway/internal/message"
	"github.com/superbrain/gateway/internal/tempstore"
)

// DeliveryContext carries the conversation a run's result should reach.
// A zero value means "not needed" — the caller (e.g. a synchronous
// clibridge.Provider) already owns the result via Wait and doesn't want a
// second delivery.
type DeliveryContext struct {
	AgentID        string
	ConversationID string
	AccountID      string
}

func (dc DeliveryContext) recallEligible() bool {
	return dc.AgentID != "" && dc.ConversationID != ""
}

func (dc DeliveryContext) needed() bool {
	return dc.AgentID != "" || dc.ConversationID != ""
}

// CompletionEvent is the synthetic event a recall-mode delivery replays
// into the owning agent's reasoning loop.
type CompletionEvent struct {
	TrackingID string
	CLIType    string
	Summary    string
	Files      []FileInfo
}

// RecallHandler re-enters an agent's reasoning loop with a completion
// event, for runs started on behalf of an agent mid-conversation.
type RecallHandler interface {
	HandleAsyncCLICompletion(ctx context.Context, dc DeliveryContext, event CompletionEvent) error
}

// ManagerOption configures optional collaborators on a Manager.
type ManagerOption func(*Manager)

// WithTempStore registers the service used to mint presigned URLs for
// direct-mode file delivery.
func WithTempStore(ts tempstore.Service) ManagerOption {
	return func(m *Manager) { m.tempstore = ts }
}

// WithDeliveryQueue registers the queue direct-mode delivery enqueues
// onto.
func WithDeliveryQueue(q *delivery.Queue) ManagerOption {
	return func(m *Manager) { m.deliveryQueue = q }
}

// WithRecallHandler registers the callback used for recall-mode delivery.
func WithRecallHandler(h RecallHandler) ManagerOption {
	return func(m *Manager) { m.recall = h }
}

// deliver implements the result-delivery step: not_needed,
// recall mode (agent + conversation present), or direct mode (file +
// summary messages queued straight to the conversation).
func (m *Manager) deliver(ctx context.Context, r *run, files []FileInfo, status string) {
	dc := r.delivery
	if !dc.needed() {
		return
	}

	summary := completionSummary(status, files)

	if dc.recallEligible() {
		if m.recall == nil {
			slog.Warn("asynccli: recall-mode delivery requested but no RecallHandler configured", "tracking_id", r.trackingID)
			return
		}
		if err := m.recall.HandleAsyncCLICompletion(ctx, dc, CompletionEvent{
			TrackingID: r.trackingID,
			CLIType:    r.cliType,
			Summary:    summary,
			Files:      files,
		}); err != nil {
			slog.Warn("asynccli: recall delivery failed", "tracking_id", r.trackingID, "error", err)
		}
		return
	}

	if m.deliveryQueue == nil {
		slog.Warn("asynccli: direct-mode delivery requested but no delivery queue configured", "tracking_id", r.trackingID)
		return
	}
	for _, f := range files {
		m.enqueueFile(ctx, dc, f)
	}
	m.deliveryQueue.Enqueue(delivery.Job{
		ConversationID: dc.ConversationID,
		Content:        summary,
		ContentType:    message.ContentText,
	})
}

func (m *Manager) enqueueFile(ctx context.Context, dc DeliveryContext, f FileInfo) {
	if m.tempstore == nil {
		slog.Warn("asynccli: output file produced but no tempstore configured, dropping from delivery", "file", f.Name)
		return
	}
	data, err := readFile(f.FullPath)
	if err != nil {
		slog.Warn("asynccli: failed to read output file for delivery", "file", f.FullPath, "error", err)
		return
	}
	url, _, err := m.tempstore.Put(ctx, f.Name, data, contentTypeFor(f.Name))
	if err != nil {
		slog.Warn("asynccli: failed to upload output file", "file", f.FullPath, "error", err)
		return
	}
	m.deliveryQueue.Enqueue(delivery.Job{
		ConversationID: dc.ConversationID,
		Content:        url,
		ContentType:    message.ContentDocument,
	})
}

// readFile is a thin wrapper so delivery.go has a single seam to mock in
// tests without pulling in a full os.File fake.
func readFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// contentTypeFor guesses a MIME type from a file's extension, good enough
// for the handful of formats async CLIs are expected to emit (reports,
// spreadsheets, images); unknown extensions fall back to a generic octet
// stream.
func contentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".csv":
		return "text/csv"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".json":
		return "application/json"
	case ".txt", ".md":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}

func completionSummary(status string, files []FileInfo) string {
	if status != "completed" {
		return fmt.Sprintf("Run finished with status %q.", status)
	}
	if len(files) == 0 {
		return "Run completed successfully."
	}
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = fmt.Sprintf("%s (%s)", f.Name, f.HumanSize)
	}
	return fmt.Sprintf("Run completed. Generated files: %s", strings.Join(names, ", "))
}
