// Package delivery queues outbound replies for dispatch to a platform
// adapter, decoupling Pipeline.Process (which must return quickly) from
// the actual send, which may retry against a rate-limited or flaky
// platform API. Platform adapters are external collaborators;
// this package only owns the queue and retry policy.
package delivery

import (
	"context"
	"log/slog"
	"time"

	"github.com/superbrain/gateway/internal/message"
)

// Job is one queued outbound delivery.
type Job struct {
	ConversationID string
	Content        string
	ContentType    message.ContentType
	Attempt        int
}

// Sender performs the actual platform-specific send. Concrete
// implementations live with each platform adapter (out of scope here).
type Sender interface {
	Send(ctx context.Context, job Job) error
}

// Queue is a bounded, worker-pool backed delivery queue with exponential
// backoff retry, grounded on the gateway's per-run dispatch loop pattern.
type Queue struct {
	jobs       chan Job
	sender     Sender
	maxRetries int
	baseDelay  time.Duration
}

// NewQueue starts workerCount goroutines draining jobs into sender.
func NewQueue(ctx context.Context, sender Sender, workerCount, bufferSize, maxRetries int, baseDelay time.Duration) *Queue {
	q := &Queue{
		jobs:       make(chan Job, bufferSize),
		sender:     sender,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
	}
	for i := 0; i < workerCount; i++ {
		go q.worker(ctx)
	}
	return q
}

// Enqueue submits a job without blocking for delivery; it blocks only if
// the buffer is full, applying natural backpressure to callers.
func (q *Queue) Enqueue(job Job) {
	q.jobs <- job
}

func (q *Queue) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-q.jobs:
			q.attempt(ctx, job)
		}
	}
}

func (q *Queue) attempt(ctx context.Context, job Job) {
	if err := q.sender.Send(ctx, job); err != nil {
		if job.Attempt >= q.maxRetries {
			slog.Error("delivery: giving up after max retries", "conversation", job.ConversationID, "attempts", job.Attempt+1, "error", err)
			return
		}
		job.Attempt++
		delay := q.baseDelay * time.Duration(1<<uint(job.Attempt))
		slog.Warn("delivery: send failed, retrying", "conversation", job.ConversationID, "attempt", job.Attempt, "delay", delay, "error", err)
		time.AfterFunc(delay, func() {
			select {
			case <-ctx.Done():
			case q.jobs <- job:
			}
		})
	}
}
