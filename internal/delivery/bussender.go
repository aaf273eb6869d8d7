package delivery

import (
	"context"

	"github.com/superbrain/gateway/internal/bus"
)

// BusSender broadcasts each delivery job onto the event bus rather than
// calling a platform API directly; the platform adapter (external
// to this module) subscribes and performs the actual send. This keeps the
// Queue exercised end to end without fabricating a channel integration.
type BusSender struct {
	publisher bus.Publisher
}

// NewBusSender wraps a bus.Publisher as a delivery.Sender.
func NewBusSender(publisher bus.Publisher) *BusSender {
	return &BusSender{publisher: publisher}
}

func (s *BusSender) Send(ctx context.Context, job Job) error {
	s.publisher.Broadcast(bus.Event{
		Name: bus.EventOutboundMessage,
		Payload: bus.OutboundMessagePayload{
			ConversationID: job.ConversationID,
			Content:        job.Content,
			ContentType:    string(job.ContentType),
		},
	})
	return nil
}
