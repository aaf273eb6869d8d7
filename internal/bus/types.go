// Package bus broadcasts process-lifecycle events (async CLI run progress,
// provider failover, gating decisions) to connected operator clients over
// WebSocket, generalizing the gateway's channel-message bus into a
// pure event-broadcast surface for this domain.
package bus

// Event names emitted onto the bus. Async CLI run events are the primary
// producer ("emit `started` over the broadcast bus" and
// throttled `progress` updates); other subsystems publish ad hoc events
// under the same Event envelope.
const (
	EventAsyncCLIStarted   = "async_cli.started"
	EventAsyncCLIProgress  = "async_cli.progress"
	EventAsyncCLICompleted = "async_cli.completed"
	EventProviderFailover  = "provider.failover"
	EventGatingBlocked     = "gating.blocked"
	EventOutboundMessage   = "outbound.message"
)

// Event is a server-side event broadcast to every subscribed client.
type Event struct {
	Name    string      `json:"name"`
	Payload interface{} `json:"payload,omitempty"`
}

// AsyncCLIStartedPayload accompanies EventAsyncCLIStarted.
type AsyncCLIStartedPayload struct {
	TrackingID string `json:"trackingId"`
	AgentID    string `json:"agentId"`
	CLIType    string `json:"cliType"`
}

// AsyncCLIProgressPayload accompanies EventAsyncCLIProgress, emitted at
// most once per 30s while a run is alive.
type AsyncCLIProgressPayload struct {
	TrackingID   string `json:"trackingId"`
	LastOutputAt string `json:"lastOutputAt"`
}

// AsyncCLICompletedPayload accompanies EventAsyncCLICompleted.
type AsyncCLICompletedPayload struct {
	TrackingID string `json:"trackingId"`
	Status     string `json:"status"`
	ExitCode   int    `json:"exitCode"`
}

// OutboundMessagePayload accompanies EventOutboundMessage: a reply the
// delivery queue has dispatched, for a platform adapter subscriber to pick
// up and actually send (platform adapters are external).
type OutboundMessagePayload struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
	ContentType    string `json:"contentType"`
}

// EventHandler handles one broadcast event.
type EventHandler func(Event)

// Publisher abstracts event broadcast + subscription so producers (the
// async CLI manager, the provider router) don't depend on the concrete
// WebSocket hub.
type Publisher interface {
	Subscribe(id string, handler EventHandler)
	Unsubscribe(id string)
	Broadcast(event Event)
}
