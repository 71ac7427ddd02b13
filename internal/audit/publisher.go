package audit

import (
	"context"
	"log/slog"

	"tracker/pkg/requestcontext"
)

// Publisher hands events to the worker without blocking the request path.
// The inbox is bounded; when it is full the event is dropped and counted
// in the log rather than stalling a mutation on a slow audit pipeline.
type Publisher struct {
	inbox  chan<- Event
	logger *slog.Logger
}

// NewPublisher returns a Publisher writing into inbox.
func NewPublisher(inbox chan<- Event, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{inbox: inbox, logger: logger}
}

// Emit stamps and enqueues the event. Fire-and-forget: no error reaches
// the caller.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}

	select {
	case p.inbox <- event:
	default:
		p.logger.WarnContext(ctx, "audit inbox full, dropping event",
			"action", string(event.Action),
			"org", event.OrgKey,
		)
	}
}

// NewInbox returns a buffered event channel sized for bursty mutation
// traffic.
func NewInbox() chan Event {
	return make(chan Event, 256)
}
