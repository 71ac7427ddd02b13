package audit

import (
	"context"
	"log/slog"
)

// Worker consumes audit events from the inbox and persists them, fanning
// out to an optional sink. It keeps background processing testable
// without wiring queue implementations into services.
type Worker struct {
	store  Store
	sink   Sink
	inbox  <-chan Event
	logger *slog.Logger
}

// NewWorker returns a worker draining inbox into store. sink may be nil.
func NewWorker(store Store, sink Sink, inbox <-chan Event, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{store: store, sink: sink, inbox: inbox, logger: logger}
}

// Run drains the inbox until ctx is cancelled. Persistence errors are
// logged and the event dropped; the audit trail is best-effort by
// contract and must never wedge the pipeline.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.store.Append(ctx, event); err != nil {
				w.logger.ErrorContext(ctx, "audit append failed",
					"action", string(event.Action),
					"error", err,
				)
			}
			if w.sink != nil {
				if err := w.sink.Emit(ctx, event); err != nil {
					w.logger.WarnContext(ctx, "audit sink emit failed",
						"action", string(event.Action),
						"error", err,
					)
				}
			}
		}
	}
}
