package audit

import "context"

// Store is the append-only persistence for audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Sink receives events beyond the primary store (e.g. a Kafka topic).
// Delivery is best-effort; the worker logs and drops on error.
type Sink interface {
	Emit(ctx context.Context, event Event) error
}
