package mutate

import (
	"context"
	"sync"
)

// MemoryTxRunner serializes mutations behind one mutex. It gives the
// in-memory stores the same all-or-nothing shape the SQL runner gives
// Postgres only in the sense that concurrent write steps never
// interleave; write steps that partially applied before failing are the
// memory stores' own problem. Intended for tests and local wiring.
type MemoryTxRunner struct {
	mu sync.Mutex
}

// NewMemoryTxRunner returns a mutex-backed TxRunner.
func NewMemoryTxRunner() *MemoryTxRunner {
	return &MemoryTxRunner{}
}

func (r *MemoryTxRunner) Begin(ctx context.Context, _ ...string) (Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	return &memoryTx{runner: r}, nil
}

type memoryTx struct {
	runner *MemoryTxRunner
	done   bool
}

func (t *memoryTx) Context(ctx context.Context) context.Context { return ctx }

func (t *memoryTx) Commit() error {
	t.release()
	return nil
}

func (t *memoryTx) Abort() error {
	t.release()
	return nil
}

func (t *memoryTx) release() {
	if !t.done {
		t.done = true
		t.runner.mu.Unlock()
	}
}
