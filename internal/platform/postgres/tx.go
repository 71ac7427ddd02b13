package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tracker/internal/mutate"
	"tracker/pkg/platform/tx"
)

// defaultTxTimeout bounds a mutation's transactional window. Precondition
// reads run before this window opens and are governed by the caller's
// context alone.
const defaultTxTimeout = 5 * time.Second

// TxRunner implements mutate.TxRunner over a SQL database. Write steps
// receive a context carrying the open *sql.Tx (pkg/platform/tx), so the
// same store code serves reads and transactional writes. Serialization of
// conflicting mutations is left entirely to the database; the runner adds
// no locking or retries.
type TxRunner struct {
	db      *sql.DB
	timeout time.Duration
}

// NewTxRunner returns a TxRunner over db.
func NewTxRunner(db *sql.DB) *TxRunner {
	return &TxRunner{db: db, timeout: defaultTxTimeout}
}

// Begin opens a transaction. Collections are accepted for the executor's
// contract but carry no meaning here: Postgres locks rows, not
// collections.
func (r *TxRunner) Begin(ctx context.Context, _ ...string) (mutate.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cancel := func() {}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
	}

	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	return &runnerTx{tx: sqlTx, cancel: cancel}, nil
}

type runnerTx struct {
	tx     *sql.Tx
	cancel context.CancelFunc
}

func (t *runnerTx) Context(ctx context.Context) context.Context {
	return tx.WithTx(ctx, t.tx)
}

func (t *runnerTx) Commit() error {
	defer t.cancel()
	return t.tx.Commit()
}

// Abort rolls the transaction back. Safe after a failed Commit:
// sql.ErrTxDone is swallowed since the transaction is already finished.
func (t *runnerTx) Abort() error {
	defer t.cancel()
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}
