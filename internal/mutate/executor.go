// Package mutate runs graph mutations through a fixed three-stage
// pipeline: precondition reads, transactional write steps, commit. Each
// stage fails distinctly so callers can reason about whether the write
// happened. The executor owns no business rules; mutator services load
// preconditions and decide policy, the executor sequences and classifies.
package mutate

import (
	"context"
	"errors"
	"log/slog"

	id "tracker/pkg/domain"
	dErrors "tracker/pkg/domain-errors"
)

// Stage identifies where a mutation failed.
type Stage string

const (
	// StagePrecondition covers read-only lookups before any transaction
	// is opened. Nothing has been written.
	StagePrecondition Stage = "precondition_query"
	// StageRun covers transaction open and write-step execution. The
	// transaction is aborted; nothing is committed.
	StageRun Stage = "transaction_run"
	// StageCommit covers the commit itself. The effect is indeterminate
	// and must be treated as not applied.
	StageCommit Stage = "transaction_commit"
)

// Failure is a classified infrastructure failure from one stage. It is
// deliberately uncoded so transport layers render it as a generic internal
// error; the full cause only ever reaches the structured log.
type Failure struct {
	Stage     Stage
	Intent    string
	Requester id.UserKey
	cause     error
}

func (f *Failure) Error() string {
	return string(f.Stage) + ": " + f.Intent + ": " + f.cause.Error()
}

func (f *Failure) Unwrap() error {
	return f.cause
}

// FailureStage returns the stage tag when err is (or wraps) a Failure.
func FailureStage(err error) (Stage, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f.Stage, true
	}
	return "", false
}

// Tx is one open store transaction. Context binds the transaction into a
// context so stores route their statements through it; Commit and Abort
// end it. Abort after a failed Commit is a no-op at the store layer.
type Tx interface {
	Context(ctx context.Context) context.Context
	Commit() error
	Abort() error
}

// TxRunner opens transactions against the store. Collections name what
// the mutation touches; stores that do not lock per collection may ignore
// them.
type TxRunner interface {
	Begin(ctx context.Context, collections ...string) (Tx, error)
}

// Mutation is one unit of work for Execute. Precondition runs outside any
// transaction; Write runs inside one, receiving a context the stores
// recognize as transactional. Either may be nil.
//
// Results come out through closure state: the write step assembles the
// mutated entity in variables the caller owns.
type Mutation struct {
	// Intent is the human-readable purpose, e.g. "update role of user X in org Y".
	Intent string
	// Requester is the authenticated user driving the mutation.
	Requester id.UserKey
	// Collections the write steps touch.
	Collections  []string
	Precondition func(ctx context.Context) error
	Write        func(ctx context.Context) error
}

// Executor sequences mutations and classifies their failures.
type Executor struct {
	tx      TxRunner
	logger  *slog.Logger
	metrics Recorder
}

// Recorder observes mutation outcomes. Implemented by the platform
// metrics package; the nop recorder keeps tests and partial wiring quiet.
type Recorder interface {
	MutationCommitted(intent string)
	MutationFailed(intent string, stage string)
}

type nopRecorder struct{}

func (nopRecorder) MutationCommitted(string)      {}
func (nopRecorder) MutationFailed(string, string) {}

// Option configures an Executor.
type Option func(e *Executor)

// WithLogger sets the structured logger for failure lines.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// WithRecorder sets the outcome recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Executor) { e.metrics = r }
}

// New constructs an Executor over the given transaction runner.
func New(tx TxRunner, opts ...Option) *Executor {
	e := &Executor{tx: tx, logger: slog.Default(), metrics: nopRecorder{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the mutation through its three stages.
//
// Error contract: coded domain errors (policy denials, not-found,
// conflicts) pass through unchanged from any stage — they are decisions,
// not failures. Everything else is wrapped in a *Failure tagged with the
// stage it came from, logged once here with its full cause, and rendered
// generically upstream. Nothing is retried.
func (e *Executor) Execute(ctx context.Context, m Mutation) error {
	if m.Precondition != nil {
		if err := m.Precondition(ctx); err != nil {
			return e.fail(ctx, m, StagePrecondition, err)
		}
	}

	tx, err := e.tx.Begin(ctx, m.Collections...)
	if err != nil {
		return e.fail(ctx, m, StageRun, err)
	}

	if m.Write != nil {
		if err := m.Write(tx.Context(ctx)); err != nil {
			if abortErr := tx.Abort(); abortErr != nil {
				e.logger.WarnContext(ctx, "transaction abort failed",
					"intent", m.Intent,
					"error", abortErr,
				)
			}
			return e.fail(ctx, m, StageRun, err)
		}
	}

	if err := tx.Commit(); err != nil {
		_ = tx.Abort()
		return e.fail(ctx, m, StageCommit, err)
	}

	e.metrics.MutationCommitted(m.Intent)
	return nil
}

// fail classifies err for the given stage. Domain-coded errors pass
// through so the caller's policy and existence decisions keep their
// client-facing shape.
func (e *Executor) fail(ctx context.Context, m Mutation, stage Stage, err error) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}

	f := &Failure{Stage: stage, Intent: m.Intent, Requester: m.Requester, cause: err}
	e.logger.ErrorContext(ctx, "mutation failed",
		"stage", string(stage),
		"intent", m.Intent,
		"requester", m.Requester.String(),
		"error", err,
	)
	e.metrics.MutationFailed(m.Intent, string(stage))
	return f
}
