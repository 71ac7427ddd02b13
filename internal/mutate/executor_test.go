package mutate

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "tracker/pkg/domain"
	dErrors "tracker/pkg/domain-errors"
)

// fakeTxRunner scripts failures per stage and records lifecycle calls.
type fakeTxRunner struct {
	beginErr  error
	commitErr error

	began       int
	committed   int
	aborted     int
	collections []string
}

func (f *fakeTxRunner) Begin(_ context.Context, collections ...string) (Tx, error) {
	f.began++
	f.collections = collections
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	return &fakeTx{runner: f}, nil
}

type fakeTx struct {
	runner *fakeTxRunner
}

func (t *fakeTx) Context(ctx context.Context) context.Context { return ctx }

func (t *fakeTx) Commit() error {
	if t.runner.commitErr != nil {
		return t.runner.commitErr
	}
	t.runner.committed++
	return nil
}

func (t *fakeTx) Abort() error {
	t.runner.aborted++
	return nil
}

type recordingMetrics struct {
	committed []string
	failed    map[string]string
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{failed: map[string]string{}}
}

func (r *recordingMetrics) MutationCommitted(intent string) { r.committed = append(r.committed, intent) }
func (r *recordingMetrics) MutationFailed(intent, stage string) {
	r.failed[intent] = stage
}

func testMutation(precondition, write func(ctx context.Context) error) Mutation {
	return Mutation{
		Intent:       "update domain example.com for org acme",
		Requester:    id.NewUserKey(),
		Collections:  []string{"domains", "claims"},
		Precondition: precondition,
		Write:        write,
	}
}

func TestExecuteCommits(t *testing.T) {
	runner := &fakeTxRunner{}
	metrics := newRecordingMetrics()
	exec := New(runner, WithLogger(slog.Default()), WithRecorder(metrics))

	var wrote bool
	m := testMutation(
		func(ctx context.Context) error { return nil },
		func(ctx context.Context) error { wrote = true; return nil },
	)

	require.NoError(t, exec.Execute(context.Background(), m))
	assert.True(t, wrote)
	assert.Equal(t, 1, runner.began)
	assert.Equal(t, 1, runner.committed)
	assert.Equal(t, 0, runner.aborted)
	assert.Equal(t, []string{"domains", "claims"}, runner.collections)
	assert.Equal(t, []string{m.Intent}, metrics.committed)
}

func TestExecutePreconditionFailure(t *testing.T) {
	runner := &fakeTxRunner{}
	exec := New(runner)

	storeErr := errors.New("cursor: connection refused")
	err := exec.Execute(context.Background(), testMutation(
		func(ctx context.Context) error { return storeErr },
		func(ctx context.Context) error { t.Fatal("write must not run"); return nil },
	))

	require.Error(t, err)
	stage, ok := FailureStage(err)
	require.True(t, ok)
	assert.Equal(t, StagePrecondition, stage)
	assert.True(t, errors.Is(err, storeErr))
	// No transaction is opened when preconditions fail.
	assert.Equal(t, 0, runner.began)
}

func TestExecuteRunFailure(t *testing.T) {
	runner := &fakeTxRunner{}
	metrics := newRecordingMetrics()
	exec := New(runner, WithRecorder(metrics))

	m := testMutation(nil, func(ctx context.Context) error { return errors.New("insert failed") })
	err := exec.Execute(context.Background(), m)

	stage, ok := FailureStage(err)
	require.True(t, ok)
	assert.Equal(t, StageRun, stage)
	assert.Equal(t, 1, runner.aborted, "failed run must abort the transaction")
	assert.Equal(t, 0, runner.committed)
	assert.Equal(t, string(StageRun), metrics.failed[m.Intent])
}

func TestExecuteBeginFailureIsRunStage(t *testing.T) {
	runner := &fakeTxRunner{beginErr: errors.New("too many connections")}
	exec := New(runner)

	err := exec.Execute(context.Background(), testMutation(nil, func(ctx context.Context) error { return nil }))
	stage, ok := FailureStage(err)
	require.True(t, ok)
	assert.Equal(t, StageRun, stage)
}

func TestExecuteCommitFailure(t *testing.T) {
	runner := &fakeTxRunner{commitErr: errors.New("write conflict")}
	exec := New(runner)

	err := exec.Execute(context.Background(), testMutation(nil, func(ctx context.Context) error { return nil }))
	stage, ok := FailureStage(err)
	require.True(t, ok)
	assert.Equal(t, StageCommit, stage)
	assert.Equal(t, 0, runner.committed)
}

// Coded domain errors are decisions, not failures: they pass through
// unclassified from either stage.
func TestExecutePassesThroughDomainErrors(t *testing.T) {
	t.Run("precondition", func(t *testing.T) {
		exec := New(&fakeTxRunner{})
		denial := dErrors.New(dErrors.CodeForbidden, "cannot update your own role")
		err := exec.Execute(context.Background(), testMutation(
			func(ctx context.Context) error { return denial },
			nil,
		))
		assert.Equal(t, denial, err)
		_, classified := FailureStage(err)
		assert.False(t, classified)
	})

	t.Run("write", func(t *testing.T) {
		runner := &fakeTxRunner{}
		exec := New(runner)
		conflict := dErrors.New(dErrors.CodeConflict, "slug already in use")
		err := exec.Execute(context.Background(), testMutation(
			nil,
			func(ctx context.Context) error { return conflict },
		))
		assert.Equal(t, conflict, err)
		assert.Equal(t, 1, runner.aborted)
	})
}

func TestMemoryTxRunnerSerializes(t *testing.T) {
	runner := NewMemoryTxRunner()
	ctx := context.Background()

	tx, err := runner.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	tx2, err := runner.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx2.Abort())

	// Double release must not panic or unlock twice.
	require.NoError(t, tx2.Commit())
}
