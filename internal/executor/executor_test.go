package executor

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/gridmake/internal/ctxlog"
	"github.com/vk/gridmake/internal/events"
	"github.com/vk/gridmake/internal/rule"
	"github.com/vk/gridmake/internal/storage"
	"github.com/vk/gridmake/internal/wildcard"
)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Notify(_ context.Context, ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Type
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func newJob(t *testing.T, name string, output []string, action rule.Action) Job {
	t.Helper()
	r := rule.New(name)
	require.NoError(t, r.AddOutput(output))
	r.BindAction(action)
	return Job{Rule: r, Request: r.Unexpanded()}
}

func writeOutputs(fs afero.Fs) rule.Action {
	return func(_ context.Context, _, output []string, _ wildcard.Binding) error {
		for _, o := range output {
			if err := afero.WriteFile(fs, o, []byte("ok"), 0o644); err != nil {
				return err
			}
		}
		return nil
	}
}

func TestRunner_Success(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	store := storage.NewMemory()
	rec := &recorder{}
	job := newJob(t, "make", []string{"deep/dir/out.txt"}, writeOutputs(store.Fs()))

	err := NewRunner(store, rec).Run(ctx, job)

	require.NoError(t, err)
	assert.True(t, store.Exists("deep/dir/out.txt"))
	assert.Equal(t, []events.Type{events.JobStarted, events.JobFinished}, rec.types())
	assert.Equal(t, "rule make:\n\tinput: \n\toutput: deep/dir/out.txt\n", rec.events[0].Message)
}

func TestRunner_FailureRemovesPartialOutputs(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	store := storage.NewMemory()
	rec := &recorder{}
	job := newJob(t, "B", []string{"final_hello.done", "outdir"}, func(_ context.Context, _, output []string, _ wildcard.Binding) error {
		require.NoError(t, afero.WriteFile(store.Fs(), output[0], []byte("partial"), 0o644))
		require.NoError(t, store.Fs().Mkdir(output[1], 0o755))
		return fmt.Errorf("copy failed: %w", &exec.ExitError{})
	})

	err := NewRunner(store, rec).Run(ctx, job)

	var failed *ActionFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, "B", failed.Rule)
	assert.Equal(t, "ExitError", failed.Kind)
	assert.ErrorIs(t, err, ErrActionFailed)
	assert.False(t, store.Exists("final_hello.done"))
	assert.False(t, store.Exists("outdir"))
	assert.Equal(t, []events.Type{events.JobStarted, events.JobFailed}, rec.types())
}

func TestRunner_PanicBecomesActionFailed(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	store := storage.NewMemory()
	job := newJob(t, "boom", []string{"x"}, func(context.Context, []string, []string, wildcard.Binding) error {
		panic("kaboom")
	})

	err := NewRunner(store, nil).Run(ctx, job)

	var failed *ActionFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, "Panic", failed.Kind)
	assert.Equal(t, "kaboom", failed.Message)
}

func TestRunner_OutputNotProduced(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	store := storage.NewMemory()
	job := newJob(t, "lazy", []string{"made.txt", "forgotten.txt"}, func(_ context.Context, _, output []string, _ wildcard.Binding) error {
		return afero.WriteFile(store.Fs(), output[0], nil, 0o644)
	})

	err := NewRunner(store, nil).Run(ctx, job)

	var missing *OutputNotProducedError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "forgotten.txt", missing.Path)
	assert.Equal(t, "lazy", missing.Rule)
	assert.ErrorIs(t, err, ErrOutputNotProduced)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, "Error", kindOf(errors.New("plain")))
	assert.Equal(t, "ExitError", kindOf(fmt.Errorf("wrapped: %w", &exec.ExitError{})))
	assert.Equal(t, "MissingKeyError", kindOf(&wildcard.MissingKeyError{Key: "x"}))
}

func TestJobKey(t *testing.T) {
	a := newJob(t, "a", []string{"x", "y"}, nil)
	b := newJob(t, "b", []string{"x", "y"}, nil)
	assert.Equal(t, a.Key(), b.Key(), "same outputs, same job")

	agg1 := Job{Rule: rule.New("agg1")}
	agg2 := Job{Rule: rule.New("agg2")}
	assert.NotEqual(t, agg1.Key(), agg2.Key())
}

func TestPool_BoundsConcurrency(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	store := storage.NewMemory()
	const workers = 3

	var running, peak atomic.Int32
	action := func(_ context.Context, _, output []string, _ wildcard.Binding) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		running.Add(-1)
		return afero.WriteFile(store.Fs(), output[0], nil, 0o644)
	}

	pool := NewPool(ctx, workers, NewRunner(store, nil))
	var handles []*Handle
	for i := 0; i < 10; i++ {
		handles = append(handles, pool.Submit(ctx, newJob(t, fmt.Sprintf("r%d", i), []string{fmt.Sprintf("out%d", i)}, action)))
	}
	for _, h := range handles {
		require.NoError(t, h.Wait())
	}
	require.NoError(t, pool.Close())

	assert.LessOrEqual(t, peak.Load(), int32(workers))
	assert.Equal(t, workers, pool.Size())
}

func TestPool_CloseDrainsUnawaitedJobs(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	store := storage.NewMemory()

	var finished atomic.Bool
	slowFail := func(context.Context, []string, []string, wildcard.Binding) error {
		time.Sleep(30 * time.Millisecond)
		finished.Store(true)
		return errors.New("sibling failed")
	}

	pool := NewPool(ctx, 2, NewRunner(store, nil))
	h := pool.Submit(ctx, newJob(t, "orphan", []string{"o"}, slowFail))

	err := pool.Close()

	assert.True(t, finished.Load(), "Close waits for dispatched jobs")
	assert.ErrorIs(t, err, ErrActionFailed)
	select {
	case <-h.Done():
	default:
		t.Fatal("handle should be finished after Close")
	}

	late := pool.Submit(ctx, newJob(t, "late", []string{"l"}, slowFail))
	assert.ErrorIs(t, late.Wait(), ErrPoolClosed)
	assert.NoError(t, pool.Close(), "second Close is a no-op")
}
