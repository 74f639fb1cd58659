package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/gridmake/internal/ctxlog"
	"github.com/vk/gridmake/internal/dag"
	"github.com/vk/gridmake/internal/events"
	"github.com/vk/gridmake/internal/executor"
	"github.com/vk/gridmake/internal/rule"
	"github.com/vk/gridmake/internal/storage"
	"github.com/vk/gridmake/internal/wildcard"
	"github.com/vk/gridmake/internal/workflow"
)

// fixture is a small build tree on an in-memory filesystem with a manual
// clock, so modification times are strictly ordered.
type fixture struct {
	t     *testing.T
	ctx   context.Context
	store storage.Storage
	wf    *workflow.Workflow
	pool  *executor.Pool

	mu      sync.Mutex
	now     time.Time
	ran     []string
	failing map[string]bool
	planned []events.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:       t,
		ctx:     ctxlog.Discard(context.Background()),
		store:   storage.NewMemory(),
		wf:      workflow.New(),
		now:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		failing: make(map[string]bool),
	}
	f.pool = executor.NewPool(f.ctx, 2, executor.NewRunner(f.store, nil))
	t.Cleanup(func() { _ = f.pool.Close() })
	return f
}

func (f *fixture) tick() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(time.Second)
	return f.now
}

// touch writes path (when missing) and stamps it with the next clock tick.
func (f *fixture) touch(path string) {
	f.t.Helper()
	if !f.store.Exists(path) {
		require.NoError(f.t, afero.WriteFile(f.store.Fs(), path, []byte(path), 0o644))
	}
	ts := f.tick()
	require.NoError(f.t, f.store.Fs().Chtimes(path, ts, ts))
}

// rule registers a rule whose action records the run and writes every output.
func (f *fixture) rule(name string, input, output []string) {
	f.t.Helper()
	r, err := f.wf.RegisterRule(name)
	require.NoError(f.t, err)
	require.NoError(f.t, r.AddInput(input))
	require.NoError(f.t, r.AddOutput(output))
	r.BindAction(func(_ context.Context, _, out []string, _ wildcard.Binding) error {
		f.mu.Lock()
		f.ran = append(f.ran, name)
		fail := f.failing[name]
		f.mu.Unlock()

		for _, o := range out {
			if err := afero.WriteFile(f.store.Fs(), o, []byte(name), 0o644); err != nil {
				return err
			}
			ts := f.tick()
			if err := f.store.Fs().Chtimes(o, ts, ts); err != nil {
				return err
			}
		}
		if fail {
			return errors.New("simulated failure")
		}
		return nil
	})
}

// aggregate registers a rule with inputs only.
func (f *fixture) aggregate(name string, input []string) {
	f.t.Helper()
	r, err := f.wf.RegisterRule(name)
	require.NoError(f.t, err)
	require.NoError(f.t, r.AddInput(input))
}

func (f *fixture) lookup(name string) *rule.Rule {
	f.t.Helper()
	r, ok := f.wf.Rule(name)
	require.True(f.t, ok, "rule %s", name)
	return r
}

func (f *fixture) Notify(_ context.Context, ev events.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.planned = append(f.planned, ev)
}

func (f *fixture) run(name string, opts Options) error {
	f.t.Helper()
	s := New(dag.NewResolver(f.wf, f.store), f.pool, nil)
	h, err := s.Run(f.ctx, f.lookup(name), nil, opts)
	if err != nil || h == nil {
		return err
	}
	return h.Wait()
}

func (f *fixture) dryRun(name string, opts Options) []string {
	f.t.Helper()
	f.mu.Lock()
	f.planned = nil
	f.mu.Unlock()

	s := New(dag.NewResolver(f.wf, f.store), nil, f)
	_, err := s.DryRun(f.ctx, f.lookup(name), nil, opts)
	require.NoError(f.t, err)

	var rules []string
	for _, ev := range f.planned {
		rules = append(rules, ev.Rule)
	}
	return rules
}

func (f *fixture) takeRuns() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ran := f.ran
	f.ran = nil
	return ran
}

// helloTree is A: hello.txt -> out/hello.txt, B: out/hello.txt -> final_hello.done.
func helloTree(t *testing.T) *fixture {
	f := newFixture(t)
	f.rule("A", []string{"hello.txt"}, []string{"out/hello.txt"})
	f.rule("B", []string{"out/hello.txt"}, []string{"final_hello.done"})
	f.touch("hello.txt")
	return f
}

func TestRun_BuildsUpstreamFirst(t *testing.T) {
	f := helloTree(t)

	require.NoError(t, f.run("B", Options{}))

	assert.Equal(t, []string{"A", "B"}, f.takeRuns())
	assert.True(t, f.store.Exists("out/hello.txt"))
	assert.True(t, f.store.Exists("final_hello.done"))
}

func TestRun_IsIdempotent(t *testing.T) {
	f := helloTree(t)
	require.NoError(t, f.run("B", Options{}))
	f.takeRuns()

	require.NoError(t, f.run("B", Options{}))

	assert.Empty(t, f.takeRuns())
}

func TestRun_TouchedInputRebuildsDownstream(t *testing.T) {
	f := helloTree(t)
	require.NoError(t, f.run("B", Options{}))
	f.takeRuns()

	f.touch("hello.txt")
	require.NoError(t, f.run("B", Options{}))

	assert.Equal(t, []string{"A", "B"}, f.takeRuns())
}

func TestRun_TouchedIntermediateRebuildsOnlyDownstream(t *testing.T) {
	f := helloTree(t)
	require.NoError(t, f.run("B", Options{}))
	f.takeRuns()

	f.touch("out/hello.txt")
	require.NoError(t, f.run("B", Options{}))

	assert.Equal(t, []string{"B"}, f.takeRuns())
}

func TestRun_SharedDependencyRunsOnce(t *testing.T) {
	f := helloTree(t)
	f.rule("C", []string{"out/hello.txt"}, []string{"other.done"})
	f.aggregate("all", []string{"final_hello.done", "other.done"})

	require.NoError(t, f.run("all", Options{}))

	ran := f.takeRuns()
	assert.Equal(t, 1, count(ran, "A"), "ran: %v", ran)
	assert.Equal(t, 1, count(ran, "B"))
	assert.Equal(t, 1, count(ran, "C"))
	assert.Equal(t, "A", ran[0])
}

func TestRun_WildcardInstancesAreSeparateJobs(t *testing.T) {
	f := newFixture(t)
	f.rule("copy", []string{"{name}.txt"}, []string{"out/{name}.txt"})
	f.aggregate("all", []string{"out/a.txt", "out/b.txt"})
	f.touch("a.txt")
	f.touch("b.txt")

	require.NoError(t, f.run("all", Options{}))

	assert.Equal(t, []string{"copy", "copy"}, f.takeRuns())
	assert.True(t, f.store.Exists("out/a.txt"))
	assert.True(t, f.store.Exists("out/b.txt"))
}

func TestRun_FailureStopsDownstreamAndCleansUp(t *testing.T) {
	f := helloTree(t)
	f.failing["A"] = true

	err := f.run("B", Options{})

	var failed *executor.ActionFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, "A", failed.Rule)
	assert.Equal(t, []string{"A"}, f.takeRuns())
	assert.False(t, f.store.Exists("out/hello.txt"), "partial output removed")
	assert.False(t, f.store.Exists("final_hello.done"))
}

func TestRun_ForceThisOnlyAffectsTarget(t *testing.T) {
	f := helloTree(t)
	require.NoError(t, f.run("B", Options{}))
	f.takeRuns()

	require.NoError(t, f.run("B", Options{ForceThis: true}))
	assert.Equal(t, []string{"B"}, f.takeRuns())

	require.NoError(t, f.run("B", Options{ForceAll: true}))
	assert.Equal(t, []string{"A", "B"}, f.takeRuns())
}

func TestRun_ForceProducersForcesOneLevel(t *testing.T) {
	f := helloTree(t)
	f.aggregate("all", []string{"final_hello.done"})
	require.NoError(t, f.run("all", Options{}))
	f.takeRuns()

	require.NoError(t, f.run("all", Options{ForceThis: true}))
	assert.Empty(t, f.takeRuns(), "the aggregator itself has nothing to run")

	require.NoError(t, f.run("all", Options{ForceProducers: true}))
	assert.Equal(t, []string{"B"}, f.takeRuns())

	assert.Equal(t, []string{"B"}, f.dryRun("all", Options{ForceProducers: true}))
}

func TestRun_PropagatesResolutionErrors(t *testing.T) {
	f := newFixture(t)
	f.rule("B", []string{"nowhere.txt"}, []string{"final.done"})

	err := f.run("B", Options{})

	assert.ErrorIs(t, err, dag.ErrMissingInput)
	assert.Empty(t, f.takeRuns())
}

func TestDryRun_ReportsWithoutRunning(t *testing.T) {
	f := helloTree(t)

	planned := f.dryRun("B", Options{})

	assert.Equal(t, []string{"A", "B"}, planned)
	assert.Empty(t, f.takeRuns())
	assert.False(t, f.store.Exists("out/hello.txt"))
	assert.Equal(t, "rule A:\n\tinput: hello.txt\n\toutput: out/hello.txt\n", f.planned[0].Message)
	assert.Equal(t, events.JobPlanned, f.planned[0].Type)
}

func TestDryRun_UpstreamWorkMarksDownstream(t *testing.T) {
	f := helloTree(t)
	require.NoError(t, f.run("B", Options{}))
	f.takeRuns()

	assert.Empty(t, f.dryRun("B", Options{}))

	f.touch("hello.txt")
	assert.Equal(t, []string{"A", "B"}, f.dryRun("B", Options{}))
}

func TestDryRun_ReportsSharedDependencyOnce(t *testing.T) {
	f := helloTree(t)
	f.rule("C", []string{"out/hello.txt"}, []string{"other.done"})
	f.aggregate("all", []string{"final_hello.done", "other.done"})

	planned := f.dryRun("all", Options{})

	if diff := cmp.Diff([]string{"A", "B", "C"}, planned); diff != "" {
		t.Errorf("planned jobs mismatch (-want +got):\n%s", diff)
	}
}

func TestDryRun_Force(t *testing.T) {
	f := helloTree(t)
	require.NoError(t, f.run("B", Options{}))
	f.takeRuns()

	assert.Equal(t, []string{"B"}, f.dryRun("B", Options{ForceThis: true}))
	assert.Equal(t, []string{"A", "B"}, f.dryRun("B", Options{ForceAll: true}))
}

func TestNeedsRun(t *testing.T) {
	f := newFixture(t)
	s := New(dag.NewResolver(f.wf, f.store), nil, nil)

	f.touch("in.txt")
	f.touch("out.txt")
	f.touch("newer.txt")

	tests := []struct {
		name string
		req  rule.Request
		want bool
	}{
		{name: "no outputs", req: rule.Request{Input: []string{"in.txt"}}, want: false},
		{name: "missing output", req: rule.Request{Input: []string{"in.txt"}, Output: []string{"absent.txt"}}, want: true},
		{name: "outputs newer", req: rule.Request{Input: []string{"in.txt"}, Output: []string{"out.txt"}}, want: false},
		{name: "input newer", req: rule.Request{Input: []string{"newer.txt"}, Output: []string{"out.txt"}}, want: true},
		{name: "oldest output decides", req: rule.Request{Input: []string{"out.txt"}, Output: []string{"in.txt", "newer.txt"}}, want: true},
		{name: "missing input ignored", req: rule.Request{Input: []string{"gone.txt"}, Output: []string{"out.txt"}}, want: false},
		{name: "no inputs", req: rule.Request{Output: []string{"out.txt"}}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.NeedsRun(tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNeedsRun_EqualTimesAreStale(t *testing.T) {
	f := newFixture(t)
	s := New(dag.NewResolver(f.wf, f.store), nil, nil)
	ts := f.tick()
	for _, p := range []string{"in.txt", "out.txt"} {
		require.NoError(t, afero.WriteFile(f.store.Fs(), p, nil, 0o644))
		require.NoError(t, f.store.Fs().Chtimes(p, ts, ts))
	}

	got, err := s.NeedsRun(rule.Request{Input: []string{"in.txt"}, Output: []string{"out.txt"}})

	require.NoError(t, err)
	assert.True(t, got)
}

func count(list []string, s string) int {
	n := 0
	for _, v := range list {
		if v == s {
			n++
		}
	}
	return n
}
