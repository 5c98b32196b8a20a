package logic

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/BaSui01/nodeflow/graph"
	"github.com/BaSui01/nodeflow/internal/ctxkeys"
	"github.com/BaSui01/nodeflow/types"
)

// =============================================================================
// Construction
// =============================================================================

func TestNew_HasEntryAndExit(t *testing.T) {
	t.Parallel()
	lg := New(graph.WithName("flow"))

	require.NotNil(t, lg.EntryPoint())
	require.NotNil(t, lg.ExitPoint())
	assert.Equal(t, "Entry Point", lg.EntryPoint().Name())
	assert.Equal(t, "Exit Point", lg.ExitPoint().Name())
	assert.Same(t, lg, From(lg.Graph))
	assert.Equal(t, Idle, lg.State())
	assert.Nil(t, lg.CurrentNode())

	_, err := lg.AddNodeType(EntryType)
	assert.True(t, types.IsErrorCode(err, types.ErrNodeLimit))
	assert.True(t, types.IsErrorCode(lg.RemoveNode(lg.ExitPoint()), types.ErrRequiredNode))
}

func TestFlowNodes_ImplementNode(t *testing.T) {
	t.Parallel()
	nodes := []Node{
		&Entry{}, &Exit{}, &If{}, &While{}, &Abort{}, &Print{}, &SubFlow{},
		&SetGlobalValue[int]{}, &SetLocalValue[string]{},
	}
	for _, n := range nodes {
		assert.NotNil(t, n.Base(), "%T", n)
	}
}

func TestEntry_ExposesPrevPort(t *testing.T) {
	t.Parallel()
	lg := New()
	entry := lg.EntryPoint()
	require.NotNil(t, entry.PrevPort())
	assert.Equal(t, PortPrev, entry.PrevPort().Name())
	assert.Empty(t, entry.Prevs())

	a := addRecord(t, lg, nil, "a")
	chain(t, lg, a)
	assert.Same(t, a, entry.Next())
}

func TestFrom_NonLogicGraph(t *testing.T) {
	t.Parallel()
	assert.Nil(t, From(graph.New()))
	assert.Nil(t, From(nil))
}

func TestConnectors(t *testing.T) {
	t.Parallel()
	lg := New()
	assert.True(t, IsConnector(lg.EntryPoint()))
	assert.True(t, IsConnector(lg.ExitPoint()))
	assert.True(t, IsConnector(mustAdd[*If](t, lg)))
	assert.False(t, IsConnector(mustAdd[*Abort](t, lg)))
	assert.False(t, IsConnector(mustAdd[*While](t, lg)))
}

// =============================================================================
// Execute
// =============================================================================

func TestExecute_PrintLogsOnce(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zapcore.InfoLevel)
	lg := New(graph.WithLogger(zap.New(core)))

	p := mustAdd[*Print](t, lg)
	p.Value.SetValue("hi")
	chain(t, lg, p)

	require.NoError(t, lg.Execute(context.Background()))
	assert.Equal(t, 1, logs.FilterMessage("hi").Len())
	assert.Equal(t, Idle, lg.State())
	assert.False(t, lg.IsAborting())
	assert.Nil(t, lg.CurrentNode())
}

func TestExecute_RunsChainInOrder(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 8).Draw(rt, "nodes")
		connectors := rapid.SliceOfN(rapid.Bool(), n+1, n+1).Draw(rt, "connectors")

		lg := New()
		rec := &recorder{}
		var want []string
		var flow []Node
		for i := 0; i <= n; i++ {
			if connectors[i] {
				c := mustAdd[*If](rt, lg)
				c.Condition.SetValue(true)
				flow = append(flow, c)
			}
			if i < n {
				label := fmt.Sprintf("n%d", i)
				flow = append(flow, addRecord(rt, lg, rec, label))
				want = append(want, label)
			}
		}
		chain(rt, lg, flow...)

		require.NoError(rt, lg.Execute(context.Background()))
		assert.Equal(rt, want, rec.log)
		assert.Nil(rt, lg.CurrentNode())
		assert.False(rt, lg.IsAborting())
	})
}

func TestExecute_AbortStopsAfterNode(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(rt, "nodes")
		k := rapid.IntRange(0, n-1).Draw(rt, "aborter")

		lg := New()
		rec := &recorder{}
		nodes := make([]Node, n)
		records := make([]*recordNode, n)
		var labels []string
		for i := range nodes {
			records[i] = addRecord(rt, lg, rec, fmt.Sprintf("n%d", i))
			nodes[i] = records[i]
			labels = append(labels, records[i].label)
		}
		records[k].onExec = func(_ context.Context, self *recordNode) error {
			self.Flow().Abort()
			return nil
		}
		chain(rt, lg, nodes...)

		require.NoError(rt, lg.Execute(context.Background()))
		assert.Equal(rt, labels[:k+1], rec.log)
		assert.True(rt, lg.IsAborting())
		assert.Equal(rt, Idle, lg.State())

		var abortingAtStart bool
		records[k].onExec = nil
		records[0].onExec = func(_ context.Context, self *recordNode) error {
			abortingAtStart = self.Flow().IsAborting()
			return nil
		}
		rec.log = nil
		require.NoError(rt, lg.Execute(context.Background()))
		assert.False(rt, abortingAtStart)
		assert.False(rt, lg.IsAborting())
		assert.Equal(rt, labels, rec.log)
	})
}

func TestExecute_StateDuringRun(t *testing.T) {
	t.Parallel()
	lg := New()
	var seen []State
	var current Node
	a := addRecord(t, lg, nil, "a")
	a.onExec = func(_ context.Context, self *recordNode) error {
		seen = append(seen, self.Flow().State())
		current = self.Flow().CurrentNode()
		self.Flow().Abort()
		seen = append(seen, self.Flow().State())
		return nil
	}
	chain(t, lg, a)

	require.NoError(t, lg.Execute(context.Background()))
	assert.Equal(t, []State{Running, Aborting}, seen)
	assert.Same(t, a, current)
	assert.Equal(t, Idle, lg.State())
}

func TestAbort_IdleIsNoop(t *testing.T) {
	t.Parallel()
	lg := New()
	lg.Abort()
	assert.False(t, lg.IsAborting())
}

func TestExecute_AbortNode(t *testing.T) {
	t.Parallel()
	lg := New()
	rec := &recorder{}
	a := addRecord(t, lg, rec, "a")
	stop := mustAdd[*Abort](t, lg)
	require.True(t, Link(lg.EntryPoint(), a))
	require.True(t, Link(a, stop))

	assert.Nil(t, stop.NextPort())
	assert.Nil(t, stop.Next())
	require.NoError(t, lg.Execute(context.Background()))
	assert.Equal(t, []string{"a"}, rec.log)
	assert.True(t, lg.IsAborting())
}

func TestExecute_EmptyFlow(t *testing.T) {
	t.Parallel()
	lg := New()
	require.True(t, Link(lg.EntryPoint(), lg.ExitPoint()))

	require.NoError(t, lg.Execute(context.Background()))
	assert.False(t, lg.IsAborting())
	assert.Nil(t, lg.EntryPoint().Next())
}

func TestExit_TerminatesAndAbortsWhenExecuted(t *testing.T) {
	t.Parallel()
	lg := New()
	exit := lg.ExitPoint()
	assert.Nil(t, exit.Next())
	assert.Nil(t, exit.NextPort())

	a := addRecord(t, lg, nil, "a")
	a.onExec = func(ctx context.Context, self *recordNode) error {
		return exit.Execute(ctx)
	}
	rec := &recorder{}
	b := addRecord(t, lg, rec, "b")
	require.True(t, Link(lg.EntryPoint(), a))
	require.True(t, Link(a, b))

	require.NoError(t, lg.Execute(context.Background()))
	assert.Empty(t, rec.log)
	assert.True(t, lg.IsAborting())
}

func TestExecute_NodeError(t *testing.T) {
	t.Parallel()
	lg := New()
	boom := errors.New("boom")
	rec := &recorder{}
	a := addRecord(t, lg, rec, "a")
	a.onExec = func(context.Context, *recordNode) error { return boom }
	b := addRecord(t, lg, rec, "b")
	chain(t, lg, a, b)

	err := lg.Execute(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.True(t, types.IsErrorCode(err, types.ErrExecutionFailed))
	assert.Equal(t, []string{"a"}, rec.log)
	assert.Equal(t, Idle, lg.State())
}

func TestExecute_Busy(t *testing.T) {
	t.Parallel()
	lg := New()
	var inner error
	a := addRecord(t, lg, nil, "a")
	a.onExec = func(ctx context.Context, self *recordNode) error {
		inner = self.Flow().Execute(ctx)
		return nil
	}
	chain(t, lg, a)

	require.NoError(t, lg.Execute(context.Background()))
	assert.True(t, types.IsErrorCode(inner, types.ErrFlowBusy))
}

func TestExecute_PanicEndsRun(t *testing.T) {
	t.Parallel()
	lg := New()
	rec := &recorder{}
	a := addRecord(t, lg, rec, "a")
	a.onExec = func(context.Context, *recordNode) error { panic("node bug") }
	chain(t, lg, a)
	var results []Result
	lg.Observe(ObserverFuncs{RunEnd: func(_ context.Context, _ *Run, res Result) { results = append(results, res) }})

	assert.PanicsWithValue(t, "node bug", func() { _ = lg.Execute(context.Background()) })
	assert.Equal(t, Idle, lg.State())
	assert.Nil(t, lg.CurrentNode())
	require.Len(t, results, 1)
	assert.Equal(t, StatusFailed, results[0].Status)
	assert.Equal(t, 1, results[0].Executed)
	assert.True(t, types.IsErrorCode(results[0].Err, types.ErrExecutionFailed))

	a.onExec = nil
	require.NoError(t, lg.Execute(context.Background()))
	require.Len(t, results, 2)
	assert.Equal(t, StatusCompleted, results[1].Status)
	assert.Equal(t, []string{"a", "a"}, rec.log)
}

func TestExecute_EvaluationCycle(t *testing.T) {
	t.Parallel()
	lg := New(graph.WithMaxEvalDepth(64))
	loop := mustAdd[*loopBool](t, lg)
	require.True(t, loop.Out.Connect(loop.In))
	branch := mustAdd[*If](t, lg)
	require.True(t, branch.Condition.Connect(loop.Out))
	require.True(t, Link(lg.EntryPoint(), branch))

	err := lg.Execute(context.Background())
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrEvaluationCycle))
	assert.Equal(t, Idle, lg.State())
}

func TestExecute_ContextCarriesRunID(t *testing.T) {
	t.Parallel()
	lg := New(graph.WithName("ids"))
	var runID, name string
	a := addRecord(t, lg, nil, "a")
	a.onExec = func(ctx context.Context, _ *recordNode) error {
		runID, _ = ctxkeys.RunID(ctx)
		name, _ = ctxkeys.GraphName(ctx)
		return nil
	}
	chain(t, lg, a)

	require.NoError(t, lg.Execute(context.Background()))
	assert.NotEmpty(t, runID)
	assert.Equal(t, "ids", name)
}

// =============================================================================
// If
// =============================================================================

func TestIf_SelectsBranchOnEveryQuery(t *testing.T) {
	t.Parallel()
	lg := New()
	rec := &recorder{}
	branch := mustAdd[*If](t, lg)
	yes := addRecord(t, lg, rec, "yes")
	no := addRecord(t, lg, rec, "no")
	require.True(t, Link(lg.EntryPoint(), branch))
	require.True(t, branch.True.Connect(yes.PrevPort()))
	require.True(t, branch.False.Connect(no.PrevPort()))

	branch.Condition.SetValue(true)
	assert.Same(t, branch.True, branch.NextPort())
	require.NoError(t, lg.Execute(context.Background()))

	branch.Condition.SetValue(false)
	assert.Same(t, branch.False, branch.NextPort())
	require.NoError(t, lg.Execute(context.Background()))

	assert.Equal(t, []string{"yes", "no"}, rec.log)
	assert.Empty(t, yes.Prevs())
}

func TestPrevs_SkipConnectors(t *testing.T) {
	t.Parallel()
	lg := New()
	a := addRecord(t, lg, nil, "a")
	b := addRecord(t, lg, nil, "b")
	branch := mustAdd[*If](t, lg)
	c := addRecord(t, lg, nil, "c")
	require.True(t, Link(lg.EntryPoint(), a))
	require.True(t, Link(a, branch))
	require.True(t, Link(b, c))
	require.True(t, branch.True.Connect(c.PrevPort()))

	assert.ElementsMatch(t, []Node{a, b}, c.Prevs())
	assert.Empty(t, a.Prevs())
}

// =============================================================================
// While
// =============================================================================

func whileFlow(t *testing.T, start, count int) (*Graph, *While, *recorder) {
	t.Helper()
	lg := New()
	rec := &recorder{}
	loop := mustAdd[*While](t, lg)
	loop.Start.SetValue(start)
	loop.Count.SetValue(count)
	after := addRecord(t, lg, rec, "after")
	chain(t, lg, loop, after)
	return lg, loop, rec
}

func TestWhile_Iterates(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name         string
		start, count int
		want         []int
	}{
		{name: "ascending", start: 0, count: 3, want: []int{0, 1, 2}},
		{name: "offset", start: 5, count: 2, want: []int{5, 6}},
		{name: "descending", start: 5, count: -3, want: []int{5, 4, 3}},
		{name: "empty", start: 1, count: 0, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			lg, loop, rec := whileFlow(t, tt.start, tt.count)
			var got []int
			body := addRecord(t, lg, rec, "body")
			body.onExec = func(context.Context, *recordNode) error {
				got = append(got, loop.Index.Value())
				return nil
			}
			second := addRecord(t, lg, rec, "second")
			require.True(t, loop.Body.Connect(body.PrevPort()))
			require.True(t, Link(body, second))

			require.NoError(t, lg.Execute(context.Background()))
			assert.Equal(t, tt.want, got)
			assert.Equal(t, 0, loop.Index.Value())
			assert.Equal(t, 2*len(tt.want)+1, len(rec.log))
			assert.Equal(t, "after", rec.log[len(rec.log)-1])
		})
	}
}

func TestWhile_AbortStopsIterations(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(rt *rapid.T) {
		count := rapid.IntRange(1, 10).Draw(rt, "count")
		stopAt := rapid.IntRange(0, count-1).Draw(rt, "stop_at")

		lg := New()
		rec := &recorder{}
		loop := mustAdd[*While](rt, lg)
		loop.Count.SetValue(count)
		after := addRecord(rt, lg, rec, "after")
		chain(rt, lg, loop, after)

		iterations := 0
		body := addRecord(rt, lg, nil, "body")
		body.onExec = func(_ context.Context, self *recordNode) error {
			if loop.Index.Value() == stopAt {
				self.Flow().Abort()
			}
			iterations++
			return nil
		}
		require.True(rt, loop.Body.Connect(body.PrevPort()))

		require.NoError(rt, lg.Execute(context.Background()))
		assert.Equal(rt, stopAt+1, iterations)
		assert.Equal(rt, 0, loop.Index.Value())
		assert.Empty(rt, rec.log)
		assert.True(rt, lg.IsAborting())
	})
}

func TestWhile_BodySkipsConnectors(t *testing.T) {
	t.Parallel()
	lg, loop, rec := whileFlow(t, 0, 2)
	branch := mustAdd[*If](t, lg)
	branch.Condition.SetValue(false)
	body := addRecord(t, lg, rec, "body")
	require.True(t, loop.Body.Connect(branch.PrevPort()))
	require.True(t, branch.False.Connect(body.PrevPort()))

	require.NoError(t, lg.Execute(context.Background()))
	assert.Equal(t, []string{"body", "body", "after"}, rec.log)
}

func TestWhile_BodyErrorResetsIndex(t *testing.T) {
	t.Parallel()
	lg, loop, rec := whileFlow(t, 3, 4)
	body := addRecord(t, lg, rec, "body")
	body.onExec = func(context.Context, *recordNode) error { return errors.New("body failed") }
	require.True(t, loop.Body.Connect(body.PrevPort()))

	err := lg.Execute(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, loop.Index.Value())
	assert.Equal(t, []string{"body"}, rec.log)
}

// =============================================================================
// Step
// =============================================================================

func TestStep(t *testing.T) {
	t.Parallel()
	lg := New()
	rec := &recorder{}
	a := addRecord(t, lg, rec, "a")
	b := addRecord(t, lg, rec, "b")
	chain(t, lg, a, b)
	ctx := context.Background()

	n, err := lg.Step(ctx)
	require.NoError(t, err)
	assert.Same(t, a, n)
	assert.Equal(t, Running, lg.State())

	n, err = lg.Step(ctx)
	require.NoError(t, err)
	assert.Same(t, b, n)

	n, err = lg.Step(ctx)
	require.NoError(t, err)
	assert.Nil(t, n)
	assert.Equal(t, Idle, lg.State())

	n, err = lg.Step(ctx)
	require.NoError(t, err)
	assert.Same(t, a, n)
	assert.Equal(t, []string{"a", "b", "a"}, rec.log)
}

func TestStep_Abort(t *testing.T) {
	t.Parallel()
	lg := New()
	rec := &recorder{}
	a := addRecord(t, lg, rec, "a")
	a.onExec = func(_ context.Context, self *recordNode) error {
		self.Flow().Abort()
		return nil
	}
	b := addRecord(t, lg, rec, "b")
	chain(t, lg, a, b)
	ctx := context.Background()

	n, err := lg.Step(ctx)
	require.NoError(t, err)
	assert.Same(t, a, n)
	assert.Equal(t, Aborting, lg.State())

	n, err = lg.Step(ctx)
	require.NoError(t, err)
	assert.Nil(t, n)
	assert.Equal(t, Idle, lg.State())
	assert.Equal(t, []string{"a"}, rec.log)
}

func TestStep_PanicResetsState(t *testing.T) {
	t.Parallel()
	lg := New()
	a := addRecord(t, lg, nil, "a")
	a.onExec = func(context.Context, *recordNode) error { panic("node bug") }
	chain(t, lg, a)
	ctx := context.Background()

	assert.Panics(t, func() { _, _ = lg.Step(ctx) })
	assert.Equal(t, Idle, lg.State())

	a.onExec = nil
	n, err := lg.Step(ctx)
	require.NoError(t, err)
	assert.Same(t, a, n)
}

// =============================================================================
// Observers
// =============================================================================

func TestObserver_ReceivesRunAndNodeEvents(t *testing.T) {
	t.Parallel()
	lg := New(graph.WithName("observed"))
	loop := mustAdd[*While](t, lg)
	loop.Count.SetValue(2)
	body := addRecord(t, lg, nil, "body")
	require.True(t, loop.Body.Connect(body.PrevPort()))
	chain(t, lg, loop)

	type ctxKey struct{}
	var started *Run
	var executed []string
	var result Result
	var sawValue bool
	lg.Observe(ObserverFuncs{
		RunStart: func(ctx context.Context, run *Run) context.Context {
			started = run
			return context.WithValue(ctx, ctxKey{}, "tagged")
		},
		NodeExecuted: func(ctx context.Context, _ *Run, ev NodeEvent) {
			executed = append(executed, TypeName(ev.Node))
			sawValue = ctx.Value(ctxKey{}) == "tagged"
		},
		RunEnd: func(_ context.Context, _ *Run, res Result) { result = res },
	})
	lg.Observe(nil)

	require.NoError(t, lg.Execute(context.Background()))
	require.NotNil(t, started)
	assert.Equal(t, "observed", started.Graph)
	assert.Equal(t, []string{"test.record", "test.record", "logic.while"}, executed)
	assert.True(t, sawValue)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, 1, result.Executed)
}

func TestObserver_FailedAndAbortedStatus(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		exec func(context.Context, *recordNode) error
		want Status
	}{
		{name: "failed", exec: func(context.Context, *recordNode) error { return errors.New("x") }, want: StatusFailed},
		{name: "aborted", exec: func(_ context.Context, n *recordNode) error { n.Flow().Abort(); return nil }, want: StatusAborted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			lg := New()
			a := addRecord(t, lg, nil, "a")
			a.onExec = tt.exec
			chain(t, lg, a)
			var got Result
			lg.Observe(ObserverFuncs{RunEnd: func(_ context.Context, _ *Run, res Result) { got = res }})

			_ = lg.Execute(context.Background())
			assert.Equal(t, tt.want, got.Status)
		})
	}
}

// =============================================================================
// Copy
// =============================================================================

func TestCopy_PreservesFlow(t *testing.T) {
	t.Parallel()
	lg := New(graph.WithName("orig"))
	rec := &recorder{}
	a := addRecord(t, lg, rec, "a")
	b := addRecord(t, lg, rec, "b")
	chain(t, lg, a, b)

	cp := lg.Copy()
	require.NotNil(t, cp)
	require.NotSame(t, lg, cp)
	require.NoError(t, cp.Execute(context.Background()))
	assert.Equal(t, []string{"a", "b"}, rec.log)

	first := cp.EntryPoint().Next()
	require.NotNil(t, first)
	assert.NotSame(t, a, first)
	assert.Same(t, cp.Graph, first.Base().Graph())
}
