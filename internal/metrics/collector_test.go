package metrics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/nodeflow/blackboard"
	"github.com/BaSui01/nodeflow/graph"
	"github.com/BaSui01/nodeflow/logic"
)

func newTestCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewCollector("test", reg, zap.NewNop()), reg
}

// =============================================================================
// Flow runs
// =============================================================================

func TestCollector_ObservesRuns(t *testing.T) {
	t.Parallel()
	c, _ := newTestCollector(t)

	lg := logic.New(graph.WithName("demo"), graph.WithMetrics(c))
	lg.Observe(c)
	p, err := graph.Add[*logic.Print](lg.Graph)
	require.NoError(t, err)
	require.True(t, logic.Link(lg.EntryPoint(), p))
	require.True(t, logic.Link(p, lg.ExitPoint()))

	require.NoError(t, lg.Execute(context.Background()))
	require.NoError(t, lg.Execute(context.Background()))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.runsTotal.WithLabelValues("demo", "completed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.nodesExecuted.WithLabelValues("logic.print", "ok")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.activeRuns))
	assert.Equal(t, 1, testutil.CollectAndCount(c.runDuration))

	// required nodes plus the print node
	assert.Equal(t, 1.0, testutil.ToFloat64(c.nodesAdded.WithLabelValues("logic.entry_point")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.nodesAdded.WithLabelValues("logic.print")))
}

func TestCollector_NodeErrors(t *testing.T) {
	t.Parallel()
	c, _ := newTestCollector(t)
	run := &logic.Run{ID: "r1", Graph: "g", Start: time.Now()}
	ctx := c.OnRunStart(context.Background(), run)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.activeRuns))

	c.OnNodeExecuted(ctx, run, logic.NodeEvent{Node: &logic.Abort{}, Duration: time.Millisecond, Err: errors.New("boom")})
	c.OnRunEnd(ctx, run, logic.Result{Status: logic.StatusFailed, End: time.Now()})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.nodesExecuted.WithLabelValues("", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runsTotal.WithLabelValues("g", "failed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.activeRuns))
}

// =============================================================================
// Graph and blackboard
// =============================================================================

func TestCollector_ConnectionRejected(t *testing.T) {
	t.Parallel()
	c, _ := newTestCollector(t)

	g := graph.New(graph.WithMetrics(c))
	a, err := graph.Add[*graph.InPoint[string]](g)
	require.NoError(t, err)
	b, err := graph.Add[*graph.OutPoint[float64]](g)
	require.NoError(t, err)

	assert.False(t, b.In.Connect(a.Out))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.connectionsRejected.WithLabelValues("type")))

	require.NoError(t, g.RemoveNode(a))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.nodesRemoved.WithLabelValues(a.Base().Type().Name)))
}

func TestCollector_BlackboardAccess(t *testing.T) {
	t.Parallel()
	c, _ := newTestCollector(t)
	b := blackboard.New(
		blackboard.WithMetrics(c),
		blackboard.WithGlobals(blackboard.Var{Key: "score", Value: 1}),
	)

	_, ok := b.GlobalValue("score")
	assert.True(t, ok)
	_, ok = b.GlobalValue("missing")
	assert.False(t, ok)
	assert.Error(t, b.SetGlobalValue("missing", 1))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.blackboardAccess.WithLabelValues("global", "get", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.blackboardAccess.WithLabelValues("global", "get", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.blackboardAccess.WithLabelValues("global", "set", "miss")))
}

// =============================================================================
// Cache and HTTP
// =============================================================================

func TestCollector_RecordCacheOperation(t *testing.T) {
	t.Parallel()
	c, _ := newTestCollector(t)

	c.RecordCacheHit("runs")
	c.RecordCacheHit("runs")
	c.RecordCacheMiss("runs")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.cacheHits.WithLabelValues("runs")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cacheMisses.WithLabelValues("runs")))
}

func TestCollector_RecordHTTPRequest(t *testing.T) {
	t.Parallel()
	c, _ := newTestCollector(t)

	c.RecordHTTPRequest("GET", "/runs", 200, 10*time.Millisecond)
	c.RecordHTTPRequest("GET", "/runs", 404, 5*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("GET", "/runs", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("GET", "/runs", "4xx")))
}

func TestCollector_WatchQueue(t *testing.T) {
	t.Parallel()
	c, reg := newTestCollector(t)

	busy, queued := 2, 7
	c.WatchQueue("history_save", func() int { return busy }, func() int { return queued })

	n, err := testutil.GatherAndCount(reg, "test_worker_busy", "test_worker_queued")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, f := range families {
		for _, m := range f.GetMetric() {
			if m.GetGauge() != nil {
				values[f.GetName()] = m.GetGauge().GetValue()
			}
		}
	}
	assert.Equal(t, 2.0, values["test_worker_busy"])
	assert.Equal(t, 7.0, values["test_worker_queued"])

	queued = 0
	families, err = reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == "test_worker_queued" {
			assert.Equal(t, 0.0, f.GetMetric()[0].GetGauge().GetValue())
		}
	}
}

func TestStatusCode(t *testing.T) {
	t.Parallel()
	tests := map[int]string{200: "2xx", 301: "3xx", 404: "4xx", 503: "5xx", 99: "99"}
	for code, want := range tests {
		assert.Equal(t, want, statusCode(code))
	}
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	t.Parallel()
	c, _ := newTestCollector(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordHTTPRequest("GET", "/healthz", 200, time.Millisecond)
			c.BlackboardAccess("local", "get", true)
			c.ConnectionRejected("direction")
		}()
	}
	wg.Wait()

	assert.Equal(t, 10.0, testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("GET", "/healthz", "2xx")))
	assert.Equal(t, 10.0, testutil.ToFloat64(c.blackboardAccess.WithLabelValues("local", "get", "hit")))
	assert.Equal(t, 10.0, testutil.ToFloat64(c.connectionsRejected.WithLabelValues("direction")))
}

func TestCollector_Registration(t *testing.T) {
	t.Parallel()
	c, reg := newTestCollector(t)
	c.NodeAdded("value.float")

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "test_graph_nodes_added_total")
	assert.Contains(t, names, "test_flow_active_runs")

	// a second collector on the same registry collides
	assert.Panics(t, func() { NewCollector("test", reg, nil) })
}
