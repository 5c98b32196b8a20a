package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/BaSui01/nodeflow/graph"
	"github.com/BaSui01/nodeflow/internal/ctxkeys"
	"github.com/BaSui01/nodeflow/logic"
)

type failingNode struct {
	logic.FlowBase
}

func (n *failingNode) DeclarePorts(d *graph.Declarer) { n.DeclareFlow(d) }

func (n *failingNode) Execute(context.Context) error { return errors.New("boom") }

var failingType = graph.Register(&graph.NodeType{
	Name: "test.telemetry_fail",
	New:  func() graph.Node { return &failingNode{} },
})

func tracedFlow(t *testing.T, name string) (*logic.Graph, *tracetest.SpanRecorder) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	lg := logic.New(graph.WithName(name))
	lg.Observe(NewFlowTracer(tp))
	return lg, rec
}

func TestFlowTracer_SpanPerRunAndNode(t *testing.T) {
	t.Parallel()
	lg, rec := tracedFlow(t, "traced")
	p1, err := graph.Add[*logic.Print](lg.Graph)
	require.NoError(t, err)
	p2, err := graph.Add[*logic.Print](lg.Graph)
	require.NoError(t, err)
	require.True(t, logic.Link(lg.EntryPoint(), p1))
	require.True(t, logic.Link(p1, p2))
	require.True(t, logic.Link(p2, lg.ExitPoint()))

	var traceID string
	lg.Observe(logic.ObserverFuncs{
		RunEnd: func(ctx context.Context, _ *logic.Run, _ logic.Result) {
			traceID, _ = ctxkeys.TraceID(ctx)
		},
	})

	require.NoError(t, lg.Execute(context.Background()))

	spans := rec.Ended()
	require.Len(t, spans, 3)
	root := spans[2]
	assert.Equal(t, "flow traced", root.Name())
	assert.Equal(t, root.SpanContext().TraceID().String(), traceID)
	for _, s := range spans[:2] {
		assert.Equal(t, "node logic.print", s.Name())
		assert.Equal(t, root.SpanContext().SpanID(), s.Parent().SpanID())
	}

	attrs := map[string]string{}
	for _, kv := range root.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "completed", attrs["nodeflow.status"])
	assert.Equal(t, "2", attrs["nodeflow.executed"])
}

func TestFlowTracer_RecordsErrors(t *testing.T) {
	t.Parallel()
	lg, rec := tracedFlow(t, "failing")
	n, err := lg.AddNodeType(failingType)
	require.NoError(t, err)
	require.True(t, logic.Link(lg.EntryPoint(), n.(logic.Node)))

	require.Error(t, lg.Execute(context.Background()))

	spans := rec.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.NotEmpty(t, spans[1].Events(), "error is recorded as a span event")
}

func TestNewFlowTracer_GlobalProvider(t *testing.T) {
	t.Parallel()
	tr := NewFlowTracer(nil)
	ctx := tr.OnRunStart(context.Background(), &logic.Run{ID: "r", Graph: "g"})
	assert.NotPanics(t, func() {
		tr.OnRunEnd(ctx, &logic.Run{ID: "r", Graph: "g"}, logic.Result{Status: logic.StatusCompleted})
	})
}

func TestProviders_TracerProvider(t *testing.T) {
	t.Parallel()
	var p *Providers
	assert.NotNil(t, p.TracerProvider())
	assert.NotNil(t, (&Providers{}).TracerProvider())
}
