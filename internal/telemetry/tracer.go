package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/BaSui01/nodeflow/internal/ctxkeys"
	"github.com/BaSui01/nodeflow/logic"
)

const instrumentationName = "github.com/BaSui01/nodeflow/logic"

// FlowTracer records one span per logic flow run with a child span for
// every executed node. Register it with (*logic.Graph).Observe.
type FlowTracer struct {
	tracer trace.Tracer
}

// NewFlowTracer uses tp, or the global provider when tp is nil.
func NewFlowTracer(tp trace.TracerProvider) *FlowTracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &FlowTracer{tracer: tp.Tracer(instrumentationName)}
}

func (t *FlowTracer) OnRunStart(ctx context.Context, run *logic.Run) context.Context {
	ctx, span := t.tracer.Start(ctx, "flow "+run.Graph,
		trace.WithTimestamp(run.Start),
		trace.WithAttributes(
			attribute.String("nodeflow.run_id", run.ID),
			attribute.String("nodeflow.graph", run.Graph),
		))
	if sc := span.SpanContext(); sc.HasTraceID() {
		ctx = ctxkeys.WithTraceID(ctx, sc.TraceID().String())
	}
	return ctx
}

// OnNodeExecuted records the node after the fact, so the child span is
// back-dated to the node's start.
func (t *FlowTracer) OnNodeExecuted(ctx context.Context, run *logic.Run, ev logic.NodeEvent) {
	b := ev.Node.Base()
	_, span := t.tracer.Start(ctx, "node "+logic.TypeName(ev.Node),
		trace.WithTimestamp(ev.Start),
		trace.WithAttributes(
			attribute.String("nodeflow.node_id", string(b.ID())),
			attribute.String("nodeflow.node_name", b.Name()),
		))
	if ev.Err != nil {
		span.RecordError(ev.Err)
		span.SetStatus(codes.Error, ev.Err.Error())
	}
	span.End(trace.WithTimestamp(ev.Start.Add(ev.Duration)))
}

func (t *FlowTracer) OnRunEnd(ctx context.Context, run *logic.Run, res logic.Result) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("nodeflow.status", string(res.Status)),
		attribute.Int("nodeflow.executed", res.Executed),
	)
	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
	}
	span.End(trace.WithTimestamp(res.End))
}
