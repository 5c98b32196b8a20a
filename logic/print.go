package logic

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/nodeflow/graph"
	"github.com/BaSui01/nodeflow/internal/ctxkeys"
)

// Print logs its value at info level through the graph's logger.
type Print struct {
	FlowBase
	Value *graph.InputPort[any]
}

func (p *Print) DeclarePorts(d *graph.Declarer) {
	p.DeclareFlow(d)
	p.Value = graph.Input[any](d, "value",
		graph.WithPolicy(graph.Override),
		graph.WithConstraint(graph.ConstraintNone))
}

func (p *Print) Execute(ctx context.Context) error {
	logger := p.Graph().Logger()
	fields := []zap.Field{zap.String("node", p.Name())}
	if id, ok := ctxkeys.RunID(ctx); ok {
		fields = append(fields, zap.String("run_id", id))
	}
	logger.Info(fmt.Sprint(p.Value.Value()), fields...)
	return nil
}

var PrintType = graph.Register(&graph.NodeType{
	Name:        "logic.print",
	Description: "logs a value",
	New:         func() graph.Node { return &Print{} },
})
