package logic

import (
	"context"

	"github.com/stretchr/testify/require"

	"github.com/BaSui01/nodeflow/graph"
)

type recorder struct {
	log []string
}

// recordNode appends its label to a shared recorder and then runs onExec.
type recordNode struct {
	FlowBase
	label  string
	rec    *recorder
	onExec func(ctx context.Context, n *recordNode) error
}

func (n *recordNode) DeclarePorts(d *graph.Declarer) { n.DeclareFlow(d) }

func (n *recordNode) Execute(ctx context.Context) error {
	if n.rec != nil {
		n.rec.log = append(n.rec.log, n.label)
	}
	if n.onExec != nil {
		return n.onExec(ctx, n)
	}
	return nil
}

// loopBool feeds its own input back as output when wired to itself.
type loopBool struct {
	graph.NodeBase
	In  *graph.InputPort[bool]
	Out *graph.OutputPort[bool]
}

func (n *loopBool) DeclarePorts(d *graph.Declarer) {
	n.In = graph.Input[bool](d, "in")
	n.Out = graph.Output(d, "out", func(graph.Node) bool { return n.In.Value() })
}

var (
	_ = graph.Register(&graph.NodeType{Name: "test.record", New: func() graph.Node { return &recordNode{} }})
	_ = graph.Register(&graph.NodeType{Name: "test.loop_bool", New: func() graph.Node { return &loopBool{} }})
)

func mustAdd[T graph.Node](t require.TestingT, lg *Graph) T {
	n, err := graph.Add[T](lg.Graph)
	require.NoError(t, err)
	return n
}

func addRecord(t require.TestingT, lg *Graph, rec *recorder, label string) *recordNode {
	n := mustAdd[*recordNode](t, lg)
	n.label, n.rec = label, rec
	return n
}

// chain links nodes in order, entry first and exit last.
func chain(t require.TestingT, lg *Graph, nodes ...Node) {
	prev := Node(lg.EntryPoint())
	for _, n := range nodes {
		require.True(t, Link(prev, n))
		prev = n
	}
	require.True(t, Link(prev, lg.ExitPoint()))
}
