package logic

import (
	"context"

	"github.com/BaSui01/nodeflow/graph"
	"github.com/BaSui01/nodeflow/types"
)

// SubFlow embeds a nested logic graph and runs it as one step of the
// outer flow. The nested graph is created on initialization, copied with
// the outer graph and destroyed with the node. Aborting the nested flow
// does not abort the outer one.
type SubFlow struct {
	FlowBase
	graph.Nested
}

func (s *SubFlow) DeclarePorts(d *graph.Declarer) { s.DeclareFlow(d) }

func (s *SubFlow) Initialize() { s.EnsureSubGraph(s.Graph()) }

func (s *SubFlow) Release() { s.ReleaseSubGraph() }

// Inner returns the nested logic graph.
func (s *SubFlow) Inner() *Graph { return From(s.SubGraph()) }

func (s *SubFlow) Execute(ctx context.Context) error {
	inner := s.Inner()
	if inner == nil {
		return types.NewError(types.ErrMissingReference, "sub flow has no nested logic graph")
	}
	return inner.Execute(ctx)
}

var SubFlowType = graph.Register(&graph.NodeType{
	Name:        "logic.sub_flow",
	Description: "runs a nested logic graph",
	New:         func() graph.Node { return &SubFlow{} },
})
