package nodes

import (
	"github.com/BaSui01/nodeflow/blackboard"
	"github.com/BaSui01/nodeflow/graph"
)

// GetGlobalValue reads the global variable named by Key. Without a
// blackboard, or when the key is unknown, it yields the zero value.
type GetGlobalValue[T any] struct {
	graph.NodeBase
	Value *graph.OutputPort[T]
	Key   *graph.InputPort[string]
}

func (n *GetGlobalValue[T]) DeclarePorts(d *graph.Declarer) {
	n.Value = graph.Output(d, "value", func(graph.Node) T {
		v, _ := blackboard.TryGetGlobal[T](n.board(), n.Key.Value())
		return v
	})
	n.Key = graph.Input[string](d, "key")
}

func (n *GetGlobalValue[T]) board() *blackboard.Blackboard {
	if g := n.Graph(); g != nil {
		return g.Blackboard()
	}
	return nil
}

// GetLocalValue reads the local variable named by Key from the graph
// instance owning the node.
type GetLocalValue[T any] struct {
	graph.NodeBase
	Value *graph.OutputPort[T]
	Key   *graph.InputPort[string]
}

func (n *GetLocalValue[T]) DeclarePorts(d *graph.Declarer) {
	n.Value = graph.Output(d, "value", func(graph.Node) T {
		g := n.Graph()
		if g == nil {
			var zero T
			return zero
		}
		v, _ := blackboard.TryGetLocal[T](g.Blackboard(), g, n.Key.Value())
		return v
	})
	n.Key = graph.Input[string](d, "key")
}

var (
	GetGlobalFloatType  = registerGetGlobal[float64]("float")
	GetGlobalIntType    = registerGetGlobal[int]("int")
	GetGlobalStringType = registerGetGlobal[string]("string")
	GetGlobalBoolType   = registerGetGlobal[bool]("bool")

	GetLocalFloatType  = registerGetLocal[float64]("float")
	GetLocalIntType    = registerGetLocal[int]("int")
	GetLocalStringType = registerGetLocal[string]("string")
	GetLocalBoolType   = registerGetLocal[bool]("bool")
)

func registerGetGlobal[T any](suffix string) *graph.NodeType {
	return graph.Register(&graph.NodeType{
		Name:        "blackboard.get_global_" + suffix,
		Description: "reads a global blackboard variable",
		New:         func() graph.Node { return &GetGlobalValue[T]{} },
	})
}

func registerGetLocal[T any](suffix string) *graph.NodeType {
	return graph.Register(&graph.NodeType{
		Name:        "blackboard.get_local_" + suffix,
		Description: "reads a local blackboard variable",
		New:         func() graph.Node { return &GetLocalValue[T]{} },
	})
}
