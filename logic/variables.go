package logic

import (
	"context"

	"github.com/BaSui01/nodeflow/blackboard"
	"github.com/BaSui01/nodeflow/graph"
	"github.com/BaSui01/nodeflow/types"
)

// SetGlobalValue writes Set into the global variable named by Key. Value
// passes Set through for downstream data nodes.
type SetGlobalValue[T any] struct {
	FlowBase
	Key   *graph.InputPort[string]
	Set   *graph.InputPort[T]
	Value *graph.OutputPort[T]
}

func (n *SetGlobalValue[T]) DeclarePorts(d *graph.Declarer) {
	n.DeclareFlow(d)
	n.Key = graph.Input[string](d, "key")
	n.Set = graph.Input[T](d, "set")
	n.Value = graph.Output(d, "value", func(graph.Node) T { return n.Set.Value() })
}

func (n *SetGlobalValue[T]) Execute(context.Context) error {
	board, err := boardOf(n)
	if err != nil {
		return err
	}
	return board.SetGlobalValue(n.Key.Value(), n.Set.Value())
}

// SetLocalValue writes Set into the local variable named by Key, scoped
// to the graph instance owning the node.
type SetLocalValue[T any] struct {
	FlowBase
	Key   *graph.InputPort[string]
	Set   *graph.InputPort[T]
	Value *graph.OutputPort[T]
}

func (n *SetLocalValue[T]) DeclarePorts(d *graph.Declarer) {
	n.DeclareFlow(d)
	n.Key = graph.Input[string](d, "key")
	n.Set = graph.Input[T](d, "set")
	n.Value = graph.Output(d, "value", func(graph.Node) T { return n.Set.Value() })
}

func (n *SetLocalValue[T]) Execute(context.Context) error {
	board, err := boardOf(n)
	if err != nil {
		return err
	}
	return board.SetLocalValue(n.Graph(), n.Key.Value(), n.Set.Value())
}

func boardOf(n graph.Node) (*blackboard.Blackboard, error) {
	b := n.Base()
	if g := b.Graph(); g != nil {
		if board := g.Blackboard(); board != nil {
			return board, nil
		}
	}
	return nil, types.NewError(types.ErrMissingReference, "no blackboard is attached to the graph").
		WithNode(b.Name())
}

var (
	SetGlobalFloatType  = registerSetGlobal[float64]("float")
	SetGlobalIntType    = registerSetGlobal[int]("int")
	SetGlobalStringType = registerSetGlobal[string]("string")
	SetGlobalBoolType   = registerSetGlobal[bool]("bool")

	SetLocalFloatType  = registerSetLocal[float64]("float")
	SetLocalIntType    = registerSetLocal[int]("int")
	SetLocalStringType = registerSetLocal[string]("string")
	SetLocalBoolType   = registerSetLocal[bool]("bool")
)

func registerSetGlobal[T any](suffix string) *graph.NodeType {
	return graph.Register(&graph.NodeType{
		Name:        "blackboard.set_global_" + suffix,
		Description: "writes a global blackboard variable",
		New:         func() graph.Node { return &SetGlobalValue[T]{} },
	})
}

func registerSetLocal[T any](suffix string) *graph.NodeType {
	return graph.Register(&graph.NodeType{
		Name:        "blackboard.set_local_" + suffix,
		Description: "writes a local blackboard variable",
		New:         func() graph.Node { return &SetLocalValue[T]{} },
	})
}
