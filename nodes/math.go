package nodes

import (
	"github.com/BaSui01/nodeflow/graph"
)

// Number is the set of types the arithmetic nodes operate on.
type Number interface {
	~int | ~int64 | ~float64
}

// Sum adds the values of every output connected to Values.
type Sum[T Number] struct {
	graph.NodeBase
	Values *graph.InputPort[T]
	Result *graph.OutputPort[T]
}

func (n *Sum[T]) DeclarePorts(d *graph.Declarer) {
	n.Values = graph.Input[T](d, "values",
		graph.WithPolicy(graph.Multiple),
		graph.WithConstraint(graph.ConstraintInherited),
		graph.WithBacking(graph.BackingNever))
	n.Result = graph.Output(d, "result", func(graph.Node) T {
		var total T
		for _, v := range n.Values.Values() {
			total += v
		}
		return total
	})
}

// Sub subtracts every following connected value from the first one. With
// nothing connected the result is zero.
type Sub[T Number] struct {
	graph.NodeBase
	Values *graph.InputPort[T]
	Result *graph.OutputPort[T]
}

func (n *Sub[T]) DeclarePorts(d *graph.Declarer) {
	n.Values = graph.Input[T](d, "values",
		graph.WithPolicy(graph.Multiple),
		graph.WithConstraint(graph.ConstraintInherited),
		graph.WithBacking(graph.BackingNever))
	n.Result = graph.Output(d, "result", func(graph.Node) T {
		vals := n.Values.Values()
		if len(vals) == 0 {
			return 0
		}
		acc := vals[0]
		for _, v := range vals[1:] {
			acc -= v
		}
		return acc
	})
}

// SubVector3 subtracts every following connected vector from the first.
type SubVector3 struct {
	graph.NodeBase
	Values *graph.InputPort[Vector3]
	Result *graph.OutputPort[Vector3]
}

func (n *SubVector3) DeclarePorts(d *graph.Declarer) {
	n.Values = graph.Input[Vector3](d, "values",
		graph.WithPolicy(graph.Multiple),
		graph.WithConstraint(graph.ConstraintInherited),
		graph.WithBacking(graph.BackingNever))
	n.Result = graph.Output(d, "result", func(graph.Node) Vector3 {
		vals := n.Values.Values()
		if len(vals) == 0 {
			return Vector3{}
		}
		acc := vals[0]
		for _, v := range vals[1:] {
			acc = acc.Sub(v)
		}
		return acc
	})
}

// Square outputs the square of its input.
type Square struct {
	graph.NodeBase
	In  *graph.InputPort[float64]
	Out *graph.OutputPort[float64]
}

func (n *Square) DeclarePorts(d *graph.Declarer) {
	n.In = graph.Input[float64](d, "input")
	n.Out = graph.Output(d, "output", func(graph.Node) float64 {
		v := n.In.Value()
		return v * v
	})
}

var (
	SumFloatType = graph.Register(&graph.NodeType{
		Name:        "math.sum_float",
		Description: "sum of the connected floats",
		New:         func() graph.Node { return &Sum[float64]{} },
	})
	SumIntType = graph.Register(&graph.NodeType{
		Name:        "math.sum_int",
		Description: "sum of the connected ints",
		New:         func() graph.Node { return &Sum[int]{} },
	})
	SubFloatType = graph.Register(&graph.NodeType{
		Name:        "math.sub_float",
		Description: "first float minus the others",
		New:         func() graph.Node { return &Sub[float64]{} },
	})
	SubIntType = graph.Register(&graph.NodeType{
		Name:        "math.sub_int",
		Description: "first int minus the others",
		New:         func() graph.Node { return &Sub[int]{} },
	})
	SubVector3Type = graph.Register(&graph.NodeType{
		Name:        "math.sub_vector3",
		Description: "first vector minus the others",
		New:         func() graph.Node { return &SubVector3{} },
	})
	SquareType = graph.Register(&graph.NodeType{
		Name:        "demo.square",
		Description: "squares its input",
		New:         func() graph.Node { return &Square{} },
	})
)
