package nodes

import (
	"github.com/BaSui01/nodeflow/graph"
)

type MakeVector2 struct {
	graph.NodeBase
	Result *graph.OutputPort[Vector2]
	X, Y   *graph.InputPort[float64]
}

func (n *MakeVector2) DeclarePorts(d *graph.Declarer) {
	n.Result = graph.Output(d, "result", func(graph.Node) Vector2 {
		return Vector2{X: n.X.Value(), Y: n.Y.Value()}
	})
	n.X = graph.Input[float64](d, "x")
	n.Y = graph.Input[float64](d, "y")
}

type MakeVector3 struct {
	graph.NodeBase
	Result  *graph.OutputPort[Vector3]
	X, Y, Z *graph.InputPort[float64]
}

func (n *MakeVector3) DeclarePorts(d *graph.Declarer) {
	n.Result = graph.Output(d, "result", func(graph.Node) Vector3 {
		return Vector3{X: n.X.Value(), Y: n.Y.Value(), Z: n.Z.Value()}
	})
	n.X = graph.Input[float64](d, "x")
	n.Y = graph.Input[float64](d, "y")
	n.Z = graph.Input[float64](d, "z")
}

// BreakVector3 splits a vector into its components.
type BreakVector3 struct {
	graph.NodeBase
	Vector  *graph.InputPort[Vector3]
	X, Y, Z *graph.OutputPort[float64]
}

func (n *BreakVector3) DeclarePorts(d *graph.Declarer) {
	n.Vector = graph.Input[Vector3](d, "vector",
		graph.WithPolicy(graph.Override),
		graph.WithConstraint(graph.ConstraintStrict),
		graph.WithBacking(graph.BackingNever))
	n.X = graph.Output(d, "x", func(graph.Node) float64 { return n.Vector.Value().X })
	n.Y = graph.Output(d, "y", func(graph.Node) float64 { return n.Vector.Value().Y })
	n.Z = graph.Output(d, "z", func(graph.Node) float64 { return n.Vector.Value().Z })
}

var (
	MakeVector2Type = graph.Register(&graph.NodeType{
		Name: "vector.make_vector2",
		New:  func() graph.Node { return &MakeVector2{} },
	})
	MakeVector3Type = graph.Register(&graph.NodeType{
		Name: "vector.make_vector3",
		New:  func() graph.Node { return &MakeVector3{} },
	})
	BreakVector3Type = graph.Register(&graph.NodeType{
		Name: "vector.break_vector3",
		New:  func() graph.Node { return &BreakVector3{} },
	})
)
