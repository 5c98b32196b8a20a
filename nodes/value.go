package nodes

import (
	"github.com/BaSui01/nodeflow/graph"
)

// Vector2 is a 2D vector value.
type Vector2 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Vector3 is a 3D vector value.
type Vector3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

func (v Vector3) Add(o Vector3) Vector3 { return Vector3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

func (v Vector3) Sub(o Vector3) Vector3 { return Vector3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

// Value is a constant node exposing a literal of type T on its only
// output.
type Value[T any] struct {
	graph.NodeBase
	Out *graph.OutputPort[T]
}

func (n *Value[T]) DeclarePorts(d *graph.Declarer) {
	n.Out = graph.Output[T](d, "value", nil, graph.WithConstraint(graph.ConstraintStrict))
}

// Set stores the literal.
func (n *Value[T]) Set(v T) { n.Out.SetValue(v) }

// Get returns the literal.
func (n *Value[T]) Get() T { return n.Out.Value() }

type (
	Float  = Value[float64]
	Int    = Value[int]
	String = Value[string]
	Bool   = Value[bool]
)

// MultiLineString is a string constant edited as a text block.
type MultiLineString struct {
	Value[string]
}

var (
	FloatType           = registerValue[float64]("float")
	IntType             = registerValue[int]("int")
	StringType          = registerValue[string]("string")
	BoolType            = registerValue[bool]("bool")
	Vector2Type         = registerValue[Vector2]("vector2")
	Vector3Type         = registerValue[Vector3]("vector3")
	MultiLineStringType = graph.Register(&graph.NodeType{
		Name:        "value.multi_line_string",
		Description: "multi-line string constant",
		New:         func() graph.Node { return &MultiLineString{} },
	})
)

func registerValue[T any](suffix string) *graph.NodeType {
	return graph.Register(&graph.NodeType{
		Name:        "value." + suffix,
		Description: suffix + " constant",
		New:         func() graph.Node { return &Value[T]{} },
	})
}
