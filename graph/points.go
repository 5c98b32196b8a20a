package graph

// Port names shared by every in/out point node.
const (
	PointInput  = "input"
	PointOutput = "output"
)

// InPoint is a boundary node feeding a value into its graph. Its input is
// set from outside (SetInValue or a connection from the parent graph).
type InPoint[T any] struct {
	NodeBase
	In  *InputPort[T]
	Out *OutputPort[T]
}

func (p *InPoint[T]) DeclarePorts(d *Declarer) {
	p.In = Input[T](d, PointInput,
		WithPolicy(Override),
		WithConstraint(ConstraintInherited),
		WithBacking(BackingNever),
	)
	p.Out = Output(d, PointOutput, func(Node) T { return p.In.Value() })
}

// OutPoint is a boundary node exposing a value computed inside its graph.
type OutPoint[T any] struct {
	NodeBase
	In  *InputPort[T]
	Out *OutputPort[T]
}

func (p *OutPoint[T]) DeclarePorts(d *Declarer) {
	p.In = Input[T](d, PointInput,
		WithPolicy(Override),
		WithConstraint(ConstraintNone),
	)
	p.Out = Output(d, PointOutput, func(Node) T { return p.In.Value() })
}

// Registered point types, one pair per supported value type.
var (
	InFloat  = registerInPoint[float64]("float")
	InInt    = registerInPoint[int]("int")
	InString = registerInPoint[string]("string")
	InBool   = registerInPoint[bool]("bool")
	InAny    = registerInPoint[any]("any")

	OutFloat  = registerOutPoint[float64]("float")
	OutInt    = registerOutPoint[int]("int")
	OutString = registerOutPoint[string]("string")
	OutBool   = registerOutPoint[bool]("bool")
	OutAny    = registerOutPoint[any]("any")
)

func registerInPoint[T any](suffix string) *NodeType {
	return Register(&NodeType{
		Name:        "graph.in_" + suffix,
		Title:       "In",
		Description: "graph input of type " + suffix,
		Marker:      MarkerInPoint,
		New:         func() Node { return &InPoint[T]{} },
	})
}

func registerOutPoint[T any](suffix string) *NodeType {
	return Register(&NodeType{
		Name:        "graph.out_" + suffix,
		Title:       "Out",
		Description: "graph output of type " + suffix,
		Marker:      MarkerOutPoint,
		New:         func() Node { return &OutPoint[T]{} },
	})
}
