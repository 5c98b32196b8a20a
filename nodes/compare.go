package nodes

import (
	"cmp"
	"fmt"

	"github.com/BaSui01/nodeflow/graph"
)

// Op is a comparison operator.
type Op int

const (
	Less Op = iota
	LessOrEqual
	Equal
	NotEqual
	GreaterOrEqual
	Greater
)

var opNames = [...]string{"<", "<=", "==", "!=", ">=", ">"}

func (o Op) String() string {
	if o < 0 || int(o) >= len(opNames) {
		return fmt.Sprintf("Op(%d)", int(o))
	}
	return opNames[o]
}

// ParseOp parses the symbol form of an operator.
func ParseOp(s string) (Op, error) {
	for i, name := range opNames {
		if name == s {
			return Op(i), nil
		}
	}
	return 0, fmt.Errorf("unknown comparison operator %q", s)
}

// Apply compares a and b.
func Apply[T cmp.Ordered](o Op, a, b T) bool {
	c := cmp.Compare(a, b)
	switch o {
	case Less:
		return c < 0
	case LessOrEqual:
		return c <= 0
	case Equal:
		return c == 0
	case NotEqual:
		return c != 0
	case GreaterOrEqual:
		return c >= 0
	case Greater:
		return c > 0
	default:
		return false
	}
}

// Comparison outputs A Op B. Op is node state, not a port.
type Comparison[T cmp.Ordered] struct {
	graph.NodeBase
	Op     Op
	Result *graph.OutputPort[bool]
	A, B   *graph.InputPort[T]
}

func (n *Comparison[T]) DeclarePorts(d *graph.Declarer) {
	n.Result = graph.Output(d, "result", func(graph.Node) bool {
		return Apply(n.Op, n.A.Value(), n.B.Value())
	}, graph.WithPolicy(graph.Multiple), graph.WithConstraint(graph.ConstraintStrict), graph.WithBacking(graph.BackingNever))
	n.A = graph.Input[T](d, "a",
		graph.WithPolicy(graph.Override),
		graph.WithBacking(graph.BackingNever))
	n.B = graph.Input[T](d, "b", graph.WithPolicy(graph.Override))
}

var (
	CompareFloatType = graph.Register(&graph.NodeType{
		Name: "compare.float",
		New:  func() graph.Node { return &Comparison[float64]{} },
	})
	CompareIntType = graph.Register(&graph.NodeType{
		Name: "compare.int",
		New:  func() graph.Node { return &Comparison[int]{} },
	})
	CompareStringType = graph.Register(&graph.NodeType{
		Name: "compare.string",
		New:  func() graph.Node { return &Comparison[string]{} },
	})
)
