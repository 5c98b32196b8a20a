package nodes

import (
	"fmt"
	"strings"

	"github.com/BaSui01/nodeflow/graph"
)

// StringConcat concatenates every connected string in connection order.
type StringConcat struct {
	graph.NodeBase
	Strings *graph.InputPort[string]
	Result  *graph.OutputPort[string]
}

func (n *StringConcat) DeclarePorts(d *graph.Declarer) {
	n.Strings = graph.Input[string](d, "strings",
		graph.WithConstraint(graph.ConstraintStrict),
		graph.WithBacking(graph.BackingNever))
	n.Result = graph.Output(d, "result", func(graph.Node) string {
		return strings.Join(n.Strings.Values(), "")
	})
}

// StringJoin joins every connected string with Sep.
type StringJoin struct {
	graph.NodeBase
	Strings *graph.InputPort[string]
	Result  *graph.OutputPort[string]
	Sep     *graph.InputPort[string]
}

func (n *StringJoin) DeclarePorts(d *graph.Declarer) {
	n.Strings = graph.Input[string](d, "strings",
		graph.WithConstraint(graph.ConstraintStrict),
		graph.WithBacking(graph.BackingNever))
	n.Result = graph.Output(d, "result", func(graph.Node) string {
		return strings.Join(n.Strings.Values(), n.Sep.Value())
	})
	n.Sep = graph.Input[string](d, "sep")
}

// ToString formats any value with fmt. Nil formats as "".
type ToString struct {
	graph.NodeBase
	From *graph.InputPort[any]
	To   *graph.OutputPort[string]
}

func (n *ToString) DeclarePorts(d *graph.Declarer) {
	n.From = graph.Input[any](d, "from",
		graph.WithPolicy(graph.Override),
		graph.WithConstraint(graph.ConstraintNone),
		graph.WithBacking(graph.BackingNever))
	n.To = graph.Output(d, "to", func(graph.Node) string {
		v := n.From.Value()
		if v == nil {
			return ""
		}
		return fmt.Sprint(v)
	})
}

// FloatToInt truncates towards zero.
type FloatToInt struct {
	graph.NodeBase
	From *graph.InputPort[float64]
	To   *graph.OutputPort[int]
}

func (n *FloatToInt) DeclarePorts(d *graph.Declarer) {
	n.From = graph.Input[float64](d, "from",
		graph.WithPolicy(graph.Override),
		graph.WithConstraint(graph.ConstraintStrict),
		graph.WithBacking(graph.BackingNever))
	n.To = graph.Output(d, "to", func(graph.Node) int { return int(n.From.Value()) })
}

type IntToFloat struct {
	graph.NodeBase
	From *graph.InputPort[int]
	To   *graph.OutputPort[float64]
}

func (n *IntToFloat) DeclarePorts(d *graph.Declarer) {
	n.From = graph.Input[int](d, "from",
		graph.WithPolicy(graph.Override),
		graph.WithConstraint(graph.ConstraintStrict),
		graph.WithBacking(graph.BackingNever))
	n.To = graph.Output(d, "to", func(graph.Node) float64 { return float64(n.From.Value()) })
}

var (
	StringConcatType = graph.Register(&graph.NodeType{
		Name: "text.concat",
		New:  func() graph.Node { return &StringConcat{} },
	})
	StringJoinType = graph.Register(&graph.NodeType{
		Name: "text.join",
		New:  func() graph.Node { return &StringJoin{} },
	})
	ToStringType = graph.Register(&graph.NodeType{
		Name: "convert.to_string",
		New:  func() graph.Node { return &ToString{} },
	})
	FloatToIntType = graph.Register(&graph.NodeType{
		Name: "convert.float_to_int",
		New:  func() graph.Node { return &FloatToInt{} },
	})
	IntToFloatType = graph.Register(&graph.NodeType{
		Name: "convert.int_to_float",
		New:  func() graph.Node { return &IntToFloat{} },
	})
)
