package graph

// Node types used across the package tests.

type constNode struct {
	NodeBase
	Value *OutputPort[float64]
}

func (n *constNode) DeclarePorts(d *Declarer) {
	n.Value = Output[float64](d, "value", nil)
}

type squareNode struct {
	NodeBase
	In  *InputPort[float64]
	Out *OutputPort[float64]
}

func (n *squareNode) DeclarePorts(d *Declarer) {
	n.In = Input[float64](d, "in")
	n.Out = Output(d, "out", func(Node) float64 {
		v := n.In.Value()
		return v * v
	})
}

type textNode struct {
	NodeBase
	In  *InputPort[string]
	Out *OutputPort[string]
}

func (n *textNode) DeclarePorts(d *Declarer) {
	n.In = Input[string](d, "in")
	n.Out = Output[string](d, "out", nil)
}

type exclusiveNode struct {
	NodeBase
	In  *InputPort[float64]
	Out *OutputPort[float64]
}

func (n *exclusiveNode) DeclarePorts(d *Declarer) {
	n.In = Input[float64](d, "in", WithPolicy(Override))
	n.Out = Output[float64](d, "out", nil, WithPolicy(Override))
}

type strictNode struct {
	NodeBase
	In *InputPort[any]
}

func (n *strictNode) DeclarePorts(d *Declarer) {
	n.In = Input[any](d, "in", WithConstraint(ConstraintStrict))
}

type anyNode struct {
	NodeBase
	In *InputPort[any]
}

func (n *anyNode) DeclarePorts(d *Declarer) {
	n.In = Input[any](d, "in")
}

type sumNode struct {
	NodeBase
	Values []*InputPort[float64]
	Sum    *OutputPort[float64]
}

func (n *sumNode) DeclarePorts(d *Declarer) {
	n.Values = InputArray[float64](d, "values", 3)
	n.Sum = Output(d, "sum", func(Node) float64 {
		total := 0.0
		for _, p := range n.Values {
			total += p.Value()
		}
		return total
	})
}

type connEvent struct {
	kind   string
	output Port
	input  Port
	port   Port
}

type observerNode struct {
	NodeBase
	In     *InputPort[float64]
	Out    *OutputPort[float64]
	events []connEvent
	inits  int
}

func (n *observerNode) DeclarePorts(d *Declarer) {
	n.In = Input[float64](d, "in")
	n.Out = Output[float64](d, "out", nil)
}

func (n *observerNode) Initialize() { n.inits++ }

func (n *observerNode) OnCreateConnection(output, input Port) {
	n.events = append(n.events, connEvent{kind: "create", output: output, input: input})
}

func (n *observerNode) OnRemoveConnection(port Port) {
	n.events = append(n.events, connEvent{kind: "remove", port: port})
}

type singletonNode struct {
	NodeBase
}

func (n *singletonNode) DeclarePorts(*Declarer) {}

var (
	constType     = Register(&NodeType{Name: "test.const", New: func() Node { return &constNode{} }})
	squareType    = Register(&NodeType{Name: "test.square", New: func() Node { return &squareNode{} }})
	textType      = Register(&NodeType{Name: "test.text", New: func() Node { return &textNode{} }})
	exclusiveType = Register(&NodeType{Name: "test.exclusive", New: func() Node { return &exclusiveNode{} }})
	strictType    = Register(&NodeType{Name: "test.strict", New: func() Node { return &strictNode{} }})
	anyType       = Register(&NodeType{Name: "test.any", New: func() Node { return &anyNode{} }})
	sumType       = Register(&NodeType{Name: "test.sum", New: func() Node { return &sumNode{} }})
	observerType  = Register(&NodeType{Name: "test.observer", New: func() Node { return &observerNode{} }})
	singletonType = Register(&NodeType{Name: "test.singleton_node", New: func() Node { return &singletonNode{} }, MaxPerGraph: 1})
)

var requiredKind = &Kind{Name: "test_required", Required: []string{"test.singleton_node", "test.const"}}

func mustAdd[T Node](t interface {
	Helper()
	Fatalf(string, ...any)
}, g *Graph) T {
	t.Helper()
	n, err := Add[T](g)
	if err != nil {
		t.Fatalf("add node: %v", err)
	}
	return n
}
