package logic

import (
	"context"

	"github.com/BaSui01/nodeflow/graph"
)

// Entry is where every run starts. It is a connector: its Next is the
// first executable node downstream.
type Entry struct {
	FlowBase
	connectorMark
}

func (e *Entry) DeclarePorts(d *graph.Declarer) {
	e.declarePrev(d, PortPrev)
	e.declareNext(d, PortEnter)
}

func (e *Entry) Execute(context.Context) error { return nil }

// Exit marks the end of a flow. Reaching it terminates the walk: its Next
// is always nil. Executing it directly aborts the owning flow.
type Exit struct {
	FlowBase
	connectorMark
}

func (e *Exit) DeclarePorts(d *graph.Declarer) { e.declarePrev(d, PortExit) }

func (e *Exit) Next() Node { return nil }

func (e *Exit) NextPort() graph.Port { return nil }

func (e *Exit) Execute(context.Context) error {
	if f := e.Flow(); f != nil {
		f.Abort()
	}
	return nil
}

// If selects the True or False branch from Condition each time its next
// port is queried. It is a connector and never executes.
type If struct {
	FlowBase
	connectorMark
	True      *graph.OutputPort[Node]
	False     *graph.OutputPort[Node]
	Condition *graph.InputPort[bool]
}

func (n *If) DeclarePorts(d *graph.Declarer) {
	n.declarePrev(d, PortPrev)
	n.True = flowOutput(d, PortTrue)
	n.False = flowOutput(d, PortFalse)
	n.Condition = graph.Input[bool](d, PortCondition,
		graph.WithPolicy(graph.Override),
		graph.WithConstraint(graph.ConstraintStrict))
}

func (n *If) NextPort() graph.Port {
	if n.Condition.Value() {
		return n.True
	}
	return n.False
}

func (n *If) Next() Node { return follow(n.NextPort()) }

func (n *If) Execute(context.Context) error { return nil }

// While runs the chain connected to Body once per index from Start,
// stepping by one towards Start+Count. A negative Count iterates
// downwards. Index holds the current index during the body and is reset
// to 0 when the loop ends. An abort observed before an iteration stops
// the loop.
type While struct {
	FlowBase
	Start *graph.InputPort[int]
	Count *graph.InputPort[int]
	Body  *graph.OutputPort[Node]
	Index *graph.OutputPort[int]
}

func (w *While) DeclarePorts(d *graph.Declarer) {
	w.DeclareFlow(d)
	w.Start = graph.Input[int](d, PortStart)
	w.Count = graph.Input[int](d, PortCount)
	w.Body = graph.Output(d, PortBody, func(graph.Node) Node { return peerNode(w.Body) },
		graph.WithPolicy(graph.Override),
		graph.WithConstraint(graph.ConstraintStrict))
	w.Index = graph.Output[int](d, PortIndex, nil,
		graph.WithConstraint(graph.ConstraintStrict),
		graph.WithBacking(graph.BackingNever))
}

func (w *While) Execute(ctx context.Context) error {
	defer w.Index.SetValue(0)

	flow := w.Flow()
	start, count := w.Start.Value(), w.Count.Value()
	step := 1
	if count < 0 {
		step = -1
	}
	for i := 0; i != count; i += step {
		if flow != nil && flow.IsAborting() {
			break
		}
		if err := w.runBody(ctx, flow, start+i); err != nil {
			return err
		}
	}
	return nil
}

func (w *While) runBody(ctx context.Context, flow *Graph, index int) error {
	first := skipConnectors(w.Body.Value())
	if first == nil {
		return nil
	}
	w.Index.SetValue(index)
	for n := first; n != nil; n = n.Next() {
		var err error
		if flow != nil {
			err = flow.runNode(ctx, n)
		} else {
			err = graph.Guard(func() error { return n.Execute(ctx) })
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Abort stops the owning flow after it executes. It has no outgoing flow.
type Abort struct {
	FlowBase
}

func (a *Abort) DeclarePorts(d *graph.Declarer) { a.declarePrev(d, PortPrev) }

func (a *Abort) Execute(context.Context) error {
	if f := a.Flow(); f != nil {
		f.Abort()
	}
	return nil
}

var (
	EntryType = graph.Register(&graph.NodeType{
		Name:        "logic.entry_point",
		Description: "start of a logic flow",
		New:         func() graph.Node { return &Entry{} },
		MaxPerGraph: 1,
	})
	ExitType = graph.Register(&graph.NodeType{
		Name:        "logic.exit_point",
		Description: "end of a logic flow",
		New:         func() graph.Node { return &Exit{} },
		MaxPerGraph: 1,
	})
	IfType = graph.Register(&graph.NodeType{
		Name:        "logic.if",
		Description: "branches on a boolean condition",
		New:         func() graph.Node { return &If{} },
	})
	WhileType = graph.Register(&graph.NodeType{
		Name:        "logic.while",
		Description: "runs its body chain once per index",
		New:         func() graph.Node { return &While{} },
	})
	AbortType = graph.Register(&graph.NodeType{
		Name:        "logic.abort",
		Description: "aborts the running flow",
		New:         func() graph.Node { return &Abort{} },
	})
)
