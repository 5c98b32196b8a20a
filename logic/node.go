package logic

import (
	"context"

	"github.com/BaSui01/nodeflow/graph"
)

// Flow port names.
const (
	PortPrev      = "prev"
	PortNext      = "next"
	PortEnter     = "enter"
	PortExit      = "exit"
	PortTrue      = "true"
	PortFalse     = "false"
	PortCondition = "condition"
	PortBody      = "body"
	PortStart     = "start"
	PortCount     = "count"
	PortIndex     = "index"
)

// Node is a node taking part in the control flow chain.
type Node interface {
	graph.Node
	// PrevPort is the incoming flow port, or nil.
	PrevPort() graph.Port
	// NextPort is the outgoing flow port selected right now, or nil.
	NextPort() graph.Port
	// Prevs returns the executable predecessors, looking through connectors.
	Prevs() []Node
	// Next returns the next executable node, looking through connectors.
	Next() Node
	Execute(ctx context.Context) error
}

// Connector is a pure pass-through: Next and Prevs resolution skip it and
// the engine never executes it.
type Connector interface {
	Node
	connector()
}

type connectorMark struct{}

func (connectorMark) connector() {}

// IsConnector reports whether n is skipped during flow resolution.
func IsConnector(n Node) bool {
	_, ok := n.(Connector)
	return ok
}

// Link connects the current next port of from to the prev port of to.
func Link(from, to Node) bool {
	if from == nil || to == nil {
		return false
	}
	out, in := from.NextPort(), to.PrevPort()
	if out == nil || in == nil {
		return false
	}
	return out.Connect(in)
}

// FlowBase supplies the flow ports of an ordinary logic node. Embedders call
// DeclareFlow from DeclarePorts and implement Execute.
type FlowBase struct {
	graph.NodeBase
	prev *graph.InputPort[Node]
	next *graph.OutputPort[Node]
}

// DeclareFlow declares the prev input and the next output.
func (b *FlowBase) DeclareFlow(d *graph.Declarer) {
	b.declarePrev(d, PortPrev)
	b.declareNext(d, PortNext)
}

func (b *FlowBase) declarePrev(d *graph.Declarer, name string) {
	b.prev = graph.Input[Node](d, name,
		graph.WithPolicy(graph.Multiple),
		graph.WithConstraint(graph.ConstraintInherited),
		graph.WithBacking(graph.BackingNever))
}

func (b *FlowBase) declareNext(d *graph.Declarer, name string) {
	b.next = flowOutput(d, name)
}

// flowOutput declares an outgoing flow port whose value is its owner.
func flowOutput(d *graph.Declarer, name string) *graph.OutputPort[Node] {
	return graph.Output(d, name, selfNode,
		graph.WithPolicy(graph.Override),
		graph.WithConstraint(graph.ConstraintInherited),
		graph.WithBacking(graph.BackingNever))
}

func selfNode(owner graph.Node) Node {
	n, _ := owner.(Node)
	return n
}

func (b *FlowBase) PrevPort() graph.Port {
	if b.prev == nil {
		return nil
	}
	return b.prev
}

func (b *FlowBase) NextPort() graph.Port {
	if b.next == nil {
		return nil
	}
	return b.next
}

func (b *FlowBase) Next() Node { return follow(b.NextPort()) }

func (b *FlowBase) Prevs() []Node { return prevsOf(b.PrevPort()) }

// Flow returns the logic graph owning the node, or nil.
func (b *FlowBase) Flow() *Graph { return From(b.Graph()) }

// peerNode returns the logic node on the other end of p's first connection.
func peerNode(p graph.Port) Node {
	if p == nil {
		return nil
	}
	peer := p.Peer(0)
	if peer == nil {
		return nil
	}
	n, _ := peer.Owner().(Node)
	return n
}

// follow resolves the executable node downstream of p.
func follow(p graph.Port) Node {
	return skipConnectors(peerNode(p))
}

// skipConnectors walks connectors until an executable node or nil. A loop
// made only of connectors resolves to nil.
func skipConnectors(n Node) Node {
	var seen map[Node]bool
	for n != nil {
		if !IsConnector(n) {
			return n
		}
		if seen == nil {
			seen = make(map[Node]bool)
		}
		if seen[n] {
			return nil
		}
		seen[n] = true
		n = peerNode(n.NextPort())
	}
	return nil
}

// prevsOf collects the executable predecessors connected to p.
func prevsOf(p graph.Port) []Node {
	var out []Node
	seen := make(map[Node]bool)
	var walk func(graph.Port)
	walk = func(p graph.Port) {
		if p == nil {
			return
		}
		for _, peer := range p.Peers() {
			n, ok := peer.Owner().(Node)
			if !ok || seen[n] {
				continue
			}
			seen[n] = true
			if IsConnector(n) {
				walk(n.PrevPort())
				continue
			}
			out = append(out, n)
		}
	}
	walk(p)
	return out
}
