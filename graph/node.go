package graph

import (
	"github.com/google/uuid"
)

// NodeID is the stable identity of a node inside a graph hierarchy.
type NodeID string

func newNodeID() NodeID { return NodeID(uuid.NewString()) }

// Node is implemented by every concrete node type. Implementations embed
// NodeBase and declare their ports in DeclarePorts, which runs once per
// instance when the node is attached to a graph.
type Node interface {
	Base() *NodeBase
	DeclarePorts(d *Declarer)
}

// Initializer runs after the node is attached and its ports are declared.
type Initializer interface {
	Initialize()
}

// ConnectionObserver reacts to connection changes on the node's ports.
// OnCreateConnection receives the output and input ends of the new link.
type ConnectionObserver interface {
	OnCreateConnection(output, input Port)
	OnRemoveConnection(port Port)
}

// Releaser frees resources owned by a node when it is removed.
type Releaser interface {
	Release()
}

// SubGraphOwner is implemented by nodes that embed a nested graph.
type SubGraphOwner interface {
	SubGraph() *Graph
	SetSubGraph(g *Graph)
}

// NodeBase carries identity, layout and the port index of a node.
type NodeBase struct {
	id       NodeID
	name     string
	position Point
	graph    *Graph
	typ      *NodeType
	self     Node

	ports  []Port
	byName map[string]Port
	arrays map[string][]Port
}

func (b *NodeBase) Base() *NodeBase { return b }

func (b *NodeBase) ID() NodeID { return b.id }

// Name is the display name. In/out points are addressed by it.
func (b *NodeBase) Name() string { return b.name }

func (b *NodeBase) SetName(name string) { b.name = name }

func (b *NodeBase) Position() Point { return b.position }

func (b *NodeBase) SetPosition(p Point) { b.position = p }

// Graph returns the owning graph, or nil once the node has been removed.
func (b *NodeBase) Graph() *Graph { return b.graph }

func (b *NodeBase) Type() *NodeType { return b.typ }

// Self returns the concrete node embedding this base.
func (b *NodeBase) Self() Node { return b.self }

// Ports returns every port in declaration order.
func (b *NodeBase) Ports() []Port {
	return append([]Port(nil), b.ports...)
}

func (b *NodeBase) Inputs() []Port { return b.filter(DirInput) }

func (b *NodeBase) Outputs() []Port { return b.filter(DirOutput) }

func (b *NodeBase) filter(dir Direction) []Port {
	var out []Port
	for _, p := range b.ports {
		if p.Direction() == dir {
			out = append(out, p)
		}
	}
	return out
}

// Port looks a port up by name ("field" or "field.i").
func (b *NodeBase) Port(name string) Port {
	return b.byName[name]
}

// PortAt returns element i of an array port.
func (b *NodeBase) PortAt(field string, i int) Port {
	return b.byName[elementName(field, i)]
}

// PortsOf returns the elements of an array port.
func (b *NodeBase) PortsOf(field string) []Port {
	return append([]Port(nil), b.arrays[field]...)
}

func (b *NodeBase) PortByID(id PortID) Port {
	for _, p := range b.ports {
		if p.ID() == id {
			return p
		}
	}
	return nil
}

// HasPort reports whether p belongs to this node.
func (b *NodeBase) HasPort(p Port) bool {
	if isNilPort(p) {
		return false
	}
	return p.Owner() != nil && p.Owner().Base() == b
}

// ClearConnections disconnects every port of the node.
func (b *NodeBase) ClearConnections() {
	for _, p := range b.ports {
		p.ClearConnections()
	}
}

// VerifyConnections drops connections whose peer no longer resolves.
func (b *NodeBase) VerifyConnections() {
	for _, p := range b.ports {
		p.base().prune()
	}
}

// DynamicValue reads the named port's value without knowing its type.
func (b *NodeBase) DynamicValue(name string) (any, bool) {
	p := b.byName[name]
	if p == nil {
		return nil, false
	}
	return p.DynamicValue(), true
}

func (b *NodeBase) index(d *Declarer) {
	b.ports = d.ports
	b.byName = make(map[string]Port, len(d.ports))
	for _, p := range d.ports {
		b.byName[p.Name()] = p
	}
	b.arrays = d.arrays
}
