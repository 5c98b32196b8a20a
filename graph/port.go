package graph

import (
	"reflect"
	"slices"

	"go.uber.org/zap"
)

// PortID identifies a port within its owning node. Copies keep the id of
// the port they were cloned from.
type PortID string

// Direction is the flow direction of a port.
type Direction int

const (
	// DirInput pulls its value from a connected output.
	DirInput Direction = iota
	// DirOutput computes or holds a value.
	DirOutput
)

func (d Direction) String() string {
	if d == DirOutput {
		return "output"
	}
	return "input"
}

// ConnectionPolicy controls how many connections a port accepts.
type ConnectionPolicy int

const (
	// Multiple allows any number of connections.
	Multiple ConnectionPolicy = iota
	// Override keeps at most one connection; connecting replaces it.
	Override
)

// TypeConstraint declares how the opposing port's value type must relate to
// this port's. A connection is valid only when both ends are satisfied.
type TypeConstraint int

const (
	// ConstraintNone accepts any type.
	ConstraintNone TypeConstraint = iota
	// ConstraintInherited requires the output type to be assignable to the input type.
	ConstraintInherited
	// ConstraintStrict requires identical types.
	ConstraintStrict
	// ConstraintInheritedInverse requires the input type to be assignable to the output type.
	ConstraintInheritedInverse
	// ConstraintInheritedAny accepts assignability in either direction.
	ConstraintInheritedAny
)

func (c TypeConstraint) String() string {
	switch c {
	case ConstraintNone:
		return "none"
	case ConstraintInherited:
		return "inherited"
	case ConstraintStrict:
		return "strict"
	case ConstraintInheritedInverse:
		return "inherited_inverse"
	case ConstraintInheritedAny:
		return "inherited_any"
	default:
		return "unknown"
	}
}

// Backing tells a renderer when to show the port's literal value. The core
// never reads it.
type Backing int

const (
	BackingUnconnected Backing = iota
	BackingNever
	BackingAlways
)

// Settings are the per-port declaration options.
type Settings struct {
	Backing    Backing
	Policy     ConnectionPolicy
	Constraint TypeConstraint
}

// DefaultInputSettings returns the settings applied to undecorated inputs.
func DefaultInputSettings() Settings {
	return Settings{Backing: BackingUnconnected, Policy: Multiple, Constraint: ConstraintInheritedAny}
}

// DefaultOutputSettings returns the settings applied to undecorated outputs.
func DefaultOutputSettings() Settings {
	return Settings{Backing: BackingAlways, Policy: Multiple, Constraint: ConstraintInheritedAny}
}

// Point is a 2D layout coordinate. The core stores it for renderers only.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Connection is one side of a link, naming the peer by node and port id.
type Connection struct {
	NodeID   NodeID
	PortID   PortID
	Reroutes []Point
}

func (c Connection) clone() Connection {
	c.Reroutes = slices.Clone(c.Reroutes)
	return c
}

// Port is the untyped view of a port used by generic tooling.
type Port interface {
	ID() PortID
	// Name is the lookup key: the field name, or "field.i" for array elements.
	Name() string
	FieldName() string
	// Index is the array element index, or -1.
	Index() int
	Direction() Direction
	ValueType() reflect.Type
	Settings() Settings
	Owner() Node

	Connections() []Connection
	ConnectionCount() int
	IsConnected() bool
	IsConnectedTo(other Port) bool
	Peer(i int) Port
	Peers() []Port

	Connect(other Port) bool
	CanConnectTo(other Port) bool
	Disconnect(other Port)
	DisconnectAt(i int)
	ClearConnections()
	SwapConnections(other Port)
	Reroutes(other Port) []Point
	SetReroutes(other Port, points []Point)

	DynamicValue() any
	SetDynamicValue(v any)
	DynamicValues() []any

	base() *portBase
	resetDefault()
	copyDefault(src Port)
}

// portBase carries the state shared by typed ports.
type portBase struct {
	id        PortID
	field     string
	index     int
	dir       Direction
	valueType reflect.Type
	settings  Settings
	owner     Node
	self      Port
	conns     []Connection
}

func (p *portBase) base() *portBase { return p }

func (p *portBase) ID() PortID              { return p.id }
func (p *portBase) FieldName() string       { return p.field }
func (p *portBase) Index() int              { return p.index }
func (p *portBase) Direction() Direction    { return p.dir }
func (p *portBase) ValueType() reflect.Type { return p.valueType }
func (p *portBase) Settings() Settings      { return p.settings }
func (p *portBase) Owner() Node             { return p.owner }

func (p *portBase) Name() string {
	return elementName(p.field, p.index)
}

func (p *portBase) ownerID() NodeID {
	if p.owner == nil {
		return ""
	}
	return p.owner.Base().id
}

func (p *portBase) graph() *Graph {
	if p.owner == nil {
		return nil
	}
	return p.owner.Base().graph
}

func (p *portBase) logger() *zap.Logger {
	if g := p.graph(); g != nil {
		return g.logger
	}
	return nopLogger
}

// resolve finds the peer port a connection names, or nil when the node or
// port no longer exists in the owner's hierarchy.
func (p *portBase) resolve(c Connection) Port {
	g := p.graph()
	if g == nil {
		return nil
	}
	n := g.Root().findNode(c.NodeID)
	if n == nil {
		return nil
	}
	return n.Base().PortByID(c.PortID)
}

// prune drops connections whose peer no longer resolves. Detached ports
// cannot resolve anything and are left untouched.
func (p *portBase) prune() {
	if p.graph() == nil || len(p.conns) == 0 {
		return
	}
	kept := p.conns[:0:0]
	for _, c := range p.conns {
		if p.resolve(c) != nil {
			kept = append(kept, c)
			continue
		}
		p.logger().Debug("pruned stale connection",
			zap.String("port", p.Name()),
			zap.String("peer_node", string(c.NodeID)),
			zap.String("peer_port", string(c.PortID)),
		)
	}
	p.conns = kept
}

func (p *portBase) Connections() []Connection {
	p.prune()
	out := make([]Connection, len(p.conns))
	for i, c := range p.conns {
		out[i] = c.clone()
	}
	return out
}

func (p *portBase) ConnectionCount() int {
	p.prune()
	return len(p.conns)
}

func (p *portBase) IsConnected() bool {
	return p.ConnectionCount() > 0
}

func (p *portBase) indexOf(o *portBase) int {
	oid := o.ownerID()
	for i, c := range p.conns {
		if c.NodeID == oid && c.PortID == o.id {
			return i
		}
	}
	return -1
}

func (p *portBase) IsConnectedTo(other Port) bool {
	if isNilPort(other) {
		return false
	}
	return p.indexOf(other.base()) >= 0
}

// Peer returns the port at connection i, or nil.
func (p *portBase) Peer(i int) Port {
	p.prune()
	if i < 0 || i >= len(p.conns) {
		return nil
	}
	return p.resolve(p.conns[i])
}

func (p *portBase) Peers() []Port {
	p.prune()
	peers := make([]Port, 0, len(p.conns))
	for _, c := range p.conns {
		if peer := p.resolve(c); peer != nil {
			peers = append(peers, peer)
		}
	}
	return peers
}

// Connect links p and other. Invalid requests are logged and leave both
// ports unchanged.
func (p *portBase) Connect(other Port) bool {
	log := p.logger()
	if isNilPort(other) {
		p.reject("nil_port")
		log.Warn("cannot connect to nil port", zap.String("port", p.Name()))
		return false
	}
	o := other.base()
	if o == p {
		p.reject("self")
		log.Warn("cannot connect port to itself", zap.String("port", p.Name()))
		return false
	}
	if p.IsConnectedTo(other) {
		p.reject("duplicate")
		log.Warn("ports already connected",
			zap.String("port", p.Name()), zap.String("other", o.Name()))
		return false
	}
	if p.dir == o.dir {
		p.reject("direction")
		log.Warn("cannot connect two ports of the same direction",
			zap.String("port", p.Name()),
			zap.String("other", o.Name()),
			zap.Stringer("direction", p.dir),
		)
		return false
	}
	if !p.CanConnectTo(other) {
		p.reject("type")
		log.Warn("incompatible port types",
			zap.String("port", p.Name()),
			zap.Stringer("type", p.valueType),
			zap.String("other", o.Name()),
			zap.Stringer("other_type", o.valueType),
		)
		return false
	}

	if p.settings.Policy == Override && len(p.conns) > 0 {
		p.ClearConnections()
	}
	if o.settings.Policy == Override && len(o.conns) > 0 {
		o.ClearConnections()
	}

	p.conns = append(p.conns, Connection{NodeID: o.ownerID(), PortID: o.id})
	if o.indexOf(p) < 0 {
		o.conns = append(o.conns, Connection{NodeID: p.ownerID(), PortID: p.id})
	}

	out, in := p, o
	if p.dir == DirInput {
		out, in = o, p
	}
	notifyCreate(p.owner, out.self, in.self)
	if o.owner != p.owner {
		notifyCreate(o.owner, out.self, in.self)
	}
	in.self.resetDefault()
	return true
}

func (p *portBase) reject(reason string) {
	if g := p.graph(); g != nil {
		g.metrics.ConnectionRejected(reason)
	}
}

// CanConnectTo reports whether a connection between p and other would
// satisfy both ends' type constraints. It never mutates either port.
func (p *portBase) CanConnectTo(other Port) bool {
	if isNilPort(other) {
		return false
	}
	o := other.base()
	if o == p || o.dir == p.dir {
		return false
	}
	in, out := p, o
	if p.dir == DirOutput {
		in, out = o, p
	}
	return satisfies(in.settings.Constraint, in.valueType, out.valueType) &&
		satisfies(out.settings.Constraint, in.valueType, out.valueType)
}

func satisfies(c TypeConstraint, in, out reflect.Type) bool {
	switch c {
	case ConstraintNone:
		return true
	case ConstraintInherited:
		return out.AssignableTo(in)
	case ConstraintStrict:
		return in == out
	case ConstraintInheritedInverse:
		return in.AssignableTo(out)
	case ConstraintInheritedAny:
		return out.AssignableTo(in) || in.AssignableTo(out)
	default:
		return false
	}
}

// Disconnect removes the link between p and other in both directions.
func (p *portBase) Disconnect(other Port) {
	if isNilPort(other) {
		return
	}
	o := other.base()
	removed := p.remove(o)
	if o.remove(p) {
		removed = true
	}
	if !removed {
		return
	}
	notifyRemove(p.owner, p.self)
	notifyRemove(o.owner, o.self)
}

func (p *portBase) remove(o *portBase) bool {
	i := p.indexOf(o)
	if i < 0 {
		return false
	}
	p.conns = slices.Delete(p.conns, i, i+1)
	return true
}

// DisconnectAt removes connection i. Out of range indexes are ignored.
func (p *portBase) DisconnectAt(i int) {
	p.prune()
	if i < 0 || i >= len(p.conns) {
		return
	}
	if peer := p.resolve(p.conns[i]); peer != nil {
		p.Disconnect(peer)
		return
	}
	p.conns = slices.Delete(p.conns, i, i+1)
}

// ClearConnections disconnects every peer.
func (p *portBase) ClearConnections() {
	for _, peer := range p.Peers() {
		p.Disconnect(peer)
	}
	p.conns = nil
}

// SwapConnections moves every connection of p onto other and vice versa.
// Reroute points travel with their connection.
func (p *portBase) SwapConnections(other Port) {
	if isNilPort(other) {
		return
	}
	o := other.base()
	type link struct {
		peer     Port
		reroutes []Point
	}
	collect := func(b *portBase) []link {
		var links []link
		for _, c := range b.Connections() {
			if peer := b.resolve(c); peer != nil {
				links = append(links, link{peer: peer, reroutes: c.Reroutes})
			}
		}
		return links
	}
	mine, theirs := collect(p), collect(o)
	p.ClearConnections()
	o.ClearConnections()
	for _, l := range mine {
		if o.Connect(l.peer) {
			o.SetReroutes(l.peer, l.reroutes)
		}
	}
	for _, l := range theirs {
		if p.Connect(l.peer) {
			p.SetReroutes(l.peer, l.reroutes)
		}
	}
}

// Reroutes returns the display waypoints stored on p's side of the link.
func (p *portBase) Reroutes(other Port) []Point {
	if isNilPort(other) {
		return nil
	}
	if i := p.indexOf(other.base()); i >= 0 {
		return slices.Clone(p.conns[i].Reroutes)
	}
	return nil
}

func (p *portBase) SetReroutes(other Port, points []Point) {
	if isNilPort(other) {
		return
	}
	if i := p.indexOf(other.base()); i >= 0 {
		p.conns[i].Reroutes = slices.Clone(points)
	}
}

// redirect rewrites connection node ids through remap, reporting the
// ids it could not translate.
func (p *portBase) redirect(remap map[NodeID]NodeID) (missed []NodeID) {
	for i, c := range p.conns {
		if nid, ok := remap[c.NodeID]; ok {
			p.conns[i].NodeID = nid
			continue
		}
		missed = append(missed, c.NodeID)
	}
	return missed
}

func notifyCreate(n Node, output, input Port) {
	if obs, ok := n.(ConnectionObserver); ok {
		obs.OnCreateConnection(output, input)
	}
}

func notifyRemove(n Node, port Port) {
	if obs, ok := n.(ConnectionObserver); ok {
		obs.OnRemoveConnection(port)
	}
}

func isNilPort(p Port) bool {
	if p == nil {
		return true
	}
	v := reflect.ValueOf(p)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
