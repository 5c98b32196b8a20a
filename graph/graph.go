package graph

import (
	"reflect"
	"slices"

	"go.uber.org/zap"

	"github.com/BaSui01/nodeflow/blackboard"
	"github.com/BaSui01/nodeflow/types"
)

// DefaultMaxEvalDepth bounds nested output evaluation on one call stack.
const DefaultMaxEvalDepth = 4096

var nopLogger = zap.NewNop()

// Kind describes a family of graphs: the node types every instance must
// contain and an optional host wrapping the container.
type Kind struct {
	Name     string
	Required []string
	// Host builds the specialization object for a new graph instance
	// (for example a logic flow). It may be nil.
	Host func(g *Graph) any
}

// DefaultKind is a plain dataflow graph with no required nodes.
var DefaultKind = &Kind{Name: "graph"}

// Metrics receives structural events from graphs and ports.
type Metrics interface {
	ConnectionRejected(reason string)
	NodeAdded(nodeType string)
	NodeRemoved(nodeType string)
}

type nopMetrics struct{}

func (nopMetrics) ConnectionRejected(string) {}
func (nopMetrics) NodeAdded(string)          {}
func (nopMetrics) NodeRemoved(string)        {}

// Graph owns an ordered list of nodes, its nested sub-graphs and the in/out
// point nodes forming its external interface. A graph hierarchy is not
// safe for concurrent use.
type Graph struct {
	name     string
	kind     *Kind
	nodes    []Node
	index    map[NodeID]Node
	parent   *Graph
	children []*Graph

	inPoints  []Node
	outPoints []Node

	board *blackboard.Blackboard
	slot  blackboard.Slot
	host  any

	logger       *zap.Logger
	metrics      Metrics
	maxEvalDepth int
	evalDepth    int
}

// Option configures a Graph.
type Option func(*Graph)

// WithKind sets the graph kind. Defaults to DefaultKind.
func WithKind(k *Kind) Option {
	return func(g *Graph) { g.kind = k }
}

func WithName(name string) Option {
	return func(g *Graph) { g.name = name }
}

func WithLogger(logger *zap.Logger) Option {
	return func(g *Graph) {
		if logger != nil {
			g.logger = logger.With(zap.String("component", "graph"))
		}
	}
}

// WithBlackboard attaches the variable store. Only the root's board is used.
func WithBlackboard(b *blackboard.Blackboard) Option {
	return func(g *Graph) { g.board = b }
}

// WithMaxEvalDepth sets the evaluation depth guard; n <= 0 disables it.
func WithMaxEvalDepth(n int) Option {
	return func(g *Graph) { g.maxEvalDepth = n }
}

func WithMetrics(m Metrics) Option {
	return func(g *Graph) {
		if m != nil {
			g.metrics = m
		}
	}
}

// New creates a graph and adds the node types its kind requires.
func New(opts ...Option) *Graph {
	g := &Graph{
		kind:         DefaultKind,
		index:        make(map[NodeID]Node),
		logger:       nopLogger,
		metrics:      nopMetrics{},
		maxEvalDepth: DefaultMaxEvalDepth,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.attachHost()
	g.addRequired()
	return g
}

// blank returns an empty graph sharing g's configuration.
func (g *Graph) blank() *Graph {
	ng := &Graph{
		name:         g.name,
		kind:         g.kind,
		index:        make(map[NodeID]Node),
		board:        g.board,
		logger:       g.logger,
		metrics:      g.metrics,
		maxEvalDepth: g.maxEvalDepth,
	}
	ng.attachHost()
	return ng
}

// NewChild creates a sub-graph of the same kind parented to g.
func (g *Graph) NewChild() *Graph {
	child := g.blank()
	child.board = nil
	child.SetParent(g)
	child.addRequired()
	return child
}

func (g *Graph) attachHost() {
	if g.kind != nil && g.kind.Host != nil {
		g.host = g.kind.Host(g)
	}
}

func (g *Graph) addRequired() {
	if g.kind == nil {
		return
	}
	for i, name := range g.kind.Required {
		nt, ok := LookupType(name)
		if !ok {
			g.logger.Error("required node type not registered", zap.String("type", name))
			continue
		}
		if g.countType(nt) > 0 {
			continue
		}
		n, err := g.AddNodeType(nt)
		if err != nil {
			g.logger.Error("failed to add required node", zap.String("type", name), zap.Error(err))
			continue
		}
		n.Base().SetPosition(Point{X: float64(i) * 200})
	}
}

func (g *Graph) Name() string        { return g.name }
func (g *Graph) SetName(name string) { g.name = name }
func (g *Graph) Kind() *Kind         { return g.kind }

// Host returns the specialization built by the kind's Host hook.
func (g *Graph) Host() any { return g.host }

func (g *Graph) Logger() *zap.Logger { return g.logger }

func (g *Graph) Parent() *Graph { return g.parent }

func (g *Graph) Children() []*Graph { return append([]*Graph(nil), g.children...) }

// SetParent moves g under p. A nil p detaches it.
func (g *Graph) SetParent(p *Graph) {
	if g.parent == p {
		return
	}
	if g.parent != nil {
		g.parent.children = slices.DeleteFunc(g.parent.children, func(c *Graph) bool { return c == g })
	}
	g.parent = p
	if p != nil {
		p.children = append(p.children, g)
	}
}

// Root walks parents to the top of the hierarchy.
func (g *Graph) Root() *Graph {
	r := g
	for r.parent != nil {
		r = r.parent
	}
	return r
}

// Blackboard returns the root graph's variable store, or nil.
func (g *Graph) Blackboard() *blackboard.Blackboard { return g.Root().board }

// SetBlackboard replaces the variable store carried by g.
func (g *Graph) SetBlackboard(b *blackboard.Blackboard) { g.board = b }

// BlackboardSlot returns the per-instance storage for local variables.
func (g *Graph) BlackboardSlot() *blackboard.Slot { return &g.slot }

// OwnNodes returns the nodes of this graph only, in insertion order.
func (g *Graph) OwnNodes() []Node { return append([]Node(nil), g.nodes...) }

// Nodes returns own nodes followed by those of every descendant.
func (g *Graph) Nodes() []Node {
	out := g.OwnNodes()
	for _, c := range g.children {
		out = append(out, c.Nodes()...)
	}
	return out
}

func (g *Graph) InPoints() []Node  { return append([]Node(nil), g.inPoints...) }
func (g *Graph) OutPoints() []Node { return append([]Node(nil), g.outPoints...) }

// NodeByID looks a node up in g and its descendants.
func (g *Graph) NodeByID(id NodeID) Node { return g.findNode(id) }

func (g *Graph) findNode(id NodeID) Node {
	if n, ok := g.index[id]; ok {
		return n
	}
	for _, c := range g.children {
		if n := c.findNode(id); n != nil {
			return n
		}
	}
	return nil
}

// IndexOf returns n's position in the own node list, or -1.
func (g *Graph) IndexOf(n Node) int {
	if n == nil {
		return -1
	}
	return slices.IndexFunc(g.nodes, func(x Node) bool { return x.Base() == n.Base() })
}

func (g *Graph) Contains(n Node) bool { return g.IndexOf(n) >= 0 }

func (g *Graph) countType(nt *NodeType) int {
	count := 0
	for _, n := range g.nodes {
		if n.Base().typ == nt {
			count++
		}
	}
	return count
}

// AddNode creates a node of the registered type name.
func (g *Graph) AddNode(typeName string) (Node, error) {
	nt, ok := LookupType(typeName)
	if !ok {
		return nil, types.Errorf(types.ErrUnknownNodeType, "node type %q is not registered", typeName)
	}
	return g.AddNodeType(nt)
}

// CreateNode builds a node of type nt bound to g.
func CreateNode(g *Graph, nt *NodeType) (Node, error) {
	return g.AddNodeType(nt)
}

// Add creates a node whose registered constructor returns a T.
func Add[T Node](g *Graph) (T, error) {
	var zero T
	nt, ok := TypeOf[T]()
	if !ok {
		return zero, types.Errorf(types.ErrUnknownNodeType, "no node type registered for %s", reflect.TypeFor[T]())
	}
	n, err := g.AddNodeType(nt)
	if err != nil {
		return zero, err
	}
	return n.(T), nil
}

// AddNodeType creates a node of type nt. The owning graph is bound before
// ports are declared and before any Initialize hook runs.
func (g *Graph) AddNodeType(nt *NodeType) (Node, error) {
	if nt == nil {
		return nil, types.NewError(types.ErrUnknownNodeType, "nil node type")
	}
	if err := g.checkLimit(nt); err != nil {
		return nil, err
	}
	n := nt.New()
	g.bind(n, nt, newNodeID())
	n.Base().name = nt.DisplayTitle()
	g.append(n)
	g.initialize(n)
	return n, nil
}

func (g *Graph) checkLimit(nt *NodeType) error {
	if nt.MaxPerGraph > 0 && g.countType(nt) >= nt.MaxPerGraph {
		return types.Errorf(types.ErrNodeLimit, "node type %q allows %d per graph", nt.Name, nt.MaxPerGraph)
	}
	return nil
}

func (g *Graph) bind(n Node, nt *NodeType, id NodeID) {
	b := n.Base()
	*b = NodeBase{id: id, graph: g, typ: nt, self: n}
	d := newDeclarer(n)
	n.DeclarePorts(d)
	b.index(d)
}

func (g *Graph) append(n Node) {
	b := n.Base()
	g.nodes = append(g.nodes, n)
	g.index[b.id] = n
	if b.typ != nil {
		switch b.typ.Marker {
		case MarkerInPoint:
			g.inPoints = append(g.inPoints, n)
		case MarkerOutPoint:
			g.outPoints = append(g.outPoints, n)
		}
		g.metrics.NodeAdded(b.typ.Name)
	}
}

func (g *Graph) initialize(n Node) {
	n.Base().VerifyConnections()
	if init, ok := n.(Initializer); ok {
		init.Initialize()
	}
}

// CopyNode adds a copy of original to g. The copy keeps port values, name
// and position but starts without connections. A nested graph is deep
// copied and re-parented to g.
func (g *Graph) CopyNode(original Node) (Node, error) {
	if original == nil || original.Base().typ == nil {
		return nil, types.NewError(types.ErrNodeNotFound, "cannot copy a detached node")
	}
	src := original.Base()
	if err := g.checkLimit(src.typ); err != nil {
		return nil, err
	}
	n := shallowClone(original)
	g.bind(n, src.typ, newNodeID())
	copyNodeState(n, original, false)
	if owner, ok := n.(SubGraphOwner); ok {
		if sub := owner.SubGraph(); sub != nil {
			nsub := sub.Copy()
			nsub.dropExternal()
			nsub.board = nil
			nsub.SetParent(g)
			owner.SetSubGraph(nsub)
		}
	}
	g.append(n)
	g.initialize(n)
	return n, nil
}

// RemoveNode clears n's connections, detaches it and releases what it
// owns. The last node of a required type cannot be removed.
func (g *Graph) RemoveNode(n Node) error {
	if n == nil || !g.Contains(n) {
		return types.NewError(types.ErrNodeNotFound, "node is not part of this graph")
	}
	b := n.Base()
	if g.isRequired(b.typ) && g.countType(b.typ) <= 1 {
		return types.Errorf(types.ErrRequiredNode, "%s is required by %s graphs", b.typ.Name, g.kind.Name)
	}
	g.detach(n)
	return nil
}

// RemoveNodes removes every node matching pred and returns how many were
// removed. Required nodes that cannot be removed are skipped.
func (g *Graph) RemoveNodes(pred func(Node) bool) int {
	removed := 0
	for _, n := range g.OwnNodes() {
		if pred(n) && g.RemoveNode(n) == nil {
			removed++
		}
	}
	return removed
}

func (g *Graph) isRequired(nt *NodeType) bool {
	if nt == nil || g.kind == nil {
		return false
	}
	return slices.Contains(g.kind.Required, nt.Name)
}

func (g *Graph) detach(n Node) {
	b := n.Base()
	b.ClearConnections()
	same := func(x Node) bool { return x.Base() == b }
	g.nodes = slices.DeleteFunc(g.nodes, same)
	g.inPoints = slices.DeleteFunc(g.inPoints, same)
	g.outPoints = slices.DeleteFunc(g.outPoints, same)
	delete(g.index, b.id)
	if r, ok := n.(Releaser); ok {
		r.Release()
	}
	if b.typ != nil {
		g.metrics.NodeRemoved(b.typ.Name)
	}
	b.graph = nil
}

// Clear removes every node, required ones included.
func (g *Graph) Clear() {
	for _, n := range g.OwnNodes() {
		g.detach(n)
	}
	for _, c := range g.Children() {
		c.Destroy()
	}
}

// Destroy clears g, deletes its local blackboard variables and detaches
// it from its parent.
func (g *Graph) Destroy() {
	if b := g.Blackboard(); b != nil {
		b.DeleteLocalVars(g)
	}
	g.Clear()
	g.SetParent(nil)
}

func (g *Graph) point(points []Node, name string) Node {
	for _, n := range points {
		if n.Base().name == name {
			return n
		}
	}
	return nil
}

// SetInValue sets the literal input of the in-point named name.
func (g *Graph) SetInValue(name string, v any) error {
	n := g.point(g.inPoints, name)
	if n == nil {
		return types.Errorf(types.ErrPointNotFound, "no in point named %q", name)
	}
	n.Base().Port(PointInput).SetDynamicValue(v)
	return nil
}

// GetInValue reads the input of the in-point named name.
func GetInValue[T any](g *Graph, name string) (T, error) {
	return pointValue[T](g, g.inPoints, name, PointInput)
}

// GetOutValue evaluates the out-point named name. An evaluation cycle is
// reported as an error.
func GetOutValue[T any](g *Graph, name string) (T, error) {
	return pointValue[T](g, g.outPoints, name, PointOutput)
}

func pointValue[T any](g *Graph, points []Node, name, port string) (T, error) {
	var zero T
	n := g.point(points, name)
	if n == nil {
		return zero, types.Errorf(types.ErrPointNotFound, "no point named %q", name)
	}
	p := n.Base().Port(port)
	if p == nil {
		return zero, types.Errorf(types.ErrPortNotFound, "point %q has no %s port", name, port)
	}
	return Evaluate(func() T { return convertValue[T](p.DynamicValue()) })
}
