package graph

// Nested holds the graph embedded by a sub-graph node. Embed it next to
// NodeBase and call EnsureSubGraph from Initialize and ReleaseSubGraph
// from Release.
type Nested struct {
	inner *Graph
}

func (n *Nested) SubGraph() *Graph { return n.inner }

func (n *Nested) SetSubGraph(g *Graph) { n.inner = g }

// EnsureSubGraph creates the nested graph under parent if it is absent.
func (n *Nested) EnsureSubGraph(parent *Graph) *Graph {
	if n.inner == nil && parent != nil {
		n.inner = parent.NewChild()
	}
	return n.inner
}

// ReleaseSubGraph destroys the nested graph.
func (n *Nested) ReleaseSubGraph() {
	if n.inner != nil {
		n.inner.Destroy()
		n.inner = nil
	}
}

// SubGraph is a dataflow node owning a nested graph of its parent's kind.
type SubGraph struct {
	NodeBase
	Nested
}

func (s *SubGraph) DeclarePorts(*Declarer) {}

func (s *SubGraph) Initialize() { s.EnsureSubGraph(s.Graph()) }

func (s *SubGraph) Release() { s.ReleaseSubGraph() }

var SubGraphType = Register(&NodeType{
	Name:        "graph.sub_graph",
	Description: "embeds a nested graph",
	New:         func() Node { return &SubGraph{} },
})
