/*
Package graph implements the node graph data model: typed ports and their
connections, nodes with declared port lists, and graphs that own nodes and
nested sub-graphs.

# Ports

InputPort[T] pulls its value from the first connected output, falling back
to a literal default. OutputPort[T] either holds a literal or computes its
value through a function of the owning node, evaluated on every read. The
untyped Port interface exposes the same operations to generic tooling with
DynamicValue and a reflect.Type tag used by the type constraint check.

Connections name the peer by node id and port id and are resolved against
the root graph of the hierarchy. Links whose peer no longer resolves are
dropped on the next access.

# Nodes

A node type embeds NodeBase and declares its ports in DeclarePorts:

	type Square struct {
		graph.NodeBase
		In  *graph.InputPort[float64]
		Out *graph.OutputPort[float64]
	}

	func (n *Square) DeclarePorts(d *graph.Declarer) {
		n.In = graph.Input[float64](d, "in")
		n.Out = graph.Output(d, "out", func(graph.Node) float64 {
			v := n.In.Value()
			return v * v
		})
	}

Types are registered once with Register and created through a graph
(AddNode, Add[T], CreateNode), which binds the owner before any hook runs.

# Graphs

Graph owns an ordered node list, child graphs and the in/out point nodes
forming its external interface. Copy deep-copies a hierarchy and redirects
connections by node list index. Output evaluation is guarded by a depth
limit that turns runaway recursion into an ErrEvaluationCycle error.
*/
package graph
