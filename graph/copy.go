package graph

import (
	"reflect"

	"go.uber.org/zap"
)

// Copy deep-copies g and its sub-graphs. Nodes get new ids; a connection
// is redirected by looking up its old node's index in the original list
// and taking the node at the same index in the copy. Port ids, literal
// values, names and positions are preserved.
func (g *Graph) Copy() *Graph {
	remap := make(map[NodeID]NodeID)
	ng := g.copyTree(remap)
	ng.redirect(remap)
	return ng
}

func (g *Graph) copyTree(remap map[NodeID]NodeID) *Graph {
	ng := g.blank()

	copied := make(map[*Graph]bool)
	for _, n := range g.nodes {
		c := shallowClone(n)
		ng.bind(c, n.Base().typ, newNodeID())
		copyNodeState(c, n, true)
		if owner, ok := c.(SubGraphOwner); ok {
			if sub := owner.SubGraph(); sub != nil {
				copied[sub] = true
				nsub := sub.copyTree(remap)
				nsub.board = nil
				nsub.SetParent(ng)
				owner.SetSubGraph(nsub)
			}
		}
		ng.append(c)
	}
	for i, n := range g.nodes {
		remap[n.Base().id] = ng.nodes[i].Base().id
	}
	for _, child := range g.children {
		if copied[child] {
			continue
		}
		nchild := child.copyTree(remap)
		nchild.board = nil
		nchild.SetParent(ng)
	}
	for _, n := range ng.nodes {
		if init, ok := n.(Initializer); ok {
			init.Initialize()
		}
	}
	return ng
}

// redirect rewrites every connection in the copied hierarchy. Ids outside
// the copy are left untouched and dropped lazily if they never resolve.
func (g *Graph) redirect(remap map[NodeID]NodeID) {
	for _, n := range g.Nodes() {
		for _, p := range n.Base().ports {
			for _, id := range p.base().redirect(remap) {
				g.logger.Debug("connection target outside copied graph left unchanged",
					zap.String("node", n.Base().name),
					zap.String("port", p.Name()),
					zap.String("target", string(id)),
				)
			}
		}
	}
}

// dropExternal removes, without notification, connections that point
// outside g's hierarchy.
func (g *Graph) dropExternal() {
	for _, n := range g.Nodes() {
		for _, p := range n.Base().ports {
			pb := p.base()
			kept := pb.conns[:0:0]
			for _, c := range pb.conns {
				if g.findNode(c.NodeID) != nil {
					kept = append(kept, c)
				}
			}
			pb.conns = kept
		}
	}
}

// shallowClone allocates a new node of src's concrete type holding a copy
// of its fields. The caller rebinds the NodeBase and redeclares ports.
func shallowClone(src Node) Node {
	v := reflect.ValueOf(src)
	c := reflect.New(v.Elem().Type())
	c.Elem().Set(v.Elem())
	return c.Interface().(Node)
}

// copyNodeState carries display state and port state from src onto dst,
// whose ports were freshly declared.
func copyNodeState(dst, src Node, withConnections bool) {
	db, sb := dst.Base(), src.Base()
	db.name = sb.name
	db.position = sb.position
	for _, sp := range sb.ports {
		dp := db.byName[sp.Name()]
		if dp == nil {
			continue
		}
		dpb, spb := dp.base(), sp.base()
		dpb.id = spb.id
		dpb.settings = spb.settings
		dp.copyDefault(sp)
		if withConnections {
			dpb.conns = make([]Connection, len(spb.conns))
			for i, c := range spb.conns {
				dpb.conns[i] = c.clone()
			}
		}
	}
}
