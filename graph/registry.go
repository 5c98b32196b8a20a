package graph

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// Marker flags node types that form a graph's external interface.
type Marker int

const (
	MarkerNone Marker = iota
	MarkerInPoint
	MarkerOutPoint
)

// NodeType describes a registered kind of node.
type NodeType struct {
	// Name is the registry key, e.g. "math.sum_float".
	Name string
	// Title is the default display name. Derived from Name when empty.
	Title       string
	Description string
	// New returns a fresh, detached instance. It must return a pointer to a
	// struct embedding NodeBase.
	New    func() Node
	Marker Marker
	// MaxPerGraph limits instances per graph; 0 means unlimited.
	MaxPerGraph int

	goType reflect.Type
	once   sync.Once
	desc   Descriptor
}

// DisplayTitle returns Title, or a readable form of Name.
func (nt *NodeType) DisplayTitle() string {
	if nt.Title != "" {
		return nt.Title
	}
	return nicify(nt.Name)
}

// Descriptor returns the type's ordered port list. It is built from a
// detached prototype on first use and cached for the life of the process.
func (nt *NodeType) Descriptor() Descriptor {
	nt.once.Do(func() {
		proto := nt.New()
		d := newDeclarer(proto)
		proto.DeclarePorts(d)
		nt.desc = describe(nt.Name, d.ports)
	})
	return nt.desc
}

var registry = struct {
	sync.RWMutex
	byName map[string]*NodeType
	byType map[reflect.Type]*NodeType
}{
	byName: make(map[string]*NodeType),
	byType: make(map[reflect.Type]*NodeType),
}

// Register adds nt to the process-wide registry and returns it. It panics
// on a duplicate name or an invalid constructor, like sql.Register.
func Register(nt *NodeType) *NodeType {
	if nt == nil || nt.Name == "" || nt.New == nil {
		panic("graph: Register requires a name and a constructor")
	}
	proto := nt.New()
	t := reflect.TypeOf(proto)
	if t == nil || t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Struct {
		panic(fmt.Sprintf("graph: node type %q must construct a struct pointer", nt.Name))
	}
	nt.goType = t

	registry.Lock()
	defer registry.Unlock()
	if _, dup := registry.byName[nt.Name]; dup {
		panic(fmt.Sprintf("graph: node type %q registered twice", nt.Name))
	}
	registry.byName[nt.Name] = nt
	if _, dup := registry.byType[t]; !dup {
		registry.byType[t] = nt
	}
	return nt
}

// LookupType finds a registered node type by name.
func LookupType(name string) (*NodeType, bool) {
	registry.RLock()
	defer registry.RUnlock()
	nt, ok := registry.byName[name]
	return nt, ok
}

// TypeOf finds the node type whose constructor returns a T.
func TypeOf[T Node]() (*NodeType, bool) {
	registry.RLock()
	defer registry.RUnlock()
	nt, ok := registry.byType[reflect.TypeFor[T]()]
	return nt, ok
}

// Types lists every registered node type sorted by name.
func Types() []*NodeType {
	registry.RLock()
	defer registry.RUnlock()
	out := make([]*NodeType, 0, len(registry.byName))
	for _, nt := range registry.byName {
		out = append(out, nt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// nicify turns "logic.entry_point" into "Entry Point".
func nicify(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	words := strings.FieldsFunc(name, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
