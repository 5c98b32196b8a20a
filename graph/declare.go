package graph

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"
)

// Declarer collects a node's ports, in order, while DeclarePorts runs.
type Declarer struct {
	node   Node
	ports  []Port
	arrays map[string][]Port
}

func newDeclarer(n Node) *Declarer {
	return &Declarer{node: n, arrays: make(map[string][]Port)}
}

// PortOption adjusts the settings of a declared port.
type PortOption func(*Settings)

// WithPolicy sets the connection policy.
func WithPolicy(policy ConnectionPolicy) PortOption {
	return func(s *Settings) { s.Policy = policy }
}

// WithConstraint sets the type constraint.
func WithConstraint(c TypeConstraint) PortOption {
	return func(s *Settings) { s.Constraint = c }
}

// WithBacking sets the display hint for the literal value.
func WithBacking(b Backing) PortOption {
	return func(s *Settings) { s.Backing = b }
}

func settingsFor(dir Direction, opts []PortOption) Settings {
	s := DefaultInputSettings()
	if dir == DirOutput {
		s = DefaultOutputSettings()
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

func (d *Declarer) init(pb *portBase, self Port, field string, index int, dir Direction, vt reflect.Type, opts []PortOption) {
	if _, dup := d.lookup(elementName(field, index)); dup {
		panic(fmt.Sprintf("graph: port %q declared twice", elementName(field, index)))
	}
	*pb = portBase{
		id:        PortID(uuid.NewString()),
		field:     field,
		index:     index,
		dir:       dir,
		valueType: vt,
		settings:  settingsFor(dir, opts),
		owner:     d.node,
		self:      self,
	}
	d.ports = append(d.ports, self)
	if index >= 0 {
		d.arrays[field] = append(d.arrays[field], self)
	}
}

func (d *Declarer) lookup(name string) (Port, bool) {
	for _, p := range d.ports {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

// Input declares an input port.
func Input[T any](d *Declarer, name string, opts ...PortOption) *InputPort[T] {
	p := &InputPort[T]{}
	d.init(&p.portBase, p, name, -1, DirInput, reflect.TypeFor[T](), opts)
	return p
}

// Output declares an output port. fn may be nil for ports holding a
// literal value.
func Output[T any](d *Declarer, name string, fn func(Node) T, opts ...PortOption) *OutputPort[T] {
	p := &OutputPort[T]{fn: fn}
	d.init(&p.portBase, p, name, -1, DirOutput, reflect.TypeFor[T](), opts)
	return p
}

// InputArray declares n input ports named "name.0" .. "name.n-1".
func InputArray[T any](d *Declarer, name string, n int, opts ...PortOption) []*InputPort[T] {
	ports := make([]*InputPort[T], n)
	for i := range ports {
		p := &InputPort[T]{}
		d.init(&p.portBase, p, name, i, DirInput, reflect.TypeFor[T](), opts)
		ports[i] = p
	}
	return ports
}

// OutputArray declares n output ports; fn receives the owner and the
// element index.
func OutputArray[T any](d *Declarer, name string, n int, fn func(Node, int) T, opts ...PortOption) []*OutputPort[T] {
	ports := make([]*OutputPort[T], n)
	for i := range ports {
		p := &OutputPort[T]{}
		if fn != nil {
			idx := i
			p.fn = func(owner Node) T { return fn(owner, idx) }
		}
		d.init(&p.portBase, p, name, i, DirOutput, reflect.TypeFor[T](), opts)
		ports[i] = p
	}
	return ports
}

func elementName(field string, index int) string {
	if index < 0 {
		return field
	}
	return fmt.Sprintf("%s.%d", field, index)
}

// PortSpec describes one declared port of a node type.
type PortSpec struct {
	Name      string
	Field     string
	Index     int
	Direction Direction
	ValueType reflect.Type
	Settings  Settings
}

// Descriptor is the ordered port list of a node type.
type Descriptor struct {
	Type  string
	Ports []PortSpec
}

// Port returns the spec with the given name.
func (d Descriptor) Port(name string) (PortSpec, bool) {
	for _, p := range d.Ports {
		if p.Name == name {
			return p, true
		}
	}
	return PortSpec{}, false
}

func describe(typeName string, ports []Port) Descriptor {
	desc := Descriptor{Type: typeName, Ports: make([]PortSpec, len(ports))}
	for i, p := range ports {
		desc.Ports[i] = PortSpec{
			Name:      p.Name(),
			Field:     p.FieldName(),
			Index:     p.Index(),
			Direction: p.Direction(),
			ValueType: p.ValueType(),
			Settings:  p.Settings(),
		}
	}
	return desc
}
