package graph

import (
	"reflect"

	"go.uber.org/zap"
)

// InputPort pulls a T from the first connected output, falling back to its
// literal default when unconnected.
type InputPort[T any] struct {
	portBase
	def T
}

// Value returns the first connection's value, or the literal default.
func (p *InputPort[T]) Value() T {
	if peer := p.Peer(0); peer != nil {
		return convertValue[T](peer.DynamicValue())
	}
	return p.def
}

// Values returns the value of every connected output, in connection order.
func (p *InputPort[T]) Values() []T {
	peers := p.Peers()
	out := make([]T, 0, len(peers))
	for _, peer := range peers {
		out = append(out, convertValue[T](peer.DynamicValue()))
	}
	return out
}

// Default returns the literal default regardless of connections.
func (p *InputPort[T]) Default() T { return p.def }

// SetValue stores the literal default.
func (p *InputPort[T]) SetValue(v T) { p.def = v }

// ClearValue resets the literal default to the zero value.
func (p *InputPort[T]) ClearValue() {
	var zero T
	p.def = zero
}

func (p *InputPort[T]) DynamicValue() any { return p.Value() }

func (p *InputPort[T]) DynamicValues() []any {
	vals := p.Values()
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}

func (p *InputPort[T]) SetDynamicValue(v any) {
	val, ok := tryConvert[T](v)
	if !ok {
		p.logger().Warn("ignored value of incompatible type",
			zap.String("port", p.Name()),
			zap.Stringer("want", p.valueType),
			zap.String("got", typeName(v)),
		)
		return
	}
	p.def = val
}

func (p *InputPort[T]) resetDefault() { p.ClearValue() }

func (p *InputPort[T]) copyDefault(src Port) {
	if s, ok := src.(*InputPort[T]); ok {
		p.def = s.def
	}
}

// OutputPort computes a T through a bound function, or holds a literal
// default when no function is bound.
type OutputPort[T any] struct {
	portBase
	def T
	fn  func(Node) T
}

// Value invokes the bound function with the owning node on every read.
func (p *OutputPort[T]) Value() T {
	if p.fn == nil {
		return p.def
	}
	leave := p.enter()
	defer leave()
	return p.fn(p.owner)
}

// enter tracks evaluation depth on the root graph and panics with an
// evaluation cycle error once the configured limit is exceeded.
func (p *OutputPort[T]) enter() func() {
	g := p.graph()
	if g == nil {
		return func() {}
	}
	root := g.Root()
	root.evalDepth++
	if root.maxEvalDepth > 0 && root.evalDepth > root.maxEvalDepth {
		root.evalDepth--
		panic(cycleError(p.Name(), root.maxEvalDepth))
	}
	return func() { root.evalDepth-- }
}

// Bound reports whether a value function is attached.
func (p *OutputPort[T]) Bound() bool { return p.fn != nil }

// SetFunc binds (or with nil, unbinds) the value function.
func (p *OutputPort[T]) SetFunc(fn func(Node) T) { p.fn = fn }

func (p *OutputPort[T]) Default() T { return p.def }

func (p *OutputPort[T]) SetValue(v T) { p.def = v }

func (p *OutputPort[T]) ClearValue() {
	var zero T
	p.def = zero
}

func (p *OutputPort[T]) DynamicValue() any { return p.Value() }

func (p *OutputPort[T]) DynamicValues() []any { return []any{p.Value()} }

func (p *OutputPort[T]) SetDynamicValue(v any) {
	val, ok := tryConvert[T](v)
	if !ok {
		p.logger().Warn("ignored value of incompatible type",
			zap.String("port", p.Name()),
			zap.Stringer("want", p.valueType),
			zap.String("got", typeName(v)),
		)
		return
	}
	p.def = val
}

func (p *OutputPort[T]) resetDefault() { p.ClearValue() }

func (p *OutputPort[T]) copyDefault(src Port) {
	if s, ok := src.(*OutputPort[T]); ok {
		p.def = s.def
	}
}

func convertValue[T any](v any) T {
	val, _ := tryConvert[T](v)
	return val
}

// tryConvert returns v as a T, applying reflect conversion between
// convertible kinds. Numbers never convert to strings.
func tryConvert[T any](v any) (T, bool) {
	var zero T
	if v == nil {
		return zero, true
	}
	if t, ok := v.(T); ok {
		return t, true
	}
	rv := reflect.ValueOf(v)
	target := reflect.TypeFor[T]()
	if !rv.Type().ConvertibleTo(target) {
		return zero, false
	}
	if target.Kind() == reflect.String && rv.Kind() != reflect.String {
		return zero, false
	}
	if rv.Kind() == reflect.Slice && target.Kind() == reflect.Array {
		return zero, false
	}
	return rv.Convert(target).Interface().(T), true
}

func typeName(v any) string {
	if v == nil {
		return "nil"
	}
	return reflect.TypeOf(v).String()
}
