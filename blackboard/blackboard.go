package blackboard

import (
	"reflect"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/nodeflow/types"
)

// Var is a keyed variable. Templates are cloned into runtime vars on first
// access; runtime vars never alias their template.
type Var struct {
	Key   string
	Value any
}

func (v Var) clone() *Var {
	return &Var{Key: v.Key, Value: v.Value}
}

// Slot is the per-graph-instance storage for local runtime variables. A
// graph owns its slot; the blackboard never keys anything by graph
// identity.
type Slot struct {
	vars       []*Var
	generation uint64
	ready      bool
}

// Scope is implemented by anything owning a local variable slot, usually a
// graph instance.
type Scope interface {
	BlackboardSlot() *Slot
}

// Metrics receives blackboard access events.
type Metrics interface {
	BlackboardAccess(scope, op string, found bool)
}

// Blackboard stores global variables shared by a graph hierarchy and
// templates for per-instance local variables. It is safe for concurrent
// use.
type Blackboard struct {
	mu sync.RWMutex

	globals []Var
	locals  []Var

	runtime      []*Var
	runtimeReady bool
	generation   uint64

	logger  *zap.Logger
	metrics Metrics
}

// Option configures a Blackboard.
type Option func(*Blackboard)

func WithLogger(logger *zap.Logger) Option {
	return func(b *Blackboard) {
		if logger != nil {
			b.logger = logger.With(zap.String("component", "blackboard"))
		}
	}
}

func WithMetrics(m Metrics) Option {
	return func(b *Blackboard) { b.metrics = m }
}

// WithGlobals adds global variable templates.
func WithGlobals(vars ...Var) Option {
	return func(b *Blackboard) { b.globals = append(b.globals, vars...) }
}

// WithLocals adds local variable templates.
func WithLocals(vars ...Var) Option {
	return func(b *Blackboard) { b.locals = append(b.locals, vars...) }
}

func New(opts ...Option) *Blackboard {
	b := &Blackboard{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// AddGlobal adds or replaces a global template. Runtime vars already
// instantiated keep their values until ClearRuntimeVars.
func (b *Blackboard) AddGlobal(key string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.globals = upsert(b.globals, key, value)
}

// AddLocal adds or replaces a local template.
func (b *Blackboard) AddLocal(key string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.locals = upsert(b.locals, key, value)
}

func upsert(vars []Var, key string, value any) []Var {
	for i := range vars {
		if vars[i].Key == key {
			vars[i].Value = value
			return vars
		}
	}
	return append(vars, Var{Key: key, Value: value})
}

// Globals returns the global templates.
func (b *Blackboard) Globals() []Var {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.globals)
}

// Locals returns the local templates.
func (b *Blackboard) Locals() []Var {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.locals)
}

func instantiate(templates []Var) []*Var {
	out := make([]*Var, len(templates))
	for i, t := range templates {
		out[i] = t.clone()
	}
	return out
}

// globalVars returns the runtime globals, instantiating them on first use.
// Callers hold b.mu for writing.
func (b *Blackboard) globalVars() []*Var {
	if !b.runtimeReady {
		b.runtime = instantiate(b.globals)
		b.runtimeReady = true
	}
	return b.runtime
}

// localVars returns the runtime locals of s, instantiating them when the
// slot is new or was invalidated by ClearRuntimeVars.
func (b *Blackboard) localVars(s *Slot) []*Var {
	if !s.ready || s.generation != b.generation {
		s.vars = instantiate(b.locals)
		s.generation = b.generation
		s.ready = true
	}
	return s.vars
}

func find(vars []*Var, key string) *Var {
	for _, v := range vars {
		if v.Key == key {
			return v
		}
	}
	return nil
}

func (b *Blackboard) record(scope, op string, found bool) {
	if b.metrics != nil {
		b.metrics.BlackboardAccess(scope, op, found)
	}
}

// GlobalValue returns the runtime value of a global variable.
func (b *Blackboard) GlobalValue(key string) (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v := find(b.globalVars(), key)
	b.record("global", "get", v != nil)
	if v == nil {
		return nil, false
	}
	return v.Value, true
}

// SetGlobalValue writes a global variable. The key must exist as a
// template and the value must fit the template's type.
func (b *Blackboard) SetGlobalValue(key string, value any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	v := find(b.globalVars(), key)
	b.record("global", "set", v != nil)
	return b.assign(v, "global", key, value)
}

// LocalValue returns the runtime value of a local variable of s.
func (b *Blackboard) LocalValue(s Scope, key string) (any, bool) {
	slot := slotOf(s)
	if slot == nil {
		return nil, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	v := find(b.localVars(slot), key)
	b.record("local", "get", v != nil)
	if v == nil {
		return nil, false
	}
	return v.Value, true
}

// SetLocalValue writes a local variable of s.
func (b *Blackboard) SetLocalValue(s Scope, key string, value any) error {
	slot := slotOf(s)
	if slot == nil {
		return types.NewError(types.ErrMissingReference, "local variable access without a scope")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	v := find(b.localVars(slot), key)
	b.record("local", "set", v != nil)
	return b.assign(v, "local", key, value)
}

func (b *Blackboard) assign(v *Var, scope, key string, value any) error {
	if v == nil {
		return types.Errorf(types.ErrVariableNotFound, "%s variable %q is not defined", scope, key)
	}
	if v.Value != nil && value != nil {
		want, got := reflect.TypeOf(v.Value), reflect.TypeOf(value)
		if !got.AssignableTo(want) {
			return types.Errorf(types.ErrTypeMismatch, "%s variable %q holds %s, got %s", scope, key, want, got)
		}
	}
	v.Value = value
	b.logger.Debug("variable set", zap.String("scope", scope), zap.String("key", key))
	return nil
}

// ClearRuntimeVars drops every runtime variable. Globals and every slot are
// re-instantiated from templates on next access.
func (b *Blackboard) ClearRuntimeVars() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.runtime = nil
	b.runtimeReady = false
	b.generation++
}

// DeleteLocalVars drops the local runtime variables of s.
func (b *Blackboard) DeleteLocalVars(s Scope) {
	slot := slotOf(s)
	if slot == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	slot.vars = nil
	slot.ready = false
}

// HasLocalVars reports whether s currently holds instantiated locals.
func (b *Blackboard) HasLocalVars(s Scope) bool {
	slot := slotOf(s)
	if slot == nil {
		return false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slot.ready && slot.generation == b.generation
}

// GlobalSnapshot copies the runtime global values.
func (b *Blackboard) GlobalSnapshot() map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]any, len(b.globals))
	for _, v := range b.globalVars() {
		out[v.Key] = v.Value
	}
	return out
}

// GlobalType returns the type of a global template, or nil when the key is
// unknown or the template value is nil.
func (b *Blackboard) GlobalType(key string) reflect.Type {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, t := range b.globals {
		if t.Key == key && t.Value != nil {
			return reflect.TypeOf(t.Value)
		}
	}
	return nil
}

func slotOf(s Scope) *Slot {
	if s == nil {
		return nil
	}
	rv := reflect.ValueOf(s)
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return nil
	}
	return s.BlackboardSlot()
}

// GetGlobal returns a global value as T. The key is assumed to exist; a
// missing key or a value of another type yields the zero value.
func GetGlobal[T any](b *Blackboard, key string) T {
	v, _ := TryGetGlobal[T](b, key)
	return v
}

// TryGetGlobal returns a global value as T and whether it was found with
// that type.
func TryGetGlobal[T any](b *Blackboard, key string) (T, bool) {
	var zero T
	if b == nil {
		return zero, false
	}
	raw, ok := b.GlobalValue(key)
	if !ok {
		return zero, false
	}
	return as[T](raw)
}

// GetLocal returns a local value of s as T.
func GetLocal[T any](b *Blackboard, s Scope, key string) T {
	v, _ := TryGetLocal[T](b, s, key)
	return v
}

// TryGetLocal returns a local value of s as T and whether it was found.
func TryGetLocal[T any](b *Blackboard, s Scope, key string) (T, bool) {
	var zero T
	if b == nil {
		return zero, false
	}
	raw, ok := b.LocalValue(s, key)
	if !ok {
		return zero, false
	}
	return as[T](raw)
}

func as[T any](raw any) (T, bool) {
	var zero T
	if raw == nil {
		return zero, true
	}
	v, ok := raw.(T)
	if !ok {
		return zero, false
	}
	return v, true
}
