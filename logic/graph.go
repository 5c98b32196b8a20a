package logic

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/nodeflow/graph"
	"github.com/BaSui01/nodeflow/internal/ctxkeys"
	"github.com/BaSui01/nodeflow/types"
)

// State is the execution state of a logic graph.
type State int

const (
	// Idle means no current node.
	Idle State = iota
	// Running means a current node is set and the abort flag is clear.
	Running
	// Aborting means the abort flag is set while a walk is in progress.
	Aborting
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Aborting:
		return "aborting"
	default:
		return "idle"
	}
}

// Kind is the graph kind of logic flows. Every instance holds exactly one
// Entry and one Exit.
var Kind = &graph.Kind{
	Name:     "logic",
	Required: []string{EntryType.Name, ExitType.Name},
	Host:     func(g *graph.Graph) any { return &Graph{Graph: g} },
}

// Graph is a graph whose logic nodes can be executed as a flow, starting
// at the entry point and following each node's Next. It is not safe for
// concurrent use.
type Graph struct {
	*graph.Graph

	current   Node
	aborting  bool
	running   bool
	run       *Run
	observers []Observer
}

// New creates a logic graph. Options are applied after the logic kind.
func New(opts ...graph.Option) *Graph {
	return From(graph.New(append([]graph.Option{graph.WithKind(Kind)}, opts...)...))
}

// From returns the logic graph hosted by g, or nil when g is not a logic
// graph.
func From(g *graph.Graph) *Graph {
	if g == nil {
		return nil
	}
	lg, _ := g.Host().(*Graph)
	return lg
}

// Observe registers an observer for runs started by Execute.
func (g *Graph) Observe(o Observer) {
	if o != nil {
		g.observers = append(g.observers, o)
	}
}

// Copy deep-copies the graph. Observers are not copied.
func (g *Graph) Copy() *Graph { return From(g.Graph.Copy()) }

// EntryPoint returns the graph's entry node.
func (g *Graph) EntryPoint() *Entry { return firstOf[*Entry](g.Graph) }

// ExitPoint returns the graph's exit node.
func (g *Graph) ExitPoint() *Exit { return firstOf[*Exit](g.Graph) }

func firstOf[T graph.Node](g *graph.Graph) T {
	var zero T
	for _, n := range g.OwnNodes() {
		if t, ok := n.(T); ok {
			return t
		}
	}
	return zero
}

// CurrentNode returns the node executed last in the walk in progress, or
// nil when idle.
func (g *Graph) CurrentNode() Node { return g.current }

func (g *Graph) IsAborting() bool { return g.aborting }

func (g *Graph) State() State {
	switch {
	case g.current == nil:
		return Idle
	case g.aborting:
		return Aborting
	default:
		return Running
	}
}

// Abort asks the walk in progress to stop after the current node. It has
// no effect when the graph is idle.
func (g *Graph) Abort() {
	if g.current != nil {
		g.aborting = true
	}
}

// Execute runs the flow from the entry point until Next resolves to nil
// or Abort is called. A node error or an evaluation cycle ends the run
// and is returned. The context is handed to every node; it is not
// checked between nodes.
func (g *Graph) Execute(ctx context.Context) error {
	if g.running {
		return types.NewError(types.ErrFlowBusy, "logic graph is already running")
	}
	entry := g.EntryPoint()
	if entry == nil {
		return types.NewError(types.ErrInvalidGraph, "logic graph has no entry point")
	}

	g.running = true
	g.aborting = false
	run := &Run{ID: uuid.NewString(), Graph: g.Name(), Start: time.Now()}
	ctx = ctxkeys.WithRunID(ctx, run.ID)
	ctx = ctxkeys.WithGraphName(ctx, run.Graph)
	for _, o := range g.observers {
		ctx = o.OnRunStart(ctx, run)
	}
	g.run = run

	logger := g.Logger().With(zap.String("run_id", run.ID))
	logger.Debug("run started", zap.String("graph", run.Graph))

	g.current = entry
	var (
		executed int
		err      error
		returned bool
	)
	// a panicking node still ends the run so the graph can execute again
	defer func() {
		if returned {
			g.finish(ctx, run, logger, executed, err)
			return
		}
		r := recover()
		g.finish(ctx, run, logger, executed,
			types.Errorf(types.ErrExecutionFailed, "run panicked: %v", r))
		panic(r)
	}()
	err = g.walk(ctx, &executed)
	returned = true
	return err
}

// finish resets the run state and reports the outcome to the observers.
func (g *Graph) finish(ctx context.Context, run *Run, logger *zap.Logger, executed int, err error) {
	g.current = nil
	res := Result{Executed: executed, End: time.Now(), Err: err}
	switch {
	case err != nil:
		res.Status = StatusFailed
		logger.Error("run failed", zap.Int("executed", executed), zap.Error(err))
	case g.aborting:
		res.Status = StatusAborted
		logger.Info("run aborted", zap.Int("executed", executed))
	default:
		res.Status = StatusCompleted
		logger.Debug("run completed", zap.Int("executed", executed),
			zap.Duration("duration", res.End.Sub(run.Start)))
	}
	for _, o := range g.observers {
		o.OnRunEnd(ctx, run, res)
	}
	g.run = nil
	g.running = false
}

func (g *Graph) walk(ctx context.Context, executed *int) error {
	for !g.aborting {
		next, err := graph.Evaluate(g.current.Next)
		if err != nil {
			return err
		}
		if next == nil {
			break
		}
		g.current = next
		*executed++
		if err := g.runNode(ctx, next); err != nil {
			return err
		}
	}
	return nil
}

// Step executes one node, starting at the entry point when idle, and
// returns it. It returns nil once the flow has terminated; the following
// call starts over. Observers are not notified.
func (g *Graph) Step(ctx context.Context) (Node, error) {
	if g.running {
		return nil, types.NewError(types.ErrFlowBusy, "logic graph is already running")
	}
	defer func() {
		if r := recover(); r != nil {
			g.current = nil
			panic(r)
		}
	}()
	if g.current == nil {
		entry := g.EntryPoint()
		if entry == nil {
			return nil, types.NewError(types.ErrInvalidGraph, "logic graph has no entry point")
		}
		g.current = entry
		g.aborting = false
	}
	if g.aborting {
		g.current = nil
		return nil, nil
	}
	next, err := graph.Evaluate(g.current.Next)
	if err != nil {
		g.current = nil
		return nil, err
	}
	g.current = next
	if next == nil {
		return nil, nil
	}
	if err := g.runNode(ctx, next); err != nil {
		g.current = nil
		return next, err
	}
	return next, nil
}

// runNode executes n and reports it to the observers of the run in
// progress. Loop nodes use it for their body chains.
func (g *Graph) runNode(ctx context.Context, n Node) error {
	start := time.Now()
	err := graph.Guard(func() error { return n.Execute(ctx) })
	if err != nil {
		err = nodeError(n, err)
	}
	if g.run != nil {
		ev := NodeEvent{Node: n, Start: start, Duration: time.Since(start), Err: err}
		for _, o := range g.observers {
			o.OnNodeExecuted(ctx, g.run, ev)
		}
	}
	return err
}

func nodeError(n Node, err error) error {
	b := n.Base()
	if e, ok := err.(*types.Error); ok {
		if e.Node == "" {
			e.Node = b.Name()
		}
		return e
	}
	return types.Errorf(types.ErrExecutionFailed, "%s failed", TypeName(n)).
		WithNode(b.Name()).WithCause(err)
}

// TypeName returns the registered type name of n, or "" when detached.
func TypeName(n graph.Node) string {
	if t := n.Base().Type(); t != nil {
		return t.Name
	}
	return ""
}
