package history

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/nodeflow/internal/pool"
	"github.com/BaSui01/nodeflow/logic"
)

// Recorder is a logic.Observer that assembles a Run per Execute and saves
// it to a Store when the run ends. Save failures are logged.
type Recorder struct {
	store  Store
	logger *zap.Logger
	saves  *pool.Pool

	mu       sync.Mutex
	inflight map[string]*Run
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithSavePool hands saves to p. A save that p rejects runs inline. The
// caller closes p, which flushes the queued saves.
func WithSavePool(p *pool.Pool) RecorderOption {
	return func(r *Recorder) { r.saves = p }
}

func NewRecorder(store Store, logger *zap.Logger, opts ...RecorderOption) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Recorder{
		store:    store,
		logger:   logger.With(zap.String("component", "history")),
		inflight: make(map[string]*Run),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Recorder) OnRunStart(ctx context.Context, run *logic.Run) context.Context {
	r.mu.Lock()
	r.inflight[run.ID] = &Run{
		ID:        run.ID,
		Graph:     run.Graph,
		StartTime: run.Start,
	}
	r.mu.Unlock()
	return ctx
}

func (r *Recorder) OnNodeExecuted(_ context.Context, run *logic.Run, ev logic.NodeEvent) {
	rec := NodeRecord{
		RunID:     run.ID,
		Name:      ev.Node.Base().Name(),
		NodeID:    string(ev.Node.Base().ID()),
		Type:      logic.TypeName(ev.Node),
		StartTime: ev.Start,
		Duration:  ev.Duration,
	}
	if ev.Err != nil {
		rec.Error = ev.Err.Error()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.inflight[run.ID]
	if !ok {
		return
	}
	rec.Seq = len(cur.Nodes)
	cur.Nodes = append(cur.Nodes, rec)
}

func (r *Recorder) OnRunEnd(ctx context.Context, run *logic.Run, res logic.Result) {
	r.mu.Lock()
	cur, ok := r.inflight[run.ID]
	delete(r.inflight, run.ID)
	r.mu.Unlock()
	if !ok {
		return
	}

	cur.Status = res.Status
	cur.EndTime = res.End
	cur.Executed = res.Executed
	if res.Err != nil {
		cur.Error = res.Err.Error()
	}

	// the run's own context may already be cancelled
	saveCtx := context.WithoutCancel(ctx)
	if r.saves != nil {
		err := r.saves.Submit(saveCtx, func(ctx context.Context) error { return r.save(ctx, cur) })
		if err == nil {
			return
		}
		r.logger.Warn("save pool rejected run, saving inline",
			zap.String("run_id", run.ID),
			zap.Error(err))
	}
	_ = r.save(saveCtx, cur)
}

func (r *Recorder) save(ctx context.Context, run *Run) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.store.Save(ctx, run); err != nil {
		r.logger.Error("failed to save run",
			zap.String("run_id", run.ID),
			zap.String("graph", run.Graph),
			zap.Error(err))
		return err
	}
	r.logger.Debug("run recorded",
		zap.String("run_id", run.ID),
		zap.String("status", string(run.Status)),
		zap.Int("nodes", len(run.Nodes)))
	return nil
}
