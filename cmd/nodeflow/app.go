package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/BaSui01/nodeflow/blackboard"
	"github.com/BaSui01/nodeflow/config"
	"github.com/BaSui01/nodeflow/graph"
	"github.com/BaSui01/nodeflow/history"
	"github.com/BaSui01/nodeflow/internal/cache"
	"github.com/BaSui01/nodeflow/internal/database"
	"github.com/BaSui01/nodeflow/internal/metrics"
	"github.com/BaSui01/nodeflow/internal/migration"
	"github.com/BaSui01/nodeflow/internal/pool"
	"github.com/BaSui01/nodeflow/internal/server"
	"github.com/BaSui01/nodeflow/internal/telemetry"
	"github.com/BaSui01/nodeflow/logic"
	"github.com/BaSui01/nodeflow/types"
)

// app holds the process-wide services built from the configuration.
// Optional services are nil when disabled.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	registry  *prometheus.Registry
	metrics   *metrics.Collector
	otel      *telemetry.Providers
	cache     *cache.Manager
	pool      *database.PoolManager
	runs      history.Store
	recorder  *history.Recorder
	saves     *pool.Pool
	board     *blackboard.Blackboard
	snapshots *blackboard.RedisStore
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	if err := a.init(ctx); err != nil {
		_ = a.close(context.WithoutCancel(ctx))
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context) (err error) {
	cfg, logger := a.cfg, a.logger

	if cfg.Metrics.Enabled {
		a.registry = prometheus.NewRegistry()
		a.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		a.metrics = metrics.NewCollector(cfg.Metrics.Namespace, a.registry, logger)
	}

	if a.otel, err = telemetry.Init(cfg.Telemetry, logger, telemetry.WithServiceVersion(Version)); err != nil {
		logger.Warn("telemetry unavailable, continuing without export", zap.Error(err))
		a.otel, err = &telemetry.Providers{}, nil
	}

	if cfg.Redis.Enabled {
		if a.cache, err = cache.NewManager(cfg.Redis, 30*time.Second, logger); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}

	var boardOpts []blackboard.Option
	boardOpts = append(boardOpts, blackboard.WithLogger(logger))
	if a.metrics != nil {
		boardOpts = append(boardOpts, blackboard.WithMetrics(a.metrics))
	}
	if a.board, err = blackboard.FromConfig(cfg.Blackboard, boardOpts...); err != nil {
		return fmt.Errorf("blackboard: %w", err)
	}
	if a.cache != nil && cfg.Blackboard.Snapshot != "" {
		a.snapshots = blackboard.NewRedisStore(a.cache.Client(), cfg.Redis.KeyPrefix, cfg.Blackboard.SnapshotTTL, logger)
		a.restoreSnapshot(ctx)
	}

	if cfg.History.Enabled {
		if err = a.openHistory(ctx); err != nil {
			return err
		}
		var opts []history.RecorderOption
		if cfg.History.SaveWorkers > 0 {
			a.saves = pool.New(pool.Config{
				Workers:   cfg.History.SaveWorkers,
				QueueSize: cfg.History.SaveQueue,
				OnPanic: func(r any) {
					logger.Error("history save panicked", zap.Any("panic", r))
				},
			})
			if a.metrics != nil {
				a.metrics.WatchQueue("history_save", a.saves.Busy, a.saves.Queued)
			}
			opts = append(opts, history.WithSavePool(a.saves))
		}
		a.recorder = history.NewRecorder(a.runs, logger, opts...)
	}
	return nil
}

func (a *app) openHistory(ctx context.Context) error {
	var store history.Store
	switch a.cfg.History.Store {
	case "", "memory":
		store = history.NewMemoryStore(a.cfg.History.MaxRuns)
	case "database":
		db, err := openMigratedPool(ctx, a.cfg.Database, a.logger)
		if err != nil {
			return err
		}
		a.pool = db
		store = history.NewGormStore(db, a.logger)
	default:
		return fmt.Errorf("unknown history store %q", a.cfg.History.Store)
	}

	if a.cache != nil {
		var cm history.CacheMetrics
		if a.metrics != nil {
			cm = a.metrics
		}
		store = history.NewCachedStore(store, a.cache, a.cfg.Redis.CacheTTL, cm, a.logger)
	}
	a.runs = store
	return nil
}

// openMigratedPool applies pending migrations before opening the pool.
func openMigratedPool(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*database.PoolManager, error) {
	m, err := migration.NewMigratorFromConfig(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}
	upErr := m.Up(ctx)
	if err := errors.Join(upErr, m.Close()); err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return database.Open(cfg, logger)
}

func (a *app) restoreSnapshot(ctx context.Context) {
	name := a.cfg.Blackboard.Snapshot
	err := a.snapshots.Load(ctx, name, a.board)
	switch {
	case err == nil:
		a.logger.Info("blackboard snapshot restored", zap.String("snapshot", name))
	case types.IsErrorCode(err, types.ErrNotFound):
		a.logger.Info("no blackboard snapshot yet", zap.String("snapshot", name))
	default:
		a.logger.Warn("blackboard snapshot not restored", zap.String("snapshot", name), zap.Error(err))
	}
}

// graphOptions wires a new graph to the shared blackboard, logger and
// metrics.
func (a *app) graphOptions(name string) []graph.Option {
	opts := []graph.Option{
		graph.WithName(name),
		graph.WithLogger(a.logger),
		graph.WithBlackboard(a.board),
		graph.WithMaxEvalDepth(a.cfg.Engine.MaxEvalDepth),
	}
	if a.metrics != nil {
		opts = append(opts, graph.WithMetrics(a.metrics))
	}
	return opts
}

// observe registers the run observers on lg.
func (a *app) observe(lg *logic.Graph) {
	if a.metrics != nil {
		lg.Observe(a.metrics)
	}
	lg.Observe(telemetry.NewFlowTracer(a.otel.TracerProvider()))
	if a.recorder != nil {
		lg.Observe(a.recorder)
	}
}

// reload applies a changed configuration. Only the blackboard templates
// are hot-reloadable; everything else needs a restart.
func (a *app) reload(cfg *config.Config) {
	if err := a.board.Reload(cfg.Blackboard); err != nil {
		a.logger.Error("blackboard reload failed", zap.Error(err))
	}
}

// handler builds the HTTP API with its middleware stack.
func (a *app) handler(version string) *server.Handler {
	opts := server.Options{
		Runs:        a.runs,
		MetricsPath: a.cfg.Metrics.Path,
		Version:     version,
		Logger:      a.logger,
	}
	if a.registry != nil {
		opts.Gatherer = a.registry
	}
	h := server.NewHandler(opts)
	if a.pool != nil {
		h.RegisterCheck(server.NewPingCheck("database", a.pool.Ping))
	}
	if a.cache != nil {
		h.RegisterCheck(server.NewPingCheck("redis", a.cache.Ping))
	}
	return h
}

func (a *app) middleware(ctx context.Context) []server.Middleware {
	sc := a.cfg.Server
	mws := []server.Middleware{
		server.Recovery(a.logger),
		server.RequestID(),
		server.SecurityHeaders(),
		server.Tracing(a.otel.TracerProvider()),
		server.RequestLogger(a.logger),
	}
	if a.metrics != nil {
		mws = append(mws, server.Metrics(a.metrics))
	}
	if sc.RateLimitRPS > 0 {
		mws = append(mws, server.RateLimiter(ctx, sc.RateLimitRPS, sc.RateLimitBurst, a.logger))
	}
	if sc.JWTSecret != "" {
		mws = append(mws, server.JWTAuth(sc.JWTSecret, sc.JWTIssuer, []string{"/healthz", a.cfg.Metrics.Path}, a.logger))
	}
	return mws
}

// close saves the blackboard snapshot and releases every service.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.snapshots != nil && a.board != nil {
		saveCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := a.snapshots.Save(saveCtx, a.cfg.Blackboard.Snapshot, a.board); err != nil {
			errs = append(errs, err)
		}
		cancel()
	}
	// flush queued history saves before the database goes away
	if a.saves != nil {
		a.saves.Close()
		stats := a.saves.Stats()
		a.logger.Debug("history save pool closed",
			zap.Int64("completed", stats.Completed),
			zap.Int64("failed", stats.Failed),
			zap.Int64("rejected", stats.Rejected))
	}
	if a.pool != nil {
		errs = append(errs, a.pool.Close())
	}
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if a.otel != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		errs = append(errs, a.otel.Shutdown(shutdownCtx))
		cancel()
	}
	return errors.Join(errs...)
}
