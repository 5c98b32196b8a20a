package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/BaSui01/nodeflow/logic"
)

// =============================================================================
// Collector
// =============================================================================

// Collector exports flow, graph, blackboard and HTTP metrics. It satisfies
// graph.Metrics, blackboard.Metrics and logic.Observer, so one instance can
// be attached to every layer.
type Collector struct {
	// flow runs
	runsTotal     *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	activeRuns    prometheus.Gauge
	nodesExecuted *prometheus.CounterVec
	nodeDuration  *prometheus.HistogramVec

	// graph structure
	connectionsRejected *prometheus.CounterVec
	nodesAdded          *prometheus.CounterVec
	nodesRemoved        *prometheus.CounterVec

	// blackboard
	blackboardAccess *prometheus.CounterVec

	// run cache
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	// HTTP
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	namespace string
	factory   promauto.Factory

	logger *zap.Logger
}

// NewCollector registers the metrics with reg, or with the default
// registerer when reg is nil.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)
	c := &Collector{
		namespace: namespace,
		factory:   factory,
		logger:    logger.With(zap.String("component", "metrics")),
	}

	c.runsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flow_runs_total",
			Help:      "Total number of logic flow runs by outcome",
		},
		[]string{"graph", "status"},
	)

	c.runDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flow_run_duration_seconds",
			Help:      "Logic flow run duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
		[]string{"graph"},
	)

	c.activeRuns = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "flow_active_runs",
			Help:      "Number of logic flow runs in progress",
		},
	)

	c.nodesExecuted = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flow_nodes_executed_total",
			Help:      "Total number of executed logic nodes",
		},
		[]string{"node_type", "result"},
	)

	c.nodeDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flow_node_duration_seconds",
			Help:      "Logic node execution duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		},
		[]string{"node_type"},
	)

	c.connectionsRejected = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graph_connections_rejected_total",
			Help:      "Total number of refused port connections by reason",
		},
		[]string{"reason"},
	)

	c.nodesAdded = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graph_nodes_added_total",
			Help:      "Total number of nodes added to graphs",
		},
		[]string{"node_type"},
	)

	c.nodesRemoved = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graph_nodes_removed_total",
			Help:      "Total number of nodes removed from graphs",
		},
		[]string{"node_type"},
	)

	c.blackboardAccess = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blackboard_access_total",
			Help:      "Total number of blackboard reads and writes",
		},
		[]string{"scope", "op", "result"},
	)

	c.cacheHits = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	c.cacheMisses = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// Flow runs (logic.Observer)
// =============================================================================

func (c *Collector) OnRunStart(ctx context.Context, run *logic.Run) context.Context {
	c.activeRuns.Inc()
	return ctx
}

func (c *Collector) OnNodeExecuted(_ context.Context, _ *logic.Run, ev logic.NodeEvent) {
	typ := logic.TypeName(ev.Node)
	result := "ok"
	if ev.Err != nil {
		result = "error"
	}
	c.nodesExecuted.WithLabelValues(typ, result).Inc()
	c.nodeDuration.WithLabelValues(typ).Observe(ev.Duration.Seconds())
}

func (c *Collector) OnRunEnd(_ context.Context, run *logic.Run, res logic.Result) {
	c.activeRuns.Dec()
	c.runsTotal.WithLabelValues(run.Graph, string(res.Status)).Inc()
	c.runDuration.WithLabelValues(run.Graph).Observe(res.End.Sub(run.Start).Seconds())
}

// =============================================================================
// Graph structure (graph.Metrics)
// =============================================================================

func (c *Collector) ConnectionRejected(reason string) {
	c.connectionsRejected.WithLabelValues(reason).Inc()
}

func (c *Collector) NodeAdded(nodeType string) {
	c.nodesAdded.WithLabelValues(nodeType).Inc()
}

func (c *Collector) NodeRemoved(nodeType string) {
	c.nodesRemoved.WithLabelValues(nodeType).Inc()
}

// =============================================================================
// Blackboard (blackboard.Metrics)
// =============================================================================

func (c *Collector) BlackboardAccess(scope, op string, found bool) {
	result := "hit"
	if !found {
		result = "miss"
	}
	c.blackboardAccess.WithLabelValues(scope, op, result).Inc()
}

// =============================================================================
// Cache
// =============================================================================

func (c *Collector) RecordCacheHit(cacheType string) {
	c.cacheHits.WithLabelValues(cacheType).Inc()
}

func (c *Collector) RecordCacheMiss(cacheType string) {
	c.cacheMisses.WithLabelValues(cacheType).Inc()
}

// =============================================================================
// Worker queues
// =============================================================================

// WatchQueue exports the busy workers and queued tasks of a named worker
// queue. The functions are sampled on every scrape.
func (c *Collector) WatchQueue(name string, busy, queued func() int) {
	labels := prometheus.Labels{"queue": name}
	c.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   c.namespace,
		Subsystem:   "worker",
		Name:        "busy",
		Help:        "Workers currently running a task",
		ConstLabels: labels,
	}, func() float64 { return float64(busy()) })
	c.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   c.namespace,
		Subsystem:   "worker",
		Name:        "queued",
		Help:        "Tasks waiting for a worker",
		ConstLabels: labels,
	}, func() float64 { return float64(queued()) })
	c.logger.Debug("watching worker queue", zap.String("queue", name))
}

// =============================================================================
// HTTP
// =============================================================================

func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// statusCode buckets an HTTP status into its class.
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return strconv.Itoa(code)
	}
}
