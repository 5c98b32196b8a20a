package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/nodeflow/graph"
	"github.com/BaSui01/nodeflow/history"
	"github.com/BaSui01/nodeflow/internal/ctxkeys"
	"github.com/BaSui01/nodeflow/logic"
	"github.com/BaSui01/nodeflow/types"
)

// =============================================================================
// Response envelope
// =============================================================================

// Response wraps every JSON body served by the API.
type Response struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
	RequestID string     `json:"request_id,omitempty"`
}

type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeSuccess(w http.ResponseWriter, r *http.Request, data any) {
	id, _ := ctxkeys.RequestID(r.Context())
	writeJSON(w, http.StatusOK, Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: id,
	})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Response{
		Error:     &ErrorInfo{Code: code, Message: message},
		Timestamp: time.Now(),
	})
}

// writeTypedError maps a types.Error code onto an HTTP status.
func (h *Handler) writeTypedError(w http.ResponseWriter, err error) {
	code := types.GetErrorCode(err)
	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		h.logger.Error("API error", zap.String("code", string(code)), zap.Error(err))
	}
	if code == "" {
		code = "INTERNAL"
	}
	writeError(w, status, string(code), err.Error())
}

func statusFor(code types.ErrorCode) int {
	switch code {
	case types.ErrNotFound, types.ErrNodeNotFound, types.ErrPortNotFound,
		types.ErrPointNotFound, types.ErrVariableNotFound:
		return http.StatusNotFound
	case types.ErrInvalidArgs, types.ErrInvalidGraph, types.ErrUnknownNodeType,
		types.ErrTypeMismatch:
		return http.StatusBadRequest
	case types.ErrFlowBusy:
		return http.StatusConflict
	case types.ErrStorage:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// =============================================================================
// Health checks
// =============================================================================

// HealthCheck is one dependency probed by /healthz.
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) error
}

// PingCheck adapts a ping function, such as a pool or cache Ping.
type PingCheck struct {
	name string
	ping func(ctx context.Context) error
}

func NewPingCheck(name string, ping func(ctx context.Context) error) *PingCheck {
	return &PingCheck{name: name, ping: ping}
}

func (c *PingCheck) Name() string                    { return c.name }
func (c *PingCheck) Check(ctx context.Context) error { return c.ping(ctx) }

// HealthStatus is the /healthz body.
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// =============================================================================
// Handler
// =============================================================================

// Options configures the API handler. Runs and Gatherer may be nil, in
// which case their routes are not mounted.
type Options struct {
	Runs        history.Store
	Gatherer    prometheus.Gatherer
	MetricsPath string
	Version     string
	Logger      *zap.Logger
}

// Handler serves the read-only inspection API: health, recorded runs and
// the node type catalog.
type Handler struct {
	runs    history.Store
	version string
	logger  *zap.Logger

	mu     sync.RWMutex
	checks []HealthCheck

	mux *http.ServeMux
}

func NewHandler(opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	h := &Handler{
		runs:    opts.Runs,
		version: opts.Version,
		logger:  opts.Logger.With(zap.String("component", "api")),
		mux:     http.NewServeMux(),
	}

	h.mux.HandleFunc("GET /healthz", h.handleHealthz)
	h.mux.HandleFunc("GET /node-types", h.handleNodeTypes)
	h.mux.HandleFunc("GET /node-types/{name}", h.handleNodeType)
	if h.runs != nil {
		h.mux.HandleFunc("GET /runs", h.handleListRuns)
		h.mux.HandleFunc("GET /runs/{id}", h.handleGetRun)
	}
	if opts.Gatherer != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		h.mux.Handle("GET "+path, promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	return h
}

// RegisterCheck adds a dependency to /healthz.
func (h *Handler) RegisterCheck(check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, check)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	h.mu.RLock()
	checks := append([]HealthCheck(nil), h.checks...)
	h.mu.RUnlock()

	status := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   h.version,
		Checks:    make(map[string]CheckResult, len(checks)),
	}

	healthy := true
	for _, check := range checks {
		start := time.Now()
		err := check.Check(ctx)
		latency := time.Since(start)

		result := CheckResult{Status: "pass", Latency: latency.String()}
		if err != nil {
			result.Status = "fail"
			result.Message = err.Error()
			healthy = false
			h.logger.Warn("health check failed",
				zap.String("check", check.Name()),
				zap.Error(err),
				zap.Duration("latency", latency))
		}
		status.Checks[check.Name()] = result
	}

	if !healthy {
		status.Status = "unhealthy"
		writeJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// =============================================================================
// Runs
// =============================================================================

// handleListRuns accepts graph, status, from, to (RFC 3339) and limit.
func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		h.writeTypedError(w, err)
		return
	}
	runs, err := h.runs.List(r.Context(), f)
	if err != nil {
		h.writeTypedError(w, err)
		return
	}
	if runs == nil {
		runs = []*history.Run{}
	}
	writeSuccess(w, r, runs)
}

func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeTypedError(w, err)
		return
	}
	writeSuccess(w, r, run)
}

func parseFilter(r *http.Request) (history.Filter, error) {
	q := r.URL.Query()
	f := history.Filter{
		Graph:  q.Get("graph"),
		Status: logic.Status(q.Get("status")),
	}
	switch f.Status {
	case "", logic.StatusCompleted, logic.StatusAborted, logic.StatusFailed:
	default:
		return f, types.Errorf(types.ErrInvalidArgs, "unknown status %q", f.Status)
	}

	var err error
	if v := q.Get("from"); v != "" {
		if f.From, err = time.Parse(time.RFC3339, v); err != nil {
			return f, types.Errorf(types.ErrInvalidArgs, "invalid from %q", v).WithCause(err)
		}
	}
	if v := q.Get("to"); v != "" {
		if f.To, err = time.Parse(time.RFC3339, v); err != nil {
			return f, types.Errorf(types.ErrInvalidArgs, "invalid to %q", v).WithCause(err)
		}
	}
	if v := q.Get("limit"); v != "" {
		if f.Limit, err = strconv.Atoi(v); err != nil || f.Limit < 0 {
			return f, types.Errorf(types.ErrInvalidArgs, "invalid limit %q", v)
		}
	}
	return f, nil
}

// =============================================================================
// Node types
// =============================================================================

// NodeTypeInfo is the catalog entry for a registered node type.
type NodeTypeInfo struct {
	Name        string     `json:"name"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	MaxPerGraph int        `json:"max_per_graph,omitempty"`
	Ports       []PortInfo `json:"ports"`
}

type PortInfo struct {
	Name      string `json:"name"`
	Direction string `json:"direction"`
	ValueType string `json:"value_type,omitempty"`
}

func describeType(nt *graph.NodeType) NodeTypeInfo {
	desc := nt.Descriptor()
	info := NodeTypeInfo{
		Name:        nt.Name,
		Title:       nt.DisplayTitle(),
		Description: nt.Description,
		MaxPerGraph: nt.MaxPerGraph,
		Ports:       make([]PortInfo, 0, len(desc.Ports)),
	}
	for _, p := range desc.Ports {
		pi := PortInfo{Name: p.Name, Direction: p.Direction.String()}
		if p.ValueType != nil {
			pi.ValueType = p.ValueType.String()
		}
		info.Ports = append(info.Ports, pi)
	}
	return info
}

func (h *Handler) handleNodeTypes(w http.ResponseWriter, r *http.Request) {
	all := graph.Types()
	out := make([]NodeTypeInfo, 0, len(all))
	for _, nt := range all {
		out = append(out, describeType(nt))
	}
	writeSuccess(w, r, out)
}

func (h *Handler) handleNodeType(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	nt, ok := graph.LookupType(name)
	if !ok {
		h.writeTypedError(w, types.Errorf(types.ErrNotFound, "node type %q is not registered", name))
		return
	}
	writeSuccess(w, r, describeType(nt))
}
