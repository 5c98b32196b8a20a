package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/BaSui01/nodeflow/internal/ctxkeys"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
}

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

// =============================================================================
// Chain / headers
// =============================================================================

func TestChain_Order(t *testing.T) {
	t.Parallel()
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	serve(Chain(okHandler(), mark("a"), mark("b"), mark("c")), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestSecurityHeaders_ChainedWithRequestID(t *testing.T) {
	t.Parallel()
	w := serve(Chain(okHandler(), SecurityHeaders(), RequestID()), httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "default-src 'self'", w.Header().Get("Content-Security-Policy"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRequestID(t *testing.T) {
	t.Parallel()
	var seen string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ctxkeys.RequestID(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		w := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
		id := w.Header().Get("X-Request-ID")
		assert.Regexp(t, `^req-[0-9a-f]{32}$`, id)
		assert.Equal(t, id, seen)
	})

	t.Run("preserved", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Request-ID", "client-1")
		w := serve(h, r)
		assert.Equal(t, "client-1", w.Header().Get("X-Request-ID"))
		assert.Equal(t, "client-1", seen)
	})
}

// =============================================================================
// Recovery / logging
// =============================================================================

func TestRecovery(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zap.ErrorLevel)
	h := Recovery(zap.New(core))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := serve(h, httptest.NewRequest(http.MethodGet, "/runs", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"INTERNAL"`)
	require.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
}

func TestRequestLogger(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zap.InfoLevel)
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := Chain(inner, RequestID(), RequestLogger(zap.New(core)))

	r := httptest.NewRequest(http.MethodPost, "/runs", nil)
	r.Header.Set("X-Request-ID", "abc")
	serve(h, r)

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "POST", fields["method"])
	assert.Equal(t, int64(http.StatusTeapot), fields["status"])
	assert.Equal(t, "abc", fields["request_id"])
}

// =============================================================================
// Metrics
// =============================================================================

type recordedRequest struct {
	method, path string
	status       int
}

type fakeHTTPMetrics struct {
	mu   sync.Mutex
	reqs []recordedRequest
}

func (f *fakeHTTPMetrics) RecordHTTPRequest(method, path string, status int, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, recordedRequest{method, path, status})
}

func TestMetrics_NormalizesPath(t *testing.T) {
	t.Parallel()
	m := &fakeHTTPMetrics{}
	h := Metrics(m)(http.NotFoundHandler())

	serve(h, httptest.NewRequest(http.MethodGet, "/runs/6f1c2a9e-0b7d-4c1e-9a55-3f2d8e7b1c04", nil))

	require.Len(t, m.reqs, 1)
	assert.Equal(t, recordedRequest{"GET", "/runs/:id", http.StatusNotFound}, m.reqs[0])
}

func TestNormalizePath(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, want string
	}{
		{"/healthz", "/healthz"},
		{"/runs", "/runs"},
		{"/runs/6f1c2a9e-0b7d-4c1e-9a55-3f2d8e7b1c04", "/runs/:id"},
		{"/runs/12345", "/runs/:id"},
		{"/node-types/math.sum_float", "/node-types/math.sum_float"},
		{"/a/deadbeefcafe/b", "/a/:id/b"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizePath(tt.in), tt.in)
	}
}

// =============================================================================
// Tracing
// =============================================================================

func TestTracing_RecordsServerSpan(t *testing.T) {
	t.Parallel()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	var traceID string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID, _ = ctxkeys.TraceID(r.Context())
		w.WriteHeader(http.StatusBadGateway)
	})
	serve(Tracing(tp)(inner), httptest.NewRequest(http.MethodGet, "/runs/12345", nil))

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "GET /runs/:id", span.Name)
	assert.Equal(t, span.SpanContext.TraceID().String(), traceID)
	assert.Contains(t, span.Attributes, semconv.HTTPResponseStatusCode(http.StatusBadGateway))
	assert.Equal(t, "Error", span.Status.Code.String())
}

// =============================================================================
// Rate limiting
// =============================================================================

func TestRateLimiter_PerIP(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h := RateLimiter(ctx, 0.001, 2, zap.NewNop())(okHandler())

	req := func(addr string) int {
		r := httptest.NewRequest(http.MethodGet, "/runs", nil)
		r.RemoteAddr = addr
		return serve(h, r).Code
	}

	assert.Equal(t, http.StatusOK, req("10.0.0.1:1000"))
	assert.Equal(t, http.StatusOK, req("10.0.0.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, req("10.0.0.1:1002"))
	assert.Equal(t, http.StatusOK, req("10.0.0.2:1000"), "other clients keep their own bucket")
}

func TestIPLimiter_SweepsIdleBuckets(t *testing.T) {
	t.Parallel()
	l := &ipLimiter{limit: 1000, burst: 1, buckets: map[string]*bucket{}}
	now := time.Now()
	assert.True(t, l.allow("10.0.0.1", now.Add(-time.Hour)))
	assert.True(t, l.allow("10.0.0.2", now))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go l.sweep(ctx, 5*time.Millisecond, time.Minute)

	assert.Eventually(t, func() bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		_, stale := l.buckets["10.0.0.1"]
		_, fresh := l.buckets["10.0.0.2"]
		return !stale && fresh
	}, time.Second, 5*time.Millisecond)
}

func TestClientIP(t *testing.T) {
	t.Parallel()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.7:5555"
	assert.Equal(t, "192.0.2.7", clientIP(r))
	r.RemoteAddr = "unix"
	assert.Equal(t, "unix", clientIP(r))
}

// =============================================================================
// JWT
// =============================================================================

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestJWTAuth(t *testing.T) {
	t.Parallel()
	const secret = "test-secret"
	h := JWTAuth(secret, "nodeflow", []string{"/healthz"}, zap.NewNop())(okHandler())

	valid := signToken(t, secret, jwt.MapClaims{
		"iss": "nodeflow",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	tests := []struct {
		name   string
		path   string
		auth   string
		status int
	}{
		{"skip path", "/healthz", "", http.StatusOK},
		{"missing header", "/runs", "", http.StatusUnauthorized},
		{"not bearer", "/runs", "Basic abc", http.StatusUnauthorized},
		{"valid", "/runs", "Bearer " + valid, http.StatusOK},
		{"wrong secret", "/runs", "Bearer " + signToken(t, "other", jwt.MapClaims{"iss": "nodeflow"}), http.StatusUnauthorized},
		{"wrong issuer", "/runs", "Bearer " + signToken(t, secret, jwt.MapClaims{"iss": "someone"}), http.StatusUnauthorized},
		{"expired", "/runs", "Bearer " + signToken(t, secret, jwt.MapClaims{
			"iss": "nodeflow",
			"exp": time.Now().Add(-time.Hour).Unix(),
		}), http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.auth != "" {
				r.Header.Set("Authorization", tt.auth)
			}
			assert.Equal(t, tt.status, serve(h, r).Code)
		})
	}
}
