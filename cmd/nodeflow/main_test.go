package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"pgregory.net/rapid"

	"github.com/BaSui01/nodeflow/blackboard"
	"github.com/BaSui01/nodeflow/config"
	"github.com/BaSui01/nodeflow/graph"
	"github.com/BaSui01/nodeflow/history"
	"github.com/BaSui01/nodeflow/logic"
	"github.com/BaSui01/nodeflow/types"
)

// quietEnv keeps command output free of log lines.
func quietEnv(t *testing.T) {
	t.Setenv("NODEFLOW_LOG_LEVEL", "error")
	t.Setenv("NODEFLOW_LOG_OUTPUT_PATHS", "stderr")
}

// =============================================================================
// Square flow
// =============================================================================

func TestSquareFlow(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(rt *rapid.T) {
		in := rapid.Float64Range(-1e3, 1e3).Draw(rt, "input")

		board := blackboard.New()
		lg, err := buildSquareFlow(graph.WithName(demoGraphName), graph.WithBlackboard(board))
		require.NoError(rt, err)

		out, err := runSquare(context.Background(), lg, in)
		require.NoError(rt, err)
		assert.Equal(rt, in*in, out)
		assert.Equal(rt, in*in, blackboard.GetGlobal[float64](board, demoResultKey))
	})
}

func TestSquareFlow_KeepsConfiguredGlobals(t *testing.T) {
	t.Parallel()
	board := blackboard.New(blackboard.WithGlobals(
		blackboard.Var{Key: "label", Value: "kept"},
		blackboard.Var{Key: demoInputKey, Value: 0.0},
		blackboard.Var{Key: demoResultKey, Value: 0.0},
	))
	require.NoError(t, board.SetGlobalValue("label", "runtime"))

	lg, err := buildSquareFlow(graph.WithBlackboard(board))
	require.NoError(t, err)
	_, err = runSquare(context.Background(), lg, 2)
	require.NoError(t, err)

	assert.Equal(t, "runtime", blackboard.GetGlobal[string](board, "label"),
		"runtime values survive when the demo globals are configured")
}

func TestSquareFlow_WithoutBlackboardFails(t *testing.T) {
	t.Parallel()
	lg, err := buildSquareFlow()
	require.NoError(t, err)

	err = lg.Execute(context.Background())
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrMissingReference), err.Error())
}

// =============================================================================
// app wiring
// =============================================================================

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Log.Level = "error"
	return cfg
}

func TestApp_RecordsDemoRuns(t *testing.T) {
	t.Parallel()
	a, err := newApp(context.Background(), testConfig(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.close(context.Background()) })

	lg, err := a.newSquareFlow()
	require.NoError(t, err)
	out, err := runSquare(context.Background(), lg, 5)
	require.NoError(t, err)
	assert.Equal(t, 25.0, out)

	w := httptest.NewRecorder()
	a.handler("test").ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data []history.Run `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, demoGraphName, body.Data[0].Graph)
	assert.Equal(t, logic.StatusCompleted, body.Data[0].Status)
	assert.Equal(t, 2, body.Data[0].Executed, "set and print run; entry and exit are connectors")
}

func TestApp_MetricsEndpoint(t *testing.T) {
	t.Parallel()
	a, err := newApp(context.Background(), testConfig(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.close(context.Background()) })

	lg, err := a.newSquareFlow()
	require.NoError(t, err)
	_, err = runSquare(context.Background(), lg, 1)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	a.handler("test").ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "nodeflow_")
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestApp_SavePoolFlushesOnClose(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.History.SaveWorkers = 2
	a, err := newApp(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, a.saves)

	lg, err := a.newSquareFlow()
	require.NoError(t, err)
	for i := 1; i <= 3; i++ {
		_, err = runSquare(context.Background(), lg, float64(i))
		require.NoError(t, err)
	}

	w := httptest.NewRecorder()
	a.handler("test").ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(), `nodeflow_worker_queued{queue="history_save"}`)

	require.NoError(t, a.close(context.Background()))

	runs, err := a.runs.List(context.Background(), history.Filter{Graph: demoGraphName})
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestApp_UnknownHistoryStore(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.History.Store = "tape"
	_, err := newApp(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tape")
}

func TestApp_HistoryDisabled(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.History.Enabled = false
	cfg.Metrics.Enabled = false
	a, err := newApp(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.close(context.Background()) })

	assert.Nil(t, a.runs)
	assert.Nil(t, a.recorder)
	assert.Len(t, a.middleware(context.Background()), 6, "recovery, request id, headers, tracing, logging, rate limit")
}

// =============================================================================
// Commands
// =============================================================================

func TestRun_Demo(t *testing.T) {
	quietEnv(t)
	var out bytes.Buffer
	require.NoError(t, run([]string{"demo", "--input", "4"}, &out))
	assert.Equal(t, "square(4) = 16\n", out.String())
}

func TestRun_DemoThenHistory(t *testing.T) {
	quietEnv(t)
	t.Setenv("NODEFLOW_HISTORY_STORE", "database")
	t.Setenv("NODEFLOW_DATABASE_NAME", filepath.Join(t.TempDir(), "runs.db"))

	var out bytes.Buffer
	require.NoError(t, run([]string{"demo", "--input", "2"}, &out))
	require.NoError(t, run([]string{"demo", "--input", "3"}, &out))

	out.Reset()
	require.NoError(t, run([]string{"history", "--limit", "1"}, &out))
	assert.Contains(t, out.String(), "GRAPH")
	assert.Contains(t, out.String(), demoGraphName)
	assert.Contains(t, out.String(), "completed")
	assert.Contains(t, out.String(), "1 of 2 runs")
}

func TestRun_HistoryNeedsDatabase(t *testing.T) {
	quietEnv(t)
	err := run([]string{"history"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "history.store: database")
}

func TestRun_Migrate(t *testing.T) {
	quietEnv(t)
	t.Setenv("NODEFLOW_DATABASE_NAME", filepath.Join(t.TempDir(), "migrate.db"))

	var out bytes.Buffer
	require.NoError(t, run([]string{"migrate", "up"}, &out))
	out.Reset()
	require.NoError(t, run([]string{"migrate", "version"}, &out))
	assert.Contains(t, out.String(), "Current version: 2")
}

func TestRun_VersionAndHelp(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	require.NoError(t, run([]string{"version"}, &out))
	assert.Contains(t, out.String(), "NodeFlow "+Version)

	out.Reset()
	require.NoError(t, run([]string{"help"}, &out))
	assert.Contains(t, out.String(), "Commands:")
}

func TestRun_Errors(t *testing.T) {
	t.Parallel()
	assert.Error(t, run(nil, &bytes.Buffer{}))

	err := run([]string{"frobnicate"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frobnicate")
}

// =============================================================================
// Logger
// =============================================================================

func TestInitLogger_Levels(t *testing.T) {
	t.Parallel()
	tests := []struct {
		level string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"verbose", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		logger := initLogger(config.LogConfig{Level: tt.level, Format: "console", OutputPaths: []string{"stderr"}})
		assert.True(t, logger.Core().Enabled(tt.want), tt.level)
		if tt.want > zapcore.DebugLevel {
			assert.False(t, logger.Core().Enabled(tt.want-1), tt.level)
		}
	}
}
