package logic

import (
	"context"
	"time"
)

// Status is the outcome of a run.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusAborted   Status = "aborted"
	StatusFailed    Status = "failed"
)

// Run identifies one Execute call.
type Run struct {
	ID    string
	Graph string
	Start time.Time
}

// NodeEvent describes one node execution.
type NodeEvent struct {
	Node     Node
	Start    time.Time
	Duration time.Duration
	Err      error
}

// Result summarizes a finished run.
type Result struct {
	Status   Status
	Executed int
	End      time.Time
	Err      error
}

// Observer is notified about runs started by Graph.Execute. OnRunStart may
// return a derived context that is passed to the nodes and to the later
// callbacks of the same run.
type Observer interface {
	OnRunStart(ctx context.Context, run *Run) context.Context
	OnNodeExecuted(ctx context.Context, run *Run, ev NodeEvent)
	OnRunEnd(ctx context.Context, run *Run, res Result)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	RunStart     func(ctx context.Context, run *Run) context.Context
	NodeExecuted func(ctx context.Context, run *Run, ev NodeEvent)
	RunEnd       func(ctx context.Context, run *Run, res Result)
}

func (f ObserverFuncs) OnRunStart(ctx context.Context, run *Run) context.Context {
	if f.RunStart == nil {
		return ctx
	}
	return f.RunStart(ctx, run)
}

func (f ObserverFuncs) OnNodeExecuted(ctx context.Context, run *Run, ev NodeEvent) {
	if f.NodeExecuted != nil {
		f.NodeExecuted(ctx, run, ev)
	}
}

func (f ObserverFuncs) OnRunEnd(ctx context.Context, run *Run, res Result) {
	if f.RunEnd != nil {
		f.RunEnd(ctx, run, res)
	}
}
