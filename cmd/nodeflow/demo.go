package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/nodeflow/blackboard"
	"github.com/BaSui01/nodeflow/graph"
	"github.com/BaSui01/nodeflow/logic"
	"github.com/BaSui01/nodeflow/nodes"
)

const (
	demoGraphName = "square"
	demoInputKey  = "input"
	demoResultKey = "result"
)

// buildSquareFlow wires
//
//	Entry -> SetGlobal(result = Square(GetGlobal(input))) -> Print -> Exit
//
// The board must hold float globals named input and result; see
// ensureDemoGlobals.
func buildSquareFlow(opts ...graph.Option) (*logic.Graph, error) {
	lg := logic.New(opts...)

	get, err := graph.Add[*nodes.GetGlobalValue[float64]](lg.Graph)
	if err != nil {
		return nil, err
	}
	get.Key.SetValue(demoInputKey)

	sq, err := graph.Add[*nodes.Square](lg.Graph)
	if err != nil {
		return nil, err
	}
	set, err := graph.Add[*logic.SetGlobalValue[float64]](lg.Graph)
	if err != nil {
		return nil, err
	}
	set.Key.SetValue(demoResultKey)

	printer, err := graph.Add[*logic.Print](lg.Graph)
	if err != nil {
		return nil, err
	}

	links := []bool{
		sq.In.Connect(get.Value),
		set.Set.Connect(sq.Out),
		printer.Value.Connect(set.Value),
		logic.Link(lg.EntryPoint(), set),
		logic.Link(set, printer),
		logic.Link(printer, lg.ExitPoint()),
	}
	for i, ok := range links {
		if !ok {
			return nil, fmt.Errorf("demo flow: connection %d rejected", i)
		}
	}
	return lg, nil
}

// ensureDemoGlobals declares the demo variables when the configuration
// does not, then sets input.
func ensureDemoGlobals(board *blackboard.Blackboard, input float64) error {
	added := false
	for _, key := range []string{demoInputKey, demoResultKey} {
		if board.GlobalType(key) == nil {
			board.AddGlobal(key, 0.0)
			added = true
		}
	}
	if added {
		board.ClearRuntimeVars()
	}
	return board.SetGlobalValue(demoInputKey, input)
}

func (a *app) newSquareFlow() (*logic.Graph, error) {
	lg, err := buildSquareFlow(a.graphOptions(demoGraphName)...)
	if err != nil {
		return nil, err
	}
	a.observe(lg)
	return lg, nil
}

// runSquare executes lg once and returns the result variable.
func runSquare(ctx context.Context, lg *logic.Graph, input float64) (float64, error) {
	board := lg.Blackboard()
	if err := ensureDemoGlobals(board, input); err != nil {
		return 0, err
	}
	if err := lg.Execute(ctx); err != nil {
		return 0, err
	}
	return blackboard.GetGlobal[float64](board, demoResultKey), nil
}

// runDemoLoop executes the square flow every interval with an increasing
// input until ctx is done.
func (a *app) runDemoLoop(ctx context.Context, every time.Duration) error {
	lg, err := a.newSquareFlow()
	if err != nil {
		return err
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	input := 1.0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			out, err := runSquare(ctx, lg, input)
			if err != nil {
				a.logger.Warn("demo run failed", zap.Float64("input", input), zap.Error(err))
				continue
			}
			a.logger.Debug("demo run", zap.Float64("input", input), zap.Float64("result", out))
			input++
		}
	}
}
