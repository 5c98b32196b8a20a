/*
Package logic executes graphs as control flows.

A logic graph always holds one Entry and one Exit. Executable nodes embed
FlowBase, which declares a prev input and a next output; linking next to prev
orders the flow:

	lg := logic.New(graph.WithLogger(logger))
	p, _ := graph.Add[*logic.Print](lg.Graph)
	p.Value.SetValue("hi")
	logic.Link(lg.EntryPoint(), p)
	logic.Link(p, lg.ExitPoint())
	err := lg.Execute(ctx)

Execute starts at the entry point and repeatedly resolves Next, skipping
connector nodes (Entry, Exit, If), until Next is nil or a node calls
Abort. Abort is cooperative and only observed between node executions.
Step executes one node per call for debuggers.

Observers registered with Observe receive run and node events; the
metrics, tracing and history packages build on them.
*/
package logic
