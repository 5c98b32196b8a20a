package logic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/nodeflow/blackboard"
	"github.com/BaSui01/nodeflow/graph"
	"github.com/BaSui01/nodeflow/types"
)

// =============================================================================
// Blackboard writers
// =============================================================================

func TestSetGlobalValue(t *testing.T) {
	t.Parallel()
	board := blackboard.New(blackboard.WithGlobals(blackboard.Var{Key: "score", Value: 0.0}))
	lg := New(graph.WithBlackboard(board))

	set := mustAdd[*SetGlobalValue[float64]](t, lg)
	set.Key.SetValue("score")
	set.Set.SetValue(12.5)
	chain(t, lg, set)

	require.NoError(t, lg.Execute(context.Background()))
	assert.Equal(t, 12.5, blackboard.GetGlobal[float64](board, "score"))
	assert.Equal(t, 12.5, set.Value.Value())
}

func TestSetGlobalValue_UnknownKeyFailsRun(t *testing.T) {
	t.Parallel()
	lg := New(graph.WithBlackboard(blackboard.New()))

	set := mustAdd[*SetGlobalValue[int]](t, lg)
	set.Key.SetValue("missing")
	chain(t, lg, set)

	err := lg.Execute(context.Background())
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrVariableNotFound))
}

func TestSetValue_MissingBlackboard(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		add  func(t *testing.T, lg *Graph) Node
	}{
		{name: "global", add: func(t *testing.T, lg *Graph) Node { return mustAdd[*SetGlobalValue[string]](t, lg) }},
		{name: "local", add: func(t *testing.T, lg *Graph) Node { return mustAdd[*SetLocalValue[string]](t, lg) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			lg := New()
			chain(t, lg, tt.add(t, lg))

			err := lg.Execute(context.Background())
			require.Error(t, err)
			assert.True(t, types.IsErrorCode(err, types.ErrMissingReference))
		})
	}
}

func TestSetLocalValue_ScopedToGraphInstance(t *testing.T) {
	t.Parallel()
	board := blackboard.New(blackboard.WithLocals(blackboard.Var{Key: "hp", Value: 10}))
	lg := New(graph.WithBlackboard(board))

	set := mustAdd[*SetLocalValue[int]](t, lg)
	set.Key.SetValue("hp")
	set.Set.SetValue(3)
	chain(t, lg, set)
	cp := lg.Copy()

	require.NoError(t, lg.Execute(context.Background()))
	assert.Equal(t, 3, blackboard.GetLocal[int](board, lg.Graph, "hp"))
	assert.Equal(t, 10, blackboard.GetLocal[int](board, cp.Graph, "hp"))
}

// =============================================================================
// Sub flows
// =============================================================================

func TestSubFlow_RunsNestedGraph(t *testing.T) {
	t.Parallel()
	lg := New()
	rec := &recorder{}
	sub := mustAdd[*SubFlow](t, lg)
	inner := sub.Inner()
	require.NotNil(t, inner)
	assert.Same(t, lg.Graph, inner.Parent())
	require.NotNil(t, inner.EntryPoint())

	x := addRecord(t, inner, rec, "inner")
	chain(t, inner, x)
	after := addRecord(t, lg, rec, "after")
	chain(t, lg, sub, after)

	require.NoError(t, lg.Execute(context.Background()))
	assert.Equal(t, []string{"inner", "after"}, rec.log)
}

func TestSubFlow_AbortStaysInside(t *testing.T) {
	t.Parallel()
	lg := New()
	rec := &recorder{}
	sub := mustAdd[*SubFlow](t, lg)
	stop := mustAdd[*Abort](t, sub.Inner())
	require.True(t, Link(sub.Inner().EntryPoint(), stop))
	after := addRecord(t, lg, rec, "after")
	chain(t, lg, sub, after)

	require.NoError(t, lg.Execute(context.Background()))
	assert.True(t, sub.Inner().IsAborting())
	assert.False(t, lg.IsAborting())
	assert.Equal(t, []string{"after"}, rec.log)
}

func TestSubFlow_CopiedWithGraph(t *testing.T) {
	t.Parallel()
	lg := New()
	rec := &recorder{}
	sub := mustAdd[*SubFlow](t, lg)
	chain(t, sub.Inner(), addRecord(t, sub.Inner(), rec, "inner"))
	chain(t, lg, sub)

	cp := lg.Copy()
	csub, ok := cp.EntryPoint().Next().(*SubFlow)
	require.True(t, ok)
	require.NotSame(t, sub.Inner(), csub.Inner())
	assert.Same(t, cp.Graph, csub.Inner().Parent())

	require.NoError(t, cp.Execute(context.Background()))
	assert.Equal(t, []string{"inner"}, rec.log)
}

func TestSubFlow_ReleasedOnRemove(t *testing.T) {
	t.Parallel()
	lg := New()
	sub := mustAdd[*SubFlow](t, lg)
	inner := sub.Inner()

	require.NoError(t, lg.RemoveNode(sub))
	assert.Nil(t, sub.SubGraph())
	assert.Nil(t, inner.Parent())
	assert.Empty(t, lg.Children())
}

func TestSubFlow_OutsideLogicGraph(t *testing.T) {
	t.Parallel()
	g := graph.New()
	n, err := g.AddNodeType(SubFlowType)
	require.NoError(t, err)

	err = n.(*SubFlow).Execute(context.Background())
	assert.True(t, types.IsErrorCode(err, types.ErrMissingReference))
}
