package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrMissingReference, "blackboard not configured").
		WithCause(root).
		WithNode("SetGlobalValue")

	assert.Equal(t, ErrMissingReference, GetErrorCode(err))
	assert.True(t, errors.Is(err, root))
	assert.Equal(t, "[MISSING_REFERENCE] blackboard not configured (node SetGlobalValue): root", err.Error())
}

func TestGetErrorCode_Wrapped(t *testing.T) {
	t.Parallel()

	inner := Errorf(ErrNodeLimit, "type %q allows %d per graph", "logic.entry", 1)
	wrapped := fmt.Errorf("add node: %w", inner)

	require.True(t, IsErrorCode(wrapped, ErrNodeLimit))
	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain")))
	assert.Equal(t, `[NODE_LIMIT] type "logic.entry" allows 1 per graph`, inner.Error())
}
