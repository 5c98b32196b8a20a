package graph

import (
	"github.com/BaSui01/nodeflow/types"
)

func cycleError(port string, limit int) *types.Error {
	return types.Errorf(types.ErrEvaluationCycle,
		"evaluation of %q exceeded depth %d; the upstream chain is probably cyclic", port, limit)
}

// Evaluate runs fn and converts an evaluation cycle panic raised by an
// output port into an error. Other panics propagate.
func Evaluate[T any](fn func() T) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(*types.Error)
			if !ok || e.Code != types.ErrEvaluationCycle {
				panic(r)
			}
			err = e
		}
	}()
	return fn(), nil
}

// Guard is Evaluate for functions that already return an error.
func Guard(fn func() error) error {
	inner, err := Evaluate(fn)
	if err != nil {
		return err
	}
	return inner
}
