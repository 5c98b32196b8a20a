package history

import (
	"context"
	"sort"
	"sync"

	"github.com/BaSui01/nodeflow/types"
)

// MemoryStore keeps runs in process. Once maxRuns is reached the oldest
// saved run is evicted.
type MemoryStore struct {
	mu      sync.RWMutex
	runs    map[string]*Run
	order   []string
	maxRuns int
}

// NewMemoryStore caps the store at maxRuns; zero or less means unbounded.
func NewMemoryStore(maxRuns int) *MemoryStore {
	return &MemoryStore{
		runs:    make(map[string]*Run),
		maxRuns: maxRuns,
	}
}

func (s *MemoryStore) Save(_ context.Context, run *Run) error {
	if run == nil || run.ID == "" {
		return types.NewError(types.ErrInvalidArgs, "run id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[run.ID]; !ok {
		s.order = append(s.order, run.ID)
	}
	s.runs[run.ID] = run.clone()

	for s.maxRuns > 0 && len(s.order) > s.maxRuns {
		delete(s.runs, s.order[0])
		s.order = s.order[1:]
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[id]
	if !ok {
		return nil, types.Errorf(types.ErrNotFound, "run %s not found", id)
	}
	return r.clone(), nil
}

func (s *MemoryStore) List(_ context.Context, f Filter) ([]*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Run
	for _, r := range s.runs {
		if f.match(r) {
			out = append(out, r.summary())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.After(out[j].StartTime)
	})
	if len(out) > f.limit() {
		out = out[:f.limit()]
	}
	return out, nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}
