// Package history records logic flow executions.
//
// A Recorder observes logic.Graph runs and saves one Run, with a
// NodeRecord per executed node, to a Store: MemoryStore in process,
// GormStore in SQL, optionally fronted by the Redis backed CachedStore.
// WithSavePool moves saves onto an internal/pool.Pool.
package history
