// Package store defines the persistence boundaries of the service: the
// in-memory Task Registry that is the single source of truth for task state,
// and the Artifact Store that owns each task's on-disk bundle. Implementations
// live under internal/platform so the orchestrator depends only on these
// interfaces.
package store
