package synthesis

import "github.com/scrypster/ltam/internal/store"

// Store is the narrow slice of the entity store both synthesis pipelines
// depend on. Composed from the per-entity interfaces in internal/store so
// tests can fake only what they use, matching the precedent set by
// internal/packcompiler.Store.
type Store interface {
	store.AnimaStore
	store.ConfigStore
	store.EventStore
	store.MemoryStore
	store.MemoryEventStore
	store.KnowledgeStore
	store.KnowledgeAuditStore
}
