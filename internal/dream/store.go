package dream

import "github.com/scrypster/ltam/internal/store"

// Store is the narrow slice of the entity store the dream engine depends
// on. Composed from the per-entity interfaces in internal/store, matching
// the precedent set by internal/synthesis.Store and
// internal/packcompiler.Store.
type Store interface {
	store.AnimaStore
	store.MemoryStore
	store.MemoryEventStore
	store.KnowledgeStore
	store.ConfigStore
	store.DreamStore
}
