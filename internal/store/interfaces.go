package store

import (
	"context"
	"time"

	"github.com/scrypster/ltam/pkg/types"
)

// Store is the full entity store contract: every persisted entity from §3
// plus the cascade and retention operations the rest of the core depends
// on. Concrete backends (postgres, sqlite) implement this interface in
// full; callers normally depend on the narrower per-entity interfaces
// below so tests can fake only what they use.
type Store interface {
	AnimaStore
	EventStore
	MemoryStore
	MemoryEventStore
	KnowledgeStore
	KnowledgeAuditStore
	ConfigStore
	PackStore
	DreamStore
	APIKeyStore

	// Close releases any resources (connection pool, file handle) the
	// backend holds.
	Close() error
}

// AnimaStore covers Anima CRUD plus the cascade soft-delete/restore that
// walks every child table in FK-safe order (§4.2).
type AnimaStore interface {
	CreateAnima(ctx context.Context, a *types.Anima) error
	GetAnima(ctx context.Context, id string, includeDeleted bool) (*types.Anima, error)
	ListAnimasByUser(ctx context.Context, userID string, opts ListOptions) (*PaginatedResult[types.Anima], error)
	// ListAllAnimas returns every non-deleted, non-dormant anima system-wide,
	// unpaginated. The scheduler orchestrator (§4.8) uses it to fan a
	// workflow out across every anima; no other caller needs a
	// cross-tenant scan, which is why it is unpaginated rather than
	// threaded through ListOptions.
	ListAllAnimas(ctx context.Context) ([]types.Anima, error)
	UpdateAnima(ctx context.Context, a *types.Anima) error
	CascadeSoftDeleteAnima(ctx context.Context, id string) (types.CascadeCounts, error)
	CascadeRestoreAnima(ctx context.Context, id string) (types.CascadeCounts, error)
}

// EventStore covers Event create/read/list/soft-delete. Event content is
// immutable after create (§3), so there is deliberately no Update method
// beyond soft-delete.
type EventStore interface {
	CreateEvent(ctx context.Context, e *types.Event) error
	GetEvent(ctx context.Context, id string, includeDeleted bool) (*types.Event, error)
	ListEvents(ctx context.Context, filter EventFilter) (*PaginatedResult[types.Event], error)
	// EventsSince returns every non-deleted event for anima with
	// occurred_at strictly after since, in ascending occurred_at order —
	// the exact shape the synthesis pipeline's event-collection node needs.
	EventsSince(ctx context.Context, animaID string, since time.Time) ([]types.Event, error)
	SoftDeleteEvent(ctx context.Context, id string) error
}

// MemoryStore covers Memory CRUD, soft-delete/restore, and the few
// mutations the dream engine needs (state, decay/recency cache, access
// bookkeeping, embedding).
type MemoryStore interface {
	CreateMemory(ctx context.Context, m *types.Memory) error
	GetMemory(ctx context.Context, id string, includeDeleted bool) (*types.Memory, error)
	ListMemories(ctx context.Context, filter MemoryFilter) (*PaginatedResult[types.Memory], error)
	UpdateMemory(ctx context.Context, m *types.Memory) error
	SoftDeleteMemory(ctx context.Context, id string) error
	RestoreMemory(ctx context.Context, id string) error
	TouchAccess(ctx context.Context, id string, accessedAt time.Time) error
}

// MemoryEventStore covers the provenance junction (§3 MemoryEvent):
// immutable once created, unique per (memory, event), both rows must share
// an anima.
type MemoryEventStore interface {
	CreateMemoryEvent(ctx context.Context, link *types.MemoryEvent) error
	BulkCreateMemoryEvents(ctx context.Context, links []types.MemoryEvent) error
	ListMemoryEventsByMemory(ctx context.Context, memoryID string) ([]types.MemoryEvent, error)

	// ListMemoryEventsByEvent is the reverse lookup the §4.4 temporal-context
	// helper uses to outer-join an event to its linked memory.
	ListMemoryEventsByEvent(ctx context.Context, eventID string) ([]types.MemoryEvent, error)
}

// KnowledgeStore covers Knowledge CRUD + soft-delete/restore.
type KnowledgeStore interface {
	CreateKnowledge(ctx context.Context, k *types.Knowledge) error
	GetKnowledge(ctx context.Context, id string, includeDeleted bool) (*types.Knowledge, error)
	ListKnowledge(ctx context.Context, filter KnowledgeFilter) (*PaginatedResult[types.Knowledge], error)
	UpdateKnowledge(ctx context.Context, k *types.Knowledge) error
	SoftDeleteKnowledge(ctx context.Context, id string) error
	ListKnowledgeBySourceMemory(ctx context.Context, memoryID string) ([]types.Knowledge, error)
}

// KnowledgeAuditStore covers the immutable append-only audit trail (§3
// KnowledgeAuditLog) — create and list only, no update/delete.
type KnowledgeAuditStore interface {
	CreateKnowledgeAudit(ctx context.Context, row *types.KnowledgeAuditLog) error
	ListKnowledgeAudit(ctx context.Context, knowledgeID string) ([]types.KnowledgeAuditLog, error)
}

// ConfigStore covers the three 1:1-per-anima config rows: SynthesisConfig,
// IOConfig, Identity. Get* materializes defaults on first access per §3.
type ConfigStore interface {
	GetSynthesisConfig(ctx context.Context, animaID string) (*types.SynthesisConfig, error)
	UpsertSynthesisConfig(ctx context.Context, cfg *types.SynthesisConfig) error

	GetIOConfig(ctx context.Context, animaID string) (*types.IOConfig, error)
	UpsertIOConfig(ctx context.Context, cfg *types.IOConfig) error

	GetIdentity(ctx context.Context, animaID string) (*types.Identity, error)
	UpsertIdentity(ctx context.Context, id *types.Identity) error
}

// PackStore covers MemoryPack create/list/delete, used by the pack
// compiler's optional persistence step and the retention janitor.
type PackStore interface {
	CreatePack(ctx context.Context, p *types.MemoryPack) error
	ListPacksByAnima(ctx context.Context, animaID string, opts ListOptions) ([]types.MemoryPack, error)
	DeletePacksNotIn(ctx context.Context, animaID string, keepIDs []string) (int, error)
}

// DreamStore covers DreamSession/DreamAction create/read/update plus the
// queries the concurrency guard and stale-sweep need.
type DreamStore interface {
	CreateDreamSession(ctx context.Context, s *types.DreamSession) error
	GetDreamSession(ctx context.Context, id string) (*types.DreamSession, error)
	UpdateDreamSession(ctx context.Context, s *types.DreamSession) error
	ListDreamSessions(ctx context.Context, animaID string, status string) ([]types.DreamSession, error)
	// HasRunningSession reports whether anima already has a RUNNING
	// session — the DB half of the belt-and-suspenders concurrency guard
	// in §4.7/§5.
	HasRunningSession(ctx context.Context, animaID string) (bool, error)
	// StaleRunningSessions returns the ids of every RUNNING session whose
	// started_at is older than olderThan, for the orchestrator's stale-sweep.
	StaleRunningSessions(ctx context.Context, olderThan time.Time) ([]string, error)
	LastCompletedDream(ctx context.Context, animaID string) (*types.DreamSession, error)

	CreateDreamAction(ctx context.Context, a *types.DreamAction) error
	ListDreamActions(ctx context.Context, sessionID string) ([]types.DreamAction, error)
}

// APIKeyStore covers APIKey create/lookup/revoke. The plaintext key itself
// is never stored; callers pass the bcrypt hash and the public prefix.
type APIKeyStore interface {
	CreateAPIKey(ctx context.Context, k *types.APIKey) error
	GetAPIKeyByPrefix(ctx context.Context, prefix string) (*types.APIKey, error)
	ListAPIKeysByUser(ctx context.Context, userID string) ([]types.APIKey, error)
	TouchAPIKeyUsage(ctx context.Context, id string, usedAt time.Time) error
	RevokeAPIKey(ctx context.Context, id string) error
}
