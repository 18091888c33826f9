package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/scrypster/ltam/internal/apperr"
	"github.com/scrypster/ltam/internal/store"
	"github.com/scrypster/ltam/pkg/types"
)

func (s *Store) CreateMemoryEvent(ctx context.Context, link *types.MemoryEvent) error {
	q := store.QuerierFromContext(ctx, s.db)
	_, err := q.ExecContext(ctx, `
		INSERT INTO memory_events (id, memory_id, event_id, link_strength, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, link.ID, link.MemoryID, link.EventID, nullableFloat(link.LinkStrength), link.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Wrap(apperr.Duplicate, "memory-event link already exists")
		}
		return fmt.Errorf("store/postgres: create memory_event: %w", err)
	}
	return nil
}

// BulkCreateMemoryEvents inserts the links one row at a time on the
// context's Querier (inside a tenant session's transaction when one is
// active), skipping rows that already exist rather than failing the whole
// batch — the synthesis pipeline links a memory to its source events once
// and re-running it on the same event set should be a no-op, not an error.
func (s *Store) BulkCreateMemoryEvents(ctx context.Context, links []types.MemoryEvent) error {
	if len(links) == 0 {
		return nil
	}
	q := store.QuerierFromContext(ctx, s.db)
	for _, link := range links {
		_, err := q.ExecContext(ctx, `
			INSERT INTO memory_events (id, memory_id, event_id, link_strength, created_at)
			VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT (memory_id, event_id) DO NOTHING
		`, link.ID, link.MemoryID, link.EventID, nullableFloat(link.LinkStrength), link.CreatedAt)
		if err != nil {
			return fmt.Errorf("store/postgres: bulk create memory_events: %w", err)
		}
	}
	return nil
}

func (s *Store) ListMemoryEventsByMemory(ctx context.Context, memoryID string) ([]types.MemoryEvent, error) {
	q := store.QuerierFromContext(ctx, s.db)
	rows, err := q.QueryContext(ctx, `
		SELECT id, memory_id, event_id, link_strength, created_at
		FROM memory_events WHERE memory_id = $1 ORDER BY created_at ASC
	`, memoryID)
	if err != nil {
		return nil, fmt.Errorf("store/postgres: list memory_events: %w", err)
	}
	defer rows.Close()

	var items []types.MemoryEvent
	for rows.Next() {
		var l types.MemoryEvent
		var strength sql.NullFloat64
		if err := rows.Scan(&l.ID, &l.MemoryID, &l.EventID, &strength, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("store/postgres: scan memory_event: %w", err)
		}
		l.LinkStrength = floatPtr(strength)
		items = append(items, l)
	}
	return items, rows.Err()
}

func (s *Store) ListMemoryEventsByEvent(ctx context.Context, eventID string) ([]types.MemoryEvent, error) {
	q := store.QuerierFromContext(ctx, s.db)
	rows, err := q.QueryContext(ctx, `
		SELECT id, memory_id, event_id, link_strength, created_at
		FROM memory_events WHERE event_id = $1 ORDER BY created_at ASC
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("store/postgres: list memory_events by event: %w", err)
	}
	defer rows.Close()

	var items []types.MemoryEvent
	for rows.Next() {
		var l types.MemoryEvent
		var strength sql.NullFloat64
		if err := rows.Scan(&l.ID, &l.MemoryID, &l.EventID, &strength, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("store/postgres: scan memory_event: %w", err)
		}
		l.LinkStrength = floatPtr(strength)
		items = append(items, l)
	}
	return items, rows.Err()
}
