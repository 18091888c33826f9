package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/scrypster/ltam/internal/apperr"
	"github.com/scrypster/ltam/pkg/types"
)

func (s *Store) CreateMemoryEvent(ctx context.Context, link *types.MemoryEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memory_events (id, memory_id, event_id, link_strength, created_at)
		VALUES (?,?,?,?,?)
	`, link.ID, link.MemoryID, link.EventID, nullableFloat(link.LinkStrength), link.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Wrap(apperr.Duplicate, "memory-event link already exists")
		}
		return fmt.Errorf("store/sqlite: create memory_event: %w", err)
	}
	return nil
}

func (s *Store) BulkCreateMemoryEvents(ctx context.Context, links []types.MemoryEvent) error {
	if len(links) == 0 {
		return nil
	}
	for _, link := range links {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO memory_events (id, memory_id, event_id, link_strength, created_at)
			VALUES (?,?,?,?,?)
			ON CONFLICT (memory_id, event_id) DO NOTHING
		`, link.ID, link.MemoryID, link.EventID, nullableFloat(link.LinkStrength), link.CreatedAt)
		if err != nil {
			return fmt.Errorf("store/sqlite: bulk create memory_events: %w", err)
		}
	}
	return nil
}

func (s *Store) ListMemoryEventsByMemory(ctx context.Context, memoryID string) ([]types.MemoryEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, memory_id, event_id, link_strength, created_at
		FROM memory_events WHERE memory_id = ? ORDER BY created_at ASC
	`, memoryID)
	if err != nil {
		return nil, fmt.Errorf("store/sqlite: list memory_events: %w", err)
	}
	defer rows.Close()

	var items []types.MemoryEvent
	for rows.Next() {
		var l types.MemoryEvent
		var strength sql.NullFloat64
		if err := rows.Scan(&l.ID, &l.MemoryID, &l.EventID, &strength, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("store/sqlite: scan memory_event: %w", err)
		}
		l.LinkStrength = floatPtr(strength)
		items = append(items, l)
	}
	return items, rows.Err()
}

func (s *Store) ListMemoryEventsByEvent(ctx context.Context, eventID string) ([]types.MemoryEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, memory_id, event_id, link_strength, created_at
		FROM memory_events WHERE event_id = ? ORDER BY created_at ASC
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("store/sqlite: list memory_events by event: %w", err)
	}
	defer rows.Close()

	var items []types.MemoryEvent
	for rows.Next() {
		var l types.MemoryEvent
		var strength sql.NullFloat64
		if err := rows.Scan(&l.ID, &l.MemoryID, &l.EventID, &strength, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("store/sqlite: scan memory_event: %w", err)
		}
		l.LinkStrength = floatPtr(strength)
		items = append(items, l)
	}
	return items, rows.Err()
}
