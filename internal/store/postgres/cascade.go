package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/scrypster/ltam/internal/store"
	"github.com/scrypster/ltam/pkg/types"
)

// CascadeSoftDeleteAnima soft-deletes the anima and every row it owns, in
// FK-safe order: junction rows and the per-anima config singletons are hard
// deleted outright since neither is independently meaningful once its
// owner is gone (config rows simply re-materialize with defaults the next
// time ConfigStore.Get* runs); knowledge, memories, events, and the anima
// itself are soft-deleted so CascadeRestoreAnima can bring them back.
func (s *Store) CascadeSoftDeleteAnima(ctx context.Context, id string) (types.CascadeCounts, error) {
	q := store.QuerierFromContext(ctx, s.db)
	var c types.CascadeCounts
	now := time.Now().UTC()

	res, err := q.ExecContext(ctx, `
		DELETE FROM memory_events WHERE memory_id IN (SELECT id FROM memories WHERE anima_id = $1)
	`, id)
	if err != nil {
		return c, fmt.Errorf("store/postgres: cascade delete memory_events: %w", err)
	}
	n, _ := res.RowsAffected()
	c.MemoryEventLinks = int(n)

	if res, err = q.ExecContext(ctx, `DELETE FROM io_configs WHERE anima_id = $1`, id); err != nil {
		return c, fmt.Errorf("store/postgres: cascade delete io_configs: %w", err)
	}
	n, _ = res.RowsAffected()
	c.IOConfigs = int(n)

	if res, err = q.ExecContext(ctx, `DELETE FROM synthesis_configs WHERE anima_id = $1`, id); err != nil {
		return c, fmt.Errorf("store/postgres: cascade delete synthesis_configs: %w", err)
	}
	n, _ = res.RowsAffected()
	c.SynthesisConfigs = int(n)

	if res, err = q.ExecContext(ctx, `DELETE FROM identities WHERE anima_id = $1`, id); err != nil {
		return c, fmt.Errorf("store/postgres: cascade delete identities: %w", err)
	}
	n, _ = res.RowsAffected()
	c.Identities = int(n)

	if res, err = q.ExecContext(ctx, `UPDATE knowledge SET is_deleted = TRUE, updated_at = $2 WHERE anima_id = $1 AND NOT is_deleted`, id, now); err != nil {
		return c, fmt.Errorf("store/postgres: cascade soft-delete knowledge: %w", err)
	}
	n, _ = res.RowsAffected()
	c.Knowledge = int(n)

	if res, err = q.ExecContext(ctx, `UPDATE memories SET is_deleted = TRUE, updated_at = $2 WHERE anima_id = $1 AND NOT is_deleted`, id, now); err != nil {
		return c, fmt.Errorf("store/postgres: cascade soft-delete memories: %w", err)
	}
	n, _ = res.RowsAffected()
	c.Memories = int(n)

	if res, err = q.ExecContext(ctx, `UPDATE events SET is_deleted = TRUE, updated_at = $2 WHERE anima_id = $1 AND NOT is_deleted`, id, now); err != nil {
		return c, fmt.Errorf("store/postgres: cascade soft-delete events: %w", err)
	}
	n, _ = res.RowsAffected()
	c.Events = int(n)

	if res, err = q.ExecContext(ctx, `UPDATE animas SET is_deleted = TRUE, updated_at = $2 WHERE id = $1 AND NOT is_deleted`, id, now); err != nil {
		return c, fmt.Errorf("store/postgres: cascade soft-delete anima: %w", err)
	}
	n, _ = res.RowsAffected()
	c.Animas = int(n)

	return c, nil
}

// CascadeRestoreAnima reverses the soft-delete half of CascadeSoftDeleteAnima.
// The hard-deleted config singletons and memory_event links are not
// recoverable; those counts are always zero.
func (s *Store) CascadeRestoreAnima(ctx context.Context, id string) (types.CascadeCounts, error) {
	q := store.QuerierFromContext(ctx, s.db)
	var c types.CascadeCounts
	now := time.Now().UTC()

	res, err := q.ExecContext(ctx, `UPDATE animas SET is_deleted = FALSE, updated_at = $2 WHERE id = $1 AND is_deleted`, id, now)
	if err != nil {
		return c, fmt.Errorf("store/postgres: cascade restore anima: %w", err)
	}
	n, _ := res.RowsAffected()
	c.Animas = int(n)

	if res, err = q.ExecContext(ctx, `UPDATE events SET is_deleted = FALSE, updated_at = $2 WHERE anima_id = $1 AND is_deleted`, id, now); err != nil {
		return c, fmt.Errorf("store/postgres: cascade restore events: %w", err)
	}
	n, _ = res.RowsAffected()
	c.Events = int(n)

	if res, err = q.ExecContext(ctx, `UPDATE memories SET is_deleted = FALSE, updated_at = $2 WHERE anima_id = $1 AND is_deleted`, id, now); err != nil {
		return c, fmt.Errorf("store/postgres: cascade restore memories: %w", err)
	}
	n, _ = res.RowsAffected()
	c.Memories = int(n)

	if res, err = q.ExecContext(ctx, `UPDATE knowledge SET is_deleted = FALSE, updated_at = $2 WHERE anima_id = $1 AND is_deleted`, id, now); err != nil {
		return c, fmt.Errorf("store/postgres: cascade restore knowledge: %w", err)
	}
	n, _ = res.RowsAffected()
	c.Knowledge = int(n)

	return c, nil
}
