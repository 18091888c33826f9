package sqlite

import (
	"context"
	"fmt"

	"github.com/scrypster/ltam/pkg/types"
)

func (s *Store) CascadeSoftDeleteAnima(ctx context.Context, id string) (types.CascadeCounts, error) {
	var c types.CascadeCounts
	n := now()

	res, err := s.db.ExecContext(ctx, `DELETE FROM memory_events WHERE memory_id IN (SELECT id FROM memories WHERE anima_id = ?)`, id)
	if err != nil {
		return c, fmt.Errorf("store/sqlite: cascade delete memory_events: %w", err)
	}
	rows, _ := res.RowsAffected()
	c.MemoryEventLinks = int(rows)

	if res, err = s.db.ExecContext(ctx, `DELETE FROM io_configs WHERE anima_id = ?`, id); err != nil {
		return c, fmt.Errorf("store/sqlite: cascade delete io_configs: %w", err)
	}
	rows, _ = res.RowsAffected()
	c.IOConfigs = int(rows)

	if res, err = s.db.ExecContext(ctx, `DELETE FROM synthesis_configs WHERE anima_id = ?`, id); err != nil {
		return c, fmt.Errorf("store/sqlite: cascade delete synthesis_configs: %w", err)
	}
	rows, _ = res.RowsAffected()
	c.SynthesisConfigs = int(rows)

	if res, err = s.db.ExecContext(ctx, `DELETE FROM identities WHERE anima_id = ?`, id); err != nil {
		return c, fmt.Errorf("store/sqlite: cascade delete identities: %w", err)
	}
	rows, _ = res.RowsAffected()
	c.Identities = int(rows)

	if res, err = s.db.ExecContext(ctx, `UPDATE knowledge SET is_deleted = 1, updated_at = ? WHERE anima_id = ? AND NOT is_deleted`, n, id); err != nil {
		return c, fmt.Errorf("store/sqlite: cascade soft-delete knowledge: %w", err)
	}
	rows, _ = res.RowsAffected()
	c.Knowledge = int(rows)

	if res, err = s.db.ExecContext(ctx, `UPDATE memories SET is_deleted = 1, updated_at = ? WHERE anima_id = ? AND NOT is_deleted`, n, id); err != nil {
		return c, fmt.Errorf("store/sqlite: cascade soft-delete memories: %w", err)
	}
	rows, _ = res.RowsAffected()
	c.Memories = int(rows)

	if res, err = s.db.ExecContext(ctx, `UPDATE events SET is_deleted = 1, updated_at = ? WHERE anima_id = ? AND NOT is_deleted`, n, id); err != nil {
		return c, fmt.Errorf("store/sqlite: cascade soft-delete events: %w", err)
	}
	rows, _ = res.RowsAffected()
	c.Events = int(rows)

	if res, err = s.db.ExecContext(ctx, `UPDATE animas SET is_deleted = 1, updated_at = ? WHERE id = ? AND NOT is_deleted`, n, id); err != nil {
		return c, fmt.Errorf("store/sqlite: cascade soft-delete anima: %w", err)
	}
	rows, _ = res.RowsAffected()
	c.Animas = int(rows)

	return c, nil
}

func (s *Store) CascadeRestoreAnima(ctx context.Context, id string) (types.CascadeCounts, error) {
	var c types.CascadeCounts
	n := now()

	res, err := s.db.ExecContext(ctx, `UPDATE animas SET is_deleted = 0, updated_at = ? WHERE id = ? AND is_deleted`, n, id)
	if err != nil {
		return c, fmt.Errorf("store/sqlite: cascade restore anima: %w", err)
	}
	rows, _ := res.RowsAffected()
	c.Animas = int(rows)

	if res, err = s.db.ExecContext(ctx, `UPDATE events SET is_deleted = 0, updated_at = ? WHERE anima_id = ? AND is_deleted`, n, id); err != nil {
		return c, fmt.Errorf("store/sqlite: cascade restore events: %w", err)
	}
	rows, _ = res.RowsAffected()
	c.Events = int(rows)

	if res, err = s.db.ExecContext(ctx, `UPDATE memories SET is_deleted = 0, updated_at = ? WHERE anima_id = ? AND is_deleted`, n, id); err != nil {
		return c, fmt.Errorf("store/sqlite: cascade restore memories: %w", err)
	}
	rows, _ = res.RowsAffected()
	c.Memories = int(rows)

	if res, err = s.db.ExecContext(ctx, `UPDATE knowledge SET is_deleted = 0, updated_at = ? WHERE anima_id = ? AND is_deleted`, n, id); err != nil {
		return c, fmt.Errorf("store/sqlite: cascade restore knowledge: %w", err)
	}
	rows, _ = res.RowsAffected()
	c.Knowledge = int(rows)

	return c, nil
}
