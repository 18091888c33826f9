package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/scrypster/ltam/internal/store"
	"github.com/scrypster/ltam/pkg/types"
)

func (s *Store) CreatePack(ctx context.Context, p *types.MemoryPack) error {
	q := store.QuerierFromContext(ctx, s.db)
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	_, err := q.ExecContext(ctx, `
		INSERT INTO memory_packs (id, anima_id, query, preset, session_memory_count,
			knowledge_count, long_term_memory_count, token_count, max_tokens, content,
			compiled_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, p.ID, p.AnimaID, nullableString(p.Query), p.Preset, p.SessionMemoryCount,
		p.KnowledgeCount, p.LongTermMemoryCount, p.TokenCount, p.MaxTokens,
		rawMessageOrNull(p.Content), p.CompiledAt, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store/postgres: create pack: %w", err)
	}
	return nil
}

func (s *Store) ListPacksByAnima(ctx context.Context, animaID string, opts store.ListOptions) ([]types.MemoryPack, error) {
	opts.Normalize()
	q := store.QuerierFromContext(ctx, s.db)
	rows, err := q.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, anima_id, query, preset, session_memory_count, knowledge_count,
			long_term_memory_count, token_count, max_tokens, content, compiled_at,
			created_at, updated_at
		FROM memory_packs WHERE anima_id = $1 ORDER BY compiled_at %s LIMIT $2 OFFSET $3
	`, opts.SortOrder), animaID, opts.Limit, opts.Offset())
	if err != nil {
		return nil, fmt.Errorf("store/postgres: list packs: %w", err)
	}
	defer rows.Close()

	var items []types.MemoryPack
	for rows.Next() {
		var p types.MemoryPack
		var query sql.NullString
		var content sql.NullString
		if err := rows.Scan(&p.ID, &p.AnimaID, &query, &p.Preset, &p.SessionMemoryCount,
			&p.KnowledgeCount, &p.LongTermMemoryCount, &p.TokenCount, &p.MaxTokens,
			&content, &p.CompiledAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store/postgres: scan pack: %w", err)
		}
		p.Query = query.String
		p.Content = nullToRawMessage(content)
		items = append(items, p)
	}
	return items, rows.Err()
}

// DeletePacksNotIn deletes every pack for anima not in keepIDs — the
// retention janitor's "keep the N most recent, drop the rest" sweep.
func (s *Store) DeletePacksNotIn(ctx context.Context, animaID string, keepIDs []string) (int, error) {
	q := store.QuerierFromContext(ctx, s.db)
	res, err := q.ExecContext(ctx, `
		DELETE FROM memory_packs WHERE anima_id = $1 AND NOT (id = ANY($2))
	`, animaID, pqStringArray(keepIDs))
	if err != nil {
		return 0, fmt.Errorf("store/postgres: delete stale packs: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
