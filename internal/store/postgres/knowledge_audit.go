package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/scrypster/ltam/internal/store"
	"github.com/scrypster/ltam/pkg/types"
)

func (s *Store) CreateKnowledgeAudit(ctx context.Context, row *types.KnowledgeAuditLog) error {
	q := store.QuerierFromContext(ctx, s.db)
	_, err := q.ExecContext(ctx, `
		INSERT INTO knowledge_audit_log (id, knowledge_id, action, source_type, source_id,
			before, after, change_summary, trigger, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, row.ID, row.KnowledgeID, string(row.Action), row.SourceType, nullableString(row.SourceID),
		rawMessageOrNull(row.Before), rawMessageOrNull(row.After), nullableString(row.Summary),
		row.Trigger, row.CreatedAt)
	if err != nil {
		return fmt.Errorf("store/postgres: create knowledge audit row: %w", err)
	}
	return nil
}

func (s *Store) ListKnowledgeAudit(ctx context.Context, knowledgeID string) ([]types.KnowledgeAuditLog, error) {
	q := store.QuerierFromContext(ctx, s.db)
	rows, err := q.QueryContext(ctx, `
		SELECT id, knowledge_id, action, source_type, source_id, before, after,
			change_summary, trigger, created_at
		FROM knowledge_audit_log WHERE knowledge_id = $1 ORDER BY created_at ASC
	`, knowledgeID)
	if err != nil {
		return nil, fmt.Errorf("store/postgres: list knowledge audit: %w", err)
	}
	defer rows.Close()

	var items []types.KnowledgeAuditLog
	for rows.Next() {
		var row types.KnowledgeAuditLog
		var action string
		var sourceID, summary, before, after sql.NullString
		if err := rows.Scan(&row.ID, &row.KnowledgeID, &action, &row.SourceType, &sourceID,
			&before, &after, &summary, &row.Trigger, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("store/postgres: scan knowledge audit row: %w", err)
		}
		row.Action = types.AuditAction(action)
		row.SourceID = sourceID.String
		row.Summary = summary.String
		row.Before = nullToRawMessage(before)
		row.After = nullToRawMessage(after)
		items = append(items, row)
	}
	return items, rows.Err()
}
