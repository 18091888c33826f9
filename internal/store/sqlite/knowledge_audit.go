package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/scrypster/ltam/pkg/types"
)

func (s *Store) CreateKnowledgeAudit(ctx context.Context, row *types.KnowledgeAuditLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO knowledge_audit_log (id, knowledge_id, action, source_type, source_id,
			before, after, change_summary, trigger, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)
	`, row.ID, row.KnowledgeID, string(row.Action), row.SourceType, nullableString(row.SourceID),
		rawMessageOrNull(row.Before), rawMessageOrNull(row.After), nullableString(row.Summary),
		row.Trigger, row.CreatedAt)
	if err != nil {
		return fmt.Errorf("store/sqlite: create knowledge audit row: %w", err)
	}
	return nil
}

func (s *Store) ListKnowledgeAudit(ctx context.Context, knowledgeID string) ([]types.KnowledgeAuditLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, knowledge_id, action, source_type, source_id, before, after,
			change_summary, trigger, created_at
		FROM knowledge_audit_log WHERE knowledge_id = ? ORDER BY created_at ASC
	`, knowledgeID)
	if err != nil {
		return nil, fmt.Errorf("store/sqlite: list knowledge audit: %w", err)
	}
	defer rows.Close()

	var items []types.KnowledgeAuditLog
	for rows.Next() {
		var row types.KnowledgeAuditLog
		var action string
		var sourceID, summary, before, after sql.NullString
		if err := rows.Scan(&row.ID, &row.KnowledgeID, &action, &row.SourceType, &sourceID,
			&before, &after, &summary, &row.Trigger, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("store/sqlite: scan knowledge audit row: %w", err)
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
