package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/scrypster/ltam/internal/apperr"
	"github.com/scrypster/ltam/internal/store"
	"github.com/scrypster/ltam/pkg/types"
)

const knowledgeColumns = `id, anima_id, type, topic, content, summary, confidence,
	source_type, source_memory_id, embedding, created_at, updated_at, is_deleted`

func (s *Store) CreateKnowledge(ctx context.Context, k *types.Knowledge) error {
	if k.CreatedAt.IsZero() {
		k.CreatedAt = now()
	}
	k.UpdatedAt = now()
	embedding, err := marshalEmbedding(k.Embedding)
	if err != nil {
		return fmt.Errorf("store/sqlite: marshal knowledge embedding: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO knowledge (`+knowledgeColumns+`) VALUES (`+placeholders(13)+`)
	`, k.ID, k.AnimaID, string(k.Type), nullableString(k.Topic), k.Content, nullableString(k.Summary),
		k.Confidence, string(k.SourceType), nullableString(k.SourceMemoryID), embedding,
		k.CreatedAt, k.UpdatedAt, k.IsDeleted)
	if err != nil {
		return fmt.Errorf("store/sqlite: create knowledge: %w", err)
	}
	return nil
}

func scanKnowledgeRow(row interface{ Scan(...interface{}) error }) (*types.Knowledge, error) {
	var k types.Knowledge
	var topic, summary, sourceMemoryID, embeddingRaw sql.NullString
	var typ, sourceType string

	err := row.Scan(&k.ID, &k.AnimaID, &typ, &topic, &k.Content, &summary, &k.Confidence,
		&sourceType, &sourceMemoryID, &embeddingRaw, &k.CreatedAt, &k.UpdatedAt, &k.IsDeleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Wrap(apperr.NotFound, "knowledge not found")
	}
	if err != nil {
		return nil, fmt.Errorf("store/sqlite: scan knowledge: %w", err)
	}
	k.Type = types.KnowledgeType(typ)
	k.SourceType = types.KnowledgeSourceType(sourceType)
	k.Topic = topic.String
	k.Summary = summary.String
	k.SourceMemoryID = sourceMemoryID.String
	if k.Embedding, err = unmarshalEmbedding(embeddingRaw); err != nil {
		return nil, fmt.Errorf("store/sqlite: unmarshal knowledge embedding: %w", err)
	}
	return &k, nil
}

func (s *Store) GetKnowledge(ctx context.Context, id string, includeDeleted bool) (*types.Knowledge, error) {
	query := `SELECT ` + knowledgeColumns + ` FROM knowledge WHERE id = ?`
	if !includeDeleted {
		query += " AND NOT is_deleted"
	}
	return scanKnowledgeRow(s.db.QueryRowContext(ctx, query, id))
}

func (s *Store) ListKnowledge(ctx context.Context, filter store.KnowledgeFilter) (*store.PaginatedResult[types.Knowledge], error) {
	filter.Normalize()

	var conds []string
	var args []interface{}
	if filter.AnimaID != "" {
		conds = append(conds, "anima_id = ?")
		args = append(args, filter.AnimaID)
	}
	if len(filter.Types) > 0 {
		conds = append(conds, "type IN ("+placeholders(len(filter.Types))+")")
		for _, t := range filter.Types {
			args = append(args, t)
		}
	}
	if !filter.IncludeDeleted {
		conds = append(conds, "NOT is_deleted")
	}
	if filter.OnlyDeleted {
		conds = append(conds, "is_deleted")
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + joinAnd(conds)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM knowledge"+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("store/sqlite: count knowledge: %w", err)
	}

	query := "SELECT " + knowledgeColumns + " FROM knowledge" + where +
		fmt.Sprintf(" ORDER BY created_at %s LIMIT ? OFFSET ?", filter.SortOrder)
	args = append(args, filter.Limit, filter.Offset())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store/sqlite: list knowledge: %w", err)
	}
	defer rows.Close()

	var items []types.Knowledge
	for rows.Next() {
		k, err := scanKnowledgeRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store/sqlite: list knowledge rows: %w", err)
	}

	return &store.PaginatedResult[types.Knowledge]{
		Items: items, Total: total, Page: filter.Page, PageSize: filter.Limit,
		HasMore: filter.Offset()+len(items) < total,
	}, nil
}

func (s *Store) UpdateKnowledge(ctx context.Context, k *types.Knowledge) error {
	k.UpdatedAt = now()
	embedding, err := marshalEmbedding(k.Embedding)
	if err != nil {
		return fmt.Errorf("store/sqlite: marshal knowledge embedding: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE knowledge SET type=?, topic=?, content=?, summary=?, confidence=?,
			source_type=?, source_memory_id=?, embedding=?, updated_at=?, is_deleted=?
		WHERE id=?
	`, string(k.Type), nullableString(k.Topic), k.Content, nullableString(k.Summary), k.Confidence,
		string(k.SourceType), nullableString(k.SourceMemoryID), embedding, k.UpdatedAt, k.IsDeleted, k.ID)
	if err != nil {
		return fmt.Errorf("store/sqlite: update knowledge: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.Wrap(apperr.NotFound, "knowledge not found")
	}
	return nil
}

func (s *Store) SoftDeleteKnowledge(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE knowledge SET is_deleted = 1, updated_at = ? WHERE id = ? AND NOT is_deleted`, now(), id)
	if err != nil {
		return fmt.Errorf("store/sqlite: soft delete knowledge: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.Wrap(apperr.NotFound, "knowledge not found")
	}
	return nil
}

func (s *Store) ListKnowledgeBySourceMemory(ctx context.Context, memoryID string) ([]types.Knowledge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+knowledgeColumns+` FROM knowledge WHERE source_memory_id = ? AND NOT is_deleted
	`, memoryID)
	if err != nil {
		return nil, fmt.Errorf("store/sqlite: list knowledge by source memory: %w", err)
	}
	defer rows.Close()

	var items []types.Knowledge
	for rows.Next() {
		k, err := scanKnowledgeRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *k)
	}
	return items, rows.Err()
}
