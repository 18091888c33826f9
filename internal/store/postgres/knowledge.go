package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/scrypster/ltam/internal/apperr"
	"github.com/scrypster/ltam/internal/store"
	"github.com/scrypster/ltam/pkg/types"
)

const knowledgeColumns = `id, anima_id, type, topic, content, summary, confidence,
	source_type, source_memory_id, embedding, created_at, updated_at, is_deleted`

func (s *Store) CreateKnowledge(ctx context.Context, k *types.Knowledge) error {
	q := store.QuerierFromContext(ctx, s.db)
	now := time.Now().UTC()
	if k.CreatedAt.IsZero() {
		k.CreatedAt = now
	}
	k.UpdatedAt = now

	var embedding interface{}
	if len(k.Embedding) > 0 {
		embedding = toPgvector(k.Embedding)
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO knowledge (id, anima_id, type, topic, content, summary, confidence,
			source_type, source_memory_id, embedding, created_at, updated_at, is_deleted)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, k.ID, k.AnimaID, string(k.Type), nullableString(k.Topic), k.Content, nullableString(k.Summary),
		k.Confidence, string(k.SourceType), nullableString(k.SourceMemoryID), embedding,
		k.CreatedAt, k.UpdatedAt, k.IsDeleted)
	if err != nil {
		return fmt.Errorf("store/postgres: create knowledge: %w", err)
	}
	return nil
}

func scanKnowledgeRow(row interface{ Scan(...interface{}) error }) (*types.Knowledge, error) {
	var k types.Knowledge
	var topic, summary, sourceMemoryID sql.NullString
	var embeddingRaw sql.NullString
	var typ, sourceType string

	err := row.Scan(&k.ID, &k.AnimaID, &typ, &topic, &k.Content, &summary, &k.Confidence,
		&sourceType, &sourceMemoryID, &embeddingRaw, &k.CreatedAt, &k.UpdatedAt, &k.IsDeleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Wrap(apperr.NotFound, "knowledge not found")
	}
	if err != nil {
		return nil, fmt.Errorf("store/postgres: scan knowledge: %w", err)
	}
	k.Type = types.KnowledgeType(typ)
	k.SourceType = types.KnowledgeSourceType(sourceType)
	k.Topic = topic.String
	k.Summary = summary.String
	k.SourceMemoryID = sourceMemoryID.String
	return &k, nil
}

func (s *Store) GetKnowledge(ctx context.Context, id string, includeDeleted bool) (*types.Knowledge, error) {
	q := store.QuerierFromContext(ctx, s.db)
	query := `SELECT ` + knowledgeColumns + ` FROM knowledge WHERE id = $1`
	if !includeDeleted {
		query += " AND NOT is_deleted"
	}
	return scanKnowledgeRow(q.QueryRowContext(ctx, query, id))
}

func (s *Store) ListKnowledge(ctx context.Context, filter store.KnowledgeFilter) (*store.PaginatedResult[types.Knowledge], error) {
	filter.Normalize()
	q := store.QuerierFromContext(ctx, s.db)

	var conds []string
	var args []interface{}
	if filter.AnimaID != "" {
		args = append(args, filter.AnimaID)
		conds = append(conds, fmt.Sprintf("anima_id = $%d", len(args)))
	}
	if len(filter.Types) > 0 {
		args = append(args, pqStringArray(filter.Types))
		conds = append(conds, fmt.Sprintf("type = ANY($%d)", len(args)))
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
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM knowledge"+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("store/postgres: count knowledge: %w", err)
	}

	query := "SELECT " + knowledgeColumns + " FROM knowledge" + where +
		fmt.Sprintf(" ORDER BY created_at %s LIMIT $%d OFFSET $%d", filter.SortOrder, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset())

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store/postgres: list knowledge: %w", err)
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
		return nil, fmt.Errorf("store/postgres: list knowledge rows: %w", err)
	}

	return &store.PaginatedResult[types.Knowledge]{
		Items: items, Total: total, Page: filter.Page, PageSize: filter.Limit,
		HasMore: filter.Offset()+len(items) < total,
	}, nil
}

func (s *Store) UpdateKnowledge(ctx context.Context, k *types.Knowledge) error {
	q := store.QuerierFromContext(ctx, s.db)
	k.UpdatedAt = time.Now().UTC()

	var embedding interface{}
	if len(k.Embedding) > 0 {
		embedding = toPgvector(k.Embedding)
	}

	res, err := q.ExecContext(ctx, `
		UPDATE knowledge SET type=$1, topic=$2, content=$3, summary=$4, confidence=$5,
			source_type=$6, source_memory_id=$7, embedding=$8, updated_at=$9, is_deleted=$10
		WHERE id=$11
	`, string(k.Type), nullableString(k.Topic), k.Content, nullableString(k.Summary), k.Confidence,
		string(k.SourceType), nullableString(k.SourceMemoryID), embedding, k.UpdatedAt, k.IsDeleted, k.ID)
	if err != nil {
		return fmt.Errorf("store/postgres: update knowledge: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.Wrap(apperr.NotFound, "knowledge not found")
	}
	return nil
}

func (s *Store) SoftDeleteKnowledge(ctx context.Context, id string) error {
	q := store.QuerierFromContext(ctx, s.db)
	res, err := q.ExecContext(ctx, `UPDATE knowledge SET is_deleted = TRUE, updated_at = $2 WHERE id = $1 AND NOT is_deleted`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store/postgres: soft delete knowledge: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.Wrap(apperr.NotFound, "knowledge not found")
	}
	return nil
}

func (s *Store) ListKnowledgeBySourceMemory(ctx context.Context, memoryID string) ([]types.Knowledge, error) {
	q := store.QuerierFromContext(ctx, s.db)
	rows, err := q.QueryContext(ctx, `
		SELECT `+knowledgeColumns+` FROM knowledge
		WHERE source_memory_id = $1 AND NOT is_deleted
	`, memoryID)
	if err != nil {
		return nil, fmt.Errorf("store/postgres: list knowledge by source memory: %w", err)
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
