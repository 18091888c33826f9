package sqlite

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

const memoryColumns = `id, anima_id, content, summary, importance, confidence, state,
	recency_score, decay_score, time_start, time_end, metadata, embedding, embedding_model,
	access_count, last_accessed_at, created_at, updated_at, is_deleted`

func (s *Store) CreateMemory(ctx context.Context, m *types.Memory) error {
	metaJSON, err := marshalJSON(m.Metadata)
	if err != nil {
		return fmt.Errorf("store/sqlite: marshal memory metadata: %w", err)
	}
	embedding, err := marshalEmbedding(m.Embedding)
	if err != nil {
		return fmt.Errorf("store/sqlite: marshal memory embedding: %w", err)
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now()
	}
	m.UpdatedAt = now()
	if m.State == "" {
		m.State = types.MemoryActive
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO memories (`+memoryColumns+`) VALUES (`+placeholders(19)+`)
	`, m.ID, m.AnimaID, m.Content, nullableString(m.Summary), nullableFloat(m.Importance),
		nullableFloat(m.Confidence), string(m.State), nullableFloat(m.RecencyScore), nullableFloat(m.DecayScore),
		timeOrNil(m.TimeStart), timeOrNil(m.TimeEnd), metaJSON, embedding, nullableString(m.EmbeddingModel),
		m.AccessCount, timePtrOrNil(m.LastAccessedAt), m.CreatedAt, m.UpdatedAt, m.IsDeleted)
	if err != nil {
		return fmt.Errorf("store/sqlite: create memory: %w", err)
	}
	return nil
}

func scanMemoryRow(row interface{ Scan(...interface{}) error }) (*types.Memory, error) {
	var m types.Memory
	var summary, embeddingModel, metaJSON, embeddingRaw sql.NullString
	var importance, confidence, recency, decay sql.NullFloat64
	var timeStart, timeEnd, lastAccessed sql.NullTime
	var state string

	err := row.Scan(&m.ID, &m.AnimaID, &m.Content, &summary, &importance, &confidence, &state,
		&recency, &decay, &timeStart, &timeEnd, &metaJSON, &embeddingRaw, &embeddingModel,
		&m.AccessCount, &lastAccessed, &m.CreatedAt, &m.UpdatedAt, &m.IsDeleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Wrap(apperr.NotFound, "memory not found")
	}
	if err != nil {
		return nil, fmt.Errorf("store/sqlite: scan memory: %w", err)
	}
	m.Summary = summary.String
	m.State = types.MemoryState(state)
	m.Importance = floatPtr(importance)
	m.Confidence = floatPtr(confidence)
	m.RecencyScore = floatPtr(recency)
	m.DecayScore = floatPtr(decay)
	m.TimeStart = timeStart.Time
	m.TimeEnd = timeEnd.Time
	m.EmbeddingModel = embeddingModel.String
	if lastAccessed.Valid {
		t := lastAccessed.Time
		m.LastAccessedAt = &t
	}
	if m.Metadata, err = unmarshalJSONMap(metaJSON); err != nil {
		return nil, fmt.Errorf("store/sqlite: unmarshal memory metadata: %w", err)
	}
	if m.Embedding, err = unmarshalEmbedding(embeddingRaw); err != nil {
		return nil, fmt.Errorf("store/sqlite: unmarshal memory embedding: %w", err)
	}
	return &m, nil
}

func (s *Store) GetMemory(ctx context.Context, id string, includeDeleted bool) (*types.Memory, error) {
	query := `SELECT ` + memoryColumns + ` FROM memories WHERE id = ?`
	if !includeDeleted {
		query += " AND NOT is_deleted"
	}
	return scanMemoryRow(s.db.QueryRowContext(ctx, query, id))
}

func (s *Store) ListMemories(ctx context.Context, filter store.MemoryFilter) (*store.PaginatedResult[types.Memory], error) {
	filter.Normalize()

	var conds []string
	var args []interface{}
	if filter.AnimaID != "" {
		conds = append(conds, "anima_id = ?")
		args = append(args, filter.AnimaID)
	}
	if len(filter.States) > 0 {
		conds = append(conds, "state IN ("+placeholders(len(filter.States))+")")
		for _, st := range filter.States {
			args = append(args, st)
		}
	}
	if !filter.MinTime.IsZero() {
		conds = append(conds, "time_end >= ?")
		args = append(args, filter.MinTime)
	}
	if !filter.MaxTime.IsZero() {
		conds = append(conds, "time_start <= ?")
		args = append(args, filter.MaxTime)
	}
	if filter.MinImportance != nil {
		conds = append(conds, "importance >= ?")
		args = append(args, *filter.MinImportance)
	}
	if filter.MinConfidence != nil {
		conds = append(conds, "confidence >= ?")
		args = append(args, *filter.MinConfidence)
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
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM memories"+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("store/sqlite: count memories: %w", err)
	}

	query := "SELECT " + memoryColumns + " FROM memories" + where +
		fmt.Sprintf(" ORDER BY created_at %s LIMIT ? OFFSET ?", filter.SortOrder)
	args = append(args, filter.Limit, filter.Offset())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store/sqlite: list memories: %w", err)
	}
	defer rows.Close()

	var items []types.Memory
	for rows.Next() {
		m, err := scanMemoryRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store/sqlite: list memories rows: %w", err)
	}

	return &store.PaginatedResult[types.Memory]{
		Items: items, Total: total, Page: filter.Page, PageSize: filter.Limit,
		HasMore: filter.Offset()+len(items) < total,
	}, nil
}

func (s *Store) UpdateMemory(ctx context.Context, m *types.Memory) error {
	metaJSON, err := marshalJSON(m.Metadata)
	if err != nil {
		return fmt.Errorf("store/sqlite: marshal memory metadata: %w", err)
	}
	embedding, err := marshalEmbedding(m.Embedding)
	if err != nil {
		return fmt.Errorf("store/sqlite: marshal memory embedding: %w", err)
	}
	m.UpdatedAt = now()

	res, err := s.db.ExecContext(ctx, `
		UPDATE memories SET content=?, summary=?, importance=?, confidence=?, state=?,
			recency_score=?, decay_score=?, time_start=?, time_end=?, metadata=?,
			embedding=?, embedding_model=?, access_count=?, last_accessed_at=?,
			updated_at=?, is_deleted=?
		WHERE id=?
	`, m.Content, nullableString(m.Summary), nullableFloat(m.Importance), nullableFloat(m.Confidence),
		string(m.State), nullableFloat(m.RecencyScore), nullableFloat(m.DecayScore),
		timeOrNil(m.TimeStart), timeOrNil(m.TimeEnd), metaJSON, embedding, nullableString(m.EmbeddingModel),
		m.AccessCount, timePtrOrNil(m.LastAccessedAt), m.UpdatedAt, m.IsDeleted, m.ID)
	if err != nil {
		return fmt.Errorf("store/sqlite: update memory: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.Wrap(apperr.NotFound, "memory not found")
	}
	return nil
}

func (s *Store) SoftDeleteMemory(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE memories SET is_deleted = 1, updated_at = ? WHERE id = ? AND NOT is_deleted`, now(), id)
	if err != nil {
		return fmt.Errorf("store/sqlite: soft delete memory: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.Wrap(apperr.NotFound, "memory not found")
	}
	return nil
}

func (s *Store) RestoreMemory(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE memories SET is_deleted = 0, updated_at = ? WHERE id = ? AND is_deleted`, now(), id)
	if err != nil {
		return fmt.Errorf("store/sqlite: restore memory: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.Wrap(apperr.NotFound, "memory not found")
	}
	return nil
}

func (s *Store) TouchAccess(ctx context.Context, id string, accessedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE memories SET access_count = access_count + 1, last_accessed_at = ?, updated_at = ?
		WHERE id = ? AND NOT is_deleted
	`, accessedAt, accessedAt, id)
	if err != nil {
		return fmt.Errorf("store/sqlite: touch memory access: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.Wrap(apperr.NotFound, "memory not found")
	}
	return nil
}

func timeOrNil(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

func timePtrOrNil(t *time.Time) interface{} {
	if t == nil || t.IsZero() {
		return nil
	}
	return *t
}
