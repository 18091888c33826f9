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

const memoryColumns = `id, anima_id, content, summary, importance, confidence, state,
	recency_score, decay_score, time_start, time_end, metadata, embedding, embedding_model,
	access_count, last_accessed_at, created_at, updated_at, is_deleted`

func (s *Store) CreateMemory(ctx context.Context, m *types.Memory) error {
	q := store.QuerierFromContext(ctx, s.db)
	metaJSON, err := marshalJSON(m.Metadata)
	if err != nil {
		return fmt.Errorf("store/postgres: marshal memory metadata: %w", err)
	}
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	if m.State == "" {
		m.State = types.MemoryActive
	}

	var embedding interface{}
	if len(m.Embedding) > 0 {
		embedding = toPgvector(m.Embedding)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO memories (id, anima_id, content, summary, importance, confidence, state,
			recency_score, decay_score, time_start, time_end, metadata, embedding, embedding_model,
			access_count, last_accessed_at, created_at, updated_at, is_deleted)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
	`, m.ID, m.AnimaID, m.Content, nullableString(m.Summary), nullableFloat(m.Importance),
		nullableFloat(m.Confidence), string(m.State), nullableFloat(m.RecencyScore), nullableFloat(m.DecayScore),
		nullableTime(m.TimeStart), nullableTime(m.TimeEnd), metaJSON, embedding, nullableString(m.EmbeddingModel),
		m.AccessCount, nullableTimePtr(m.LastAccessedAt), m.CreatedAt, m.UpdatedAt, m.IsDeleted)
	if err != nil {
		return fmt.Errorf("store/postgres: create memory: %w", err)
	}
	return nil
}

func scanMemoryRow(row interface{ Scan(...interface{}) error }) (*types.Memory, error) {
	var m types.Memory
	var summary, embeddingModel, metaJSON sql.NullString
	var importance, confidence, recency, decay sql.NullFloat64
	var timeStart, timeEnd, lastAccessed sql.NullTime
	var state string
	var embeddingRaw sql.NullString

	err := row.Scan(&m.ID, &m.AnimaID, &m.Content, &summary, &importance, &confidence, &state,
		&recency, &decay, &timeStart, &timeEnd, &metaJSON, &embeddingRaw, &embeddingModel,
		&m.AccessCount, &lastAccessed, &m.CreatedAt, &m.UpdatedAt, &m.IsDeleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Wrap(apperr.NotFound, "memory not found")
	}
	if err != nil {
		return nil, fmt.Errorf("store/postgres: scan memory: %w", err)
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
	m.LastAccessedAt = timePtr(lastAccessed)
	if m.Metadata, err = unmarshalJSONMap(metaJSON); err != nil {
		return nil, fmt.Errorf("store/postgres: unmarshal memory metadata: %w", err)
	}
	return &m, nil
}

func (s *Store) GetMemory(ctx context.Context, id string, includeDeleted bool) (*types.Memory, error) {
	q := store.QuerierFromContext(ctx, s.db)
	query := `SELECT ` + memoryColumns + ` FROM memories WHERE id = $1`
	if !includeDeleted {
		query += " AND NOT is_deleted"
	}
	return scanMemoryRow(q.QueryRowContext(ctx, query, id))
}

func (s *Store) ListMemories(ctx context.Context, filter store.MemoryFilter) (*store.PaginatedResult[types.Memory], error) {
	filter.Normalize()
	q := store.QuerierFromContext(ctx, s.db)

	var conds []string
	var args []interface{}
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.AnimaID != "" {
		add("anima_id = $%d", filter.AnimaID)
	}
	if len(filter.States) > 0 {
		args = append(args, pqStringArray(filter.States))
		conds = append(conds, fmt.Sprintf("state = ANY($%d)", len(args)))
	}
	if !filter.MinTime.IsZero() {
		add("time_end >= $%d", filter.MinTime)
	}
	if !filter.MaxTime.IsZero() {
		add("time_start <= $%d", filter.MaxTime)
	}
	if filter.MinImportance != nil {
		add("importance >= $%d", *filter.MinImportance)
	}
	if filter.MinConfidence != nil {
		add("confidence >= $%d", *filter.MinConfidence)
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
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM memories"+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("store/postgres: count memories: %w", err)
	}

	query := "SELECT " + memoryColumns + " FROM memories" + where +
		fmt.Sprintf(" ORDER BY created_at %s LIMIT $%d OFFSET $%d", filter.SortOrder, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset())

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store/postgres: list memories: %w", err)
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
		return nil, fmt.Errorf("store/postgres: list memories rows: %w", err)
	}

	return &store.PaginatedResult[types.Memory]{
		Items: items, Total: total, Page: filter.Page, PageSize: filter.Limit,
		HasMore: filter.Offset()+len(items) < total,
	}, nil
}

func (s *Store) UpdateMemory(ctx context.Context, m *types.Memory) error {
	q := store.QuerierFromContext(ctx, s.db)
	metaJSON, err := marshalJSON(m.Metadata)
	if err != nil {
		return fmt.Errorf("store/postgres: marshal memory metadata: %w", err)
	}
	m.UpdatedAt = time.Now().UTC()

	var embedding interface{}
	if len(m.Embedding) > 0 {
		embedding = toPgvector(m.Embedding)
	}

	res, err := q.ExecContext(ctx, `
		UPDATE memories SET content=$1, summary=$2, importance=$3, confidence=$4, state=$5,
			recency_score=$6, decay_score=$7, time_start=$8, time_end=$9, metadata=$10,
			embedding=$11, embedding_model=$12, access_count=$13, last_accessed_at=$14,
			updated_at=$15, is_deleted=$16
		WHERE id=$17
	`, m.Content, nullableString(m.Summary), nullableFloat(m.Importance), nullableFloat(m.Confidence),
		string(m.State), nullableFloat(m.RecencyScore), nullableFloat(m.DecayScore),
		nullableTime(m.TimeStart), nullableTime(m.TimeEnd), metaJSON, embedding, nullableString(m.EmbeddingModel),
		m.AccessCount, nullableTimePtr(m.LastAccessedAt), m.UpdatedAt, m.IsDeleted, m.ID)
	if err != nil {
		return fmt.Errorf("store/postgres: update memory: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.Wrap(apperr.NotFound, "memory not found")
	}
	return nil
}

func (s *Store) SoftDeleteMemory(ctx context.Context, id string) error {
	q := store.QuerierFromContext(ctx, s.db)
	res, err := q.ExecContext(ctx, `UPDATE memories SET is_deleted = TRUE, updated_at = $2 WHERE id = $1 AND NOT is_deleted`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store/postgres: soft delete memory: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.Wrap(apperr.NotFound, "memory not found")
	}
	return nil
}

func (s *Store) RestoreMemory(ctx context.Context, id string) error {
	q := store.QuerierFromContext(ctx, s.db)
	res, err := q.ExecContext(ctx, `UPDATE memories SET is_deleted = FALSE, updated_at = $2 WHERE id = $1 AND is_deleted`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store/postgres: restore memory: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.Wrap(apperr.NotFound, "memory not found")
	}
	return nil
}

func (s *Store) TouchAccess(ctx context.Context, id string, accessedAt time.Time) error {
	q := store.QuerierFromContext(ctx, s.db)
	res, err := q.ExecContext(ctx, `
		UPDATE memories SET access_count = access_count + 1, last_accessed_at = $2, updated_at = $2
		WHERE id = $1 AND NOT is_deleted
	`, id, accessedAt)
	if err != nil {
		return fmt.Errorf("store/postgres: touch memory access: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.Wrap(apperr.NotFound, "memory not found")
	}
	return nil
}
