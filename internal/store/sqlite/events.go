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

const eventColumns = `id, anima_id, type, role, author, content, summary,
	occurred_at, session_id, metadata, source_uri, dedupe_key, importance,
	created_at, updated_at, is_deleted`

func (s *Store) CreateEvent(ctx context.Context, e *types.Event) error {
	metaJSON, err := marshalJSON(e.Metadata)
	if err != nil {
		return fmt.Errorf("store/sqlite: marshal event metadata: %w", err)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now()
	}
	e.UpdatedAt = now()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (`+eventColumns+`) VALUES (`+placeholders(16)+`)
	`, e.ID, e.AnimaID, string(e.Type), nullableString(e.Role), nullableString(e.Author),
		e.Content, nullableString(e.Summary), e.OccurredAt, nullableString(e.SessionID),
		metaJSON, nullableString(e.SourceURI), nullableString(e.DedupeKey),
		nullableFloat(e.Importance), e.CreatedAt, e.UpdatedAt, e.IsDeleted)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Wrap(apperr.Duplicate, "event with this dedupe key already exists")
		}
		return fmt.Errorf("store/sqlite: create event: %w", err)
	}
	return nil
}

func scanEventRow(row interface{ Scan(...interface{}) error }) (*types.Event, error) {
	var e types.Event
	var role, author, summary, sessionID, sourceURI, dedupeKey, metaJSON sql.NullString
	var importance sql.NullFloat64
	var typ string
	err := row.Scan(&e.ID, &e.AnimaID, &typ, &role, &author, &e.Content, &summary,
		&e.OccurredAt, &sessionID, &metaJSON, &sourceURI, &dedupeKey, &importance,
		&e.CreatedAt, &e.UpdatedAt, &e.IsDeleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Wrap(apperr.NotFound, "event not found")
	}
	if err != nil {
		return nil, fmt.Errorf("store/sqlite: scan event: %w", err)
	}
	e.Type = types.EventType(typ)
	e.Role = role.String
	e.Author = author.String
	e.Summary = summary.String
	e.SessionID = sessionID.String
	e.SourceURI = sourceURI.String
	e.DedupeKey = dedupeKey.String
	e.Importance = floatPtr(importance)
	if e.Metadata, err = unmarshalJSONMap(metaJSON); err != nil {
		return nil, fmt.Errorf("store/sqlite: unmarshal event metadata: %w", err)
	}
	return &e, nil
}

func (s *Store) GetEvent(ctx context.Context, id string, includeDeleted bool) (*types.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = ?`
	if !includeDeleted {
		query += " AND NOT is_deleted"
	}
	return scanEventRow(s.db.QueryRowContext(ctx, query, id))
}

func (s *Store) ListEvents(ctx context.Context, filter store.EventFilter) (*store.PaginatedResult[types.Event], error) {
	filter.Normalize()

	var conds []string
	var args []interface{}
	if filter.AnimaID != "" {
		conds = append(conds, "anima_id = ?")
		args = append(args, filter.AnimaID)
	}
	if filter.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, filter.Type)
	}
	if filter.SessionID != "" {
		conds = append(conds, "session_id = ?")
		args = append(args, filter.SessionID)
	}
	if filter.MinImportance != nil {
		conds = append(conds, "importance >= ?")
		args = append(args, *filter.MinImportance)
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
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events"+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("store/sqlite: count events: %w", err)
	}

	query := "SELECT " + eventColumns + " FROM events" + where +
		fmt.Sprintf(" ORDER BY occurred_at %s LIMIT ? OFFSET ?", filter.SortOrder)
	args = append(args, filter.Limit, filter.Offset())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store/sqlite: list events: %w", err)
	}
	defer rows.Close()

	var items []types.Event
	for rows.Next() {
		e, err := scanEventRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store/sqlite: list events rows: %w", err)
	}

	return &store.PaginatedResult[types.Event]{
		Items: items, Total: total, Page: filter.Page, PageSize: filter.Limit,
		HasMore: filter.Offset()+len(items) < total,
	}, nil
}

func (s *Store) EventsSince(ctx context.Context, animaID string, since time.Time) ([]types.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+` FROM events
		WHERE anima_id = ? AND occurred_at > ? AND NOT is_deleted
		ORDER BY occurred_at ASC
	`, animaID, since)
	if err != nil {
		return nil, fmt.Errorf("store/sqlite: events since: %w", err)
	}
	defer rows.Close()

	var items []types.Event
	for rows.Next() {
		e, err := scanEventRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *e)
	}
	return items, rows.Err()
}

func (s *Store) SoftDeleteEvent(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE events SET is_deleted = 1, updated_at = ? WHERE id = ? AND NOT is_deleted`, now(), id)
	if err != nil {
		return fmt.Errorf("store/sqlite: soft delete event: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.Wrap(apperr.NotFound, "event not found")
	}
	return nil
}
