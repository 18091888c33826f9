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

func (s *Store) CreateEvent(ctx context.Context, e *types.Event) error {
	q := store.QuerierFromContext(ctx, s.db)
	metaJSON, err := marshalJSON(e.Metadata)
	if err != nil {
		return fmt.Errorf("store/postgres: marshal event metadata: %w", err)
	}
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	_, err = q.ExecContext(ctx, `
		INSERT INTO events (id, anima_id, type, role, author, content, summary,
			occurred_at, session_id, metadata, source_uri, dedupe_key, importance,
			created_at, updated_at, is_deleted)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`, e.ID, e.AnimaID, string(e.Type), nullableString(e.Role), nullableString(e.Author),
		e.Content, nullableString(e.Summary), e.OccurredAt, nullableString(e.SessionID),
		metaJSON, nullableString(e.SourceURI), nullableString(e.DedupeKey),
		nullableFloat(e.Importance), e.CreatedAt, e.UpdatedAt, e.IsDeleted)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Wrap(apperr.Duplicate, "event with this dedupe key already exists")
		}
		return fmt.Errorf("store/postgres: create event: %w", err)
	}
	return nil
}

const eventColumns = `id, anima_id, type, role, author, content, summary,
	occurred_at, session_id, metadata, source_uri, dedupe_key, importance,
	created_at, updated_at, is_deleted`

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
		return nil, fmt.Errorf("store/postgres: scan event: %w", err)
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
		return nil, fmt.Errorf("store/postgres: unmarshal event metadata: %w", err)
	}
	return &e, nil
}

func (s *Store) GetEvent(ctx context.Context, id string, includeDeleted bool) (*types.Event, error) {
	q := store.QuerierFromContext(ctx, s.db)
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	if !includeDeleted {
		query += " AND NOT is_deleted"
	}
	return scanEventRow(q.QueryRowContext(ctx, query, id))
}

func (s *Store) ListEvents(ctx context.Context, filter store.EventFilter) (*store.PaginatedResult[types.Event], error) {
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
	if filter.Type != "" {
		add("type = $%d", filter.Type)
	}
	if filter.SessionID != "" {
		add("session_id = $%d", filter.SessionID)
	}
	if filter.MinImportance != nil {
		add("importance >= $%d", *filter.MinImportance)
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
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM events"+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("store/postgres: count events: %w", err)
	}

	query := "SELECT " + eventColumns + " FROM events" + where +
		fmt.Sprintf(" ORDER BY occurred_at %s LIMIT $%d OFFSET $%d", filter.SortOrder, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset())

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store/postgres: list events: %w", err)
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
		return nil, fmt.Errorf("store/postgres: list events rows: %w", err)
	}

	return &store.PaginatedResult[types.Event]{
		Items: items, Total: total, Page: filter.Page, PageSize: filter.Limit,
		HasMore: filter.Offset()+len(items) < total,
	}, nil
}

func (s *Store) EventsSince(ctx context.Context, animaID string, since time.Time) ([]types.Event, error) {
	q := store.QuerierFromContext(ctx, s.db)
	rows, err := q.QueryContext(ctx, `
		SELECT `+eventColumns+` FROM events
		WHERE anima_id = $1 AND occurred_at > $2 AND NOT is_deleted
		ORDER BY occurred_at ASC
	`, animaID, since)
	if err != nil {
		return nil, fmt.Errorf("store/postgres: events since: %w", err)
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
	q := store.QuerierFromContext(ctx, s.db)
	res, err := q.ExecContext(ctx, `UPDATE events SET is_deleted = TRUE, updated_at = $2 WHERE id = $1 AND NOT is_deleted`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store/postgres: soft delete event: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.Wrap(apperr.NotFound, "event not found")
	}
	return nil
}
