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

func (s *Store) CreateAnima(ctx context.Context, a *types.Anima) error {
	q := store.QuerierFromContext(ctx, s.db)
	metaJSON, err := marshalJSON(a.Metadata)
	if err != nil {
		return fmt.Errorf("store/postgres: marshal anima metadata: %w", err)
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	if a.LastActivityAt.IsZero() {
		a.LastActivityAt = now
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO animas (id, name, description, metadata, user_id, org_id,
			is_dormant, last_activity_at, timezone, created_at, updated_at, is_deleted)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, a.ID, a.Name, nullableString(a.Description), metaJSON, a.UserID, a.OrgID,
		a.IsDormant, a.LastActivityAt, nullableString(a.Timezone), a.CreatedAt, a.UpdatedAt, a.IsDeleted)
	if err != nil {
		return fmt.Errorf("store/postgres: create anima: %w", err)
	}
	return nil
}

func (s *Store) GetAnima(ctx context.Context, id string, includeDeleted bool) (*types.Anima, error) {
	q := store.QuerierFromContext(ctx, s.db)
	query := `SELECT id, name, description, metadata, user_id, org_id, is_dormant,
		last_activity_at, timezone, created_at, updated_at, is_deleted
		FROM animas WHERE id = $1`
	if !includeDeleted {
		query += " AND NOT is_deleted"
	}
	row := q.QueryRowContext(ctx, query, id)
	return scanAnima(row)
}

func scanAnima(row *sql.Row) (*types.Anima, error) {
	var a types.Anima
	var description, timezone sql.NullString
	var metaJSON sql.NullString
	err := row.Scan(&a.ID, &a.Name, &description, &metaJSON, &a.UserID, &a.OrgID,
		&a.IsDormant, &a.LastActivityAt, &timezone, &a.CreatedAt, &a.UpdatedAt, &a.IsDeleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Wrap(apperr.NotFound, "anima not found")
	}
	if err != nil {
		return nil, fmt.Errorf("store/postgres: scan anima: %w", err)
	}
	a.Description = description.String
	a.Timezone = timezone.String
	a.Metadata, err = unmarshalJSONMap(metaJSON)
	if err != nil {
		return nil, fmt.Errorf("store/postgres: unmarshal anima metadata: %w", err)
	}
	return &a, nil
}

func (s *Store) ListAnimasByUser(ctx context.Context, userID string, opts store.ListOptions) (*store.PaginatedResult[types.Anima], error) {
	opts.Normalize()
	q := store.QuerierFromContext(ctx, s.db)

	where := "user_id = $1"
	if !opts.IncludeDeleted {
		where += " AND NOT is_deleted"
	}
	if opts.OnlyDeleted {
		where += " AND is_deleted"
	}

	var total int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM animas WHERE "+where, userID).Scan(&total); err != nil {
		return nil, fmt.Errorf("store/postgres: count animas: %w", err)
	}

	query := fmt.Sprintf(`SELECT id, name, description, metadata, user_id, org_id, is_dormant,
		last_activity_at, timezone, created_at, updated_at, is_deleted
		FROM animas WHERE %s ORDER BY created_at %s LIMIT $2 OFFSET $3`, where, opts.SortOrder)
	rows, err := q.QueryContext(ctx, query, userID, opts.Limit, opts.Offset())
	if err != nil {
		return nil, fmt.Errorf("store/postgres: list animas: %w", err)
	}
	defer rows.Close()

	var items []types.Anima
	for rows.Next() {
		var a types.Anima
		var description, timezone, metaJSON sql.NullString
		if err := rows.Scan(&a.ID, &a.Name, &description, &metaJSON, &a.UserID, &a.OrgID,
			&a.IsDormant, &a.LastActivityAt, &timezone, &a.CreatedAt, &a.UpdatedAt, &a.IsDeleted); err != nil {
			return nil, fmt.Errorf("store/postgres: scan anima row: %w", err)
		}
		a.Description = description.String
		a.Timezone = timezone.String
		if a.Metadata, err = unmarshalJSONMap(metaJSON); err != nil {
			return nil, fmt.Errorf("store/postgres: unmarshal anima metadata: %w", err)
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store/postgres: list animas rows: %w", err)
	}

	return &store.PaginatedResult[types.Anima]{
		Items: items, Total: total, Page: opts.Page, PageSize: opts.Limit,
		HasMore: opts.Offset()+len(items) < total,
	}, nil
}

func (s *Store) ListAllAnimas(ctx context.Context) ([]types.Anima, error) {
	q := store.QuerierFromContext(ctx, s.db)
	query := `SELECT id, name, description, metadata, user_id, org_id, is_dormant,
		last_activity_at, timezone, created_at, updated_at, is_deleted
		FROM animas WHERE NOT is_deleted AND NOT is_dormant ORDER BY created_at ASC`
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("store/postgres: list all animas: %w", err)
	}
	defer rows.Close()

	var items []types.Anima
	for rows.Next() {
		var a types.Anima
		var description, timezone, metaJSON sql.NullString
		if err := rows.Scan(&a.ID, &a.Name, &description, &metaJSON, &a.UserID, &a.OrgID,
			&a.IsDormant, &a.LastActivityAt, &timezone, &a.CreatedAt, &a.UpdatedAt, &a.IsDeleted); err != nil {
			return nil, fmt.Errorf("store/postgres: scan anima row: %w", err)
		}
		a.Description = description.String
		a.Timezone = timezone.String
		if a.Metadata, err = unmarshalJSONMap(metaJSON); err != nil {
			return nil, fmt.Errorf("store/postgres: unmarshal anima metadata: %w", err)
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store/postgres: list all animas rows: %w", err)
	}
	return items, nil
}

func (s *Store) UpdateAnima(ctx context.Context, a *types.Anima) error {
	q := store.QuerierFromContext(ctx, s.db)
	metaJSON, err := marshalJSON(a.Metadata)
	if err != nil {
		return fmt.Errorf("store/postgres: marshal anima metadata: %w", err)
	}
	a.UpdatedAt = time.Now().UTC()

	res, err := q.ExecContext(ctx, `
		UPDATE animas SET name=$1, description=$2, metadata=$3, is_dormant=$4,
			last_activity_at=$5, timezone=$6, updated_at=$7, is_deleted=$8
		WHERE id=$9
	`, a.Name, nullableString(a.Description), metaJSON, a.IsDormant,
		a.LastActivityAt, nullableString(a.Timezone), a.UpdatedAt, a.IsDeleted, a.ID)
	if err != nil {
		return fmt.Errorf("store/postgres: update anima: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.Wrap(apperr.NotFound, "anima not found")
	}
	return nil
}
