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

func (s *Store) CreateAnima(ctx context.Context, a *types.Anima) error {
	metaJSON, err := marshalJSON(a.Metadata)
	if err != nil {
		return fmt.Errorf("store/sqlite: marshal anima metadata: %w", err)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now()
	}
	a.UpdatedAt = now()
	if a.LastActivityAt.IsZero() {
		a.LastActivityAt = a.UpdatedAt
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO animas (id, name, description, metadata, user_id, org_id, is_dormant,
			last_activity_at, timezone, created_at, updated_at, is_deleted)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
	`, a.ID, a.Name, nullableString(a.Description), metaJSON, a.UserID, a.OrgID,
		a.IsDormant, a.LastActivityAt, nullableString(a.Timezone), a.CreatedAt, a.UpdatedAt, a.IsDeleted)
	if err != nil {
		return fmt.Errorf("store/sqlite: create anima: %w", err)
	}
	return nil
}

func scanAnima(row interface{ Scan(...interface{}) error }) (*types.Anima, error) {
	var a types.Anima
	var description, timezone, metaJSON sql.NullString
	err := row.Scan(&a.ID, &a.Name, &description, &metaJSON, &a.UserID, &a.OrgID,
		&a.IsDormant, &a.LastActivityAt, &timezone, &a.CreatedAt, &a.UpdatedAt, &a.IsDeleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Wrap(apperr.NotFound, "anima not found")
	}
	if err != nil {
		return nil, fmt.Errorf("store/sqlite: scan anima: %w", err)
	}
	a.Description = description.String
	a.Timezone = timezone.String
	if a.Metadata, err = unmarshalJSONMap(metaJSON); err != nil {
		return nil, fmt.Errorf("store/sqlite: unmarshal anima metadata: %w", err)
	}
	return &a, nil
}

const animaColumns = `id, name, description, metadata, user_id, org_id, is_dormant,
	last_activity_at, timezone, created_at, updated_at, is_deleted`

func (s *Store) GetAnima(ctx context.Context, id string, includeDeleted bool) (*types.Anima, error) {
	query := `SELECT ` + animaColumns + ` FROM animas WHERE id = ?`
	if !includeDeleted {
		query += " AND NOT is_deleted"
	}
	return scanAnima(s.db.QueryRowContext(ctx, query, id))
}

func (s *Store) ListAnimasByUser(ctx context.Context, userID string, opts store.ListOptions) (*store.PaginatedResult[types.Anima], error) {
	opts.Normalize()
	where := "user_id = ?"
	if !opts.IncludeDeleted {
		where += " AND NOT is_deleted"
	}
	if opts.OnlyDeleted {
		where += " AND is_deleted"
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM animas WHERE "+where, userID).Scan(&total); err != nil {
		return nil, fmt.Errorf("store/sqlite: count animas: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM animas WHERE %s ORDER BY created_at %s LIMIT ? OFFSET ?", animaColumns, where, opts.SortOrder)
	rows, err := s.db.QueryContext(ctx, query, userID, opts.Limit, opts.Offset())
	if err != nil {
		return nil, fmt.Errorf("store/sqlite: list animas: %w", err)
	}
	defer rows.Close()

	var items []types.Anima
	for rows.Next() {
		a, err := scanAnima(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store/sqlite: list animas rows: %w", err)
	}

	return &store.PaginatedResult[types.Anima]{
		Items: items, Total: total, Page: opts.Page, PageSize: opts.Limit,
		HasMore: opts.Offset()+len(items) < total,
	}, nil
}

func (s *Store) ListAllAnimas(ctx context.Context) ([]types.Anima, error) {
	query := `SELECT ` + animaColumns + ` FROM animas WHERE NOT is_deleted AND NOT is_dormant ORDER BY created_at ASC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("store/sqlite: list all animas: %w", err)
	}
	defer rows.Close()

	var items []types.Anima
	for rows.Next() {
		a, err := scanAnima(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store/sqlite: list all animas rows: %w", err)
	}
	return items, nil
}

func (s *Store) UpdateAnima(ctx context.Context, a *types.Anima) error {
	metaJSON, err := marshalJSON(a.Metadata)
	if err != nil {
		return fmt.Errorf("store/sqlite: marshal anima metadata: %w", err)
	}
	a.UpdatedAt = now()

	res, err := s.db.ExecContext(ctx, `
		UPDATE animas SET name=?, description=?, metadata=?, is_dormant=?, last_activity_at=?,
			timezone=?, updated_at=?, is_deleted=? WHERE id=?
	`, a.Name, nullableString(a.Description), metaJSON, a.IsDormant, a.LastActivityAt,
		nullableString(a.Timezone), a.UpdatedAt, a.IsDeleted, a.ID)
	if err != nil {
		return fmt.Errorf("store/sqlite: update anima: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.Wrap(apperr.NotFound, "anima not found")
	}
	return nil
}
