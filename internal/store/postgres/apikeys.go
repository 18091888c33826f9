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

const apiKeyColumns = `id, user_id, name, description, key_hash, prefix, last_used_at,
	request_count, active, expires_at, created_at, updated_at, is_deleted`

func (s *Store) CreateAPIKey(ctx context.Context, k *types.APIKey) error {
	q := store.QuerierFromContext(ctx, s.db)
	now := time.Now().UTC()
	if k.CreatedAt.IsZero() {
		k.CreatedAt = now
	}
	k.UpdatedAt = now

	_, err := q.ExecContext(ctx, `
		INSERT INTO api_keys (id, user_id, name, description, key_hash, prefix, last_used_at,
			request_count, active, expires_at, created_at, updated_at, is_deleted)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, k.ID, k.UserID, k.Name, nullableString(k.Description), k.KeyHash, k.Prefix,
		nullableTimePtr(k.LastUsedAt), k.RequestCount, k.Active, nullableTimePtr(k.ExpiresAt),
		k.CreatedAt, k.UpdatedAt, k.IsDeleted)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Wrap(apperr.Duplicate, "api key prefix collision")
		}
		return fmt.Errorf("store/postgres: create api key: %w", err)
	}
	return nil
}

func scanAPIKeyRow(row interface{ Scan(...interface{}) error }) (*types.APIKey, error) {
	var k types.APIKey
	var description sql.NullString
	var lastUsed, expiresAt sql.NullTime
	err := row.Scan(&k.ID, &k.UserID, &k.Name, &description, &k.KeyHash, &k.Prefix, &lastUsed,
		&k.RequestCount, &k.Active, &expiresAt, &k.CreatedAt, &k.UpdatedAt, &k.IsDeleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Wrap(apperr.NotFound, "api key not found")
	}
	if err != nil {
		return nil, fmt.Errorf("store/postgres: scan api key: %w", err)
	}
	k.Description = description.String
	k.LastUsedAt = timePtr(lastUsed)
	k.ExpiresAt = timePtr(expiresAt)
	return &k, nil
}

func (s *Store) GetAPIKeyByPrefix(ctx context.Context, prefix string) (*types.APIKey, error) {
	q := store.QuerierFromContext(ctx, s.db)
	return scanAPIKeyRow(q.QueryRowContext(ctx, `
		SELECT `+apiKeyColumns+` FROM api_keys WHERE prefix = $1 AND NOT is_deleted
	`, prefix))
}

func (s *Store) ListAPIKeysByUser(ctx context.Context, userID string) ([]types.APIKey, error) {
	q := store.QuerierFromContext(ctx, s.db)
	rows, err := q.QueryContext(ctx, `
		SELECT `+apiKeyColumns+` FROM api_keys WHERE user_id = $1 AND NOT is_deleted ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("store/postgres: list api keys: %w", err)
	}
	defer rows.Close()

	var items []types.APIKey
	for rows.Next() {
		k, err := scanAPIKeyRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *k)
	}
	return items, rows.Err()
}

func (s *Store) TouchAPIKeyUsage(ctx context.Context, id string, usedAt time.Time) error {
	q := store.QuerierFromContext(ctx, s.db)
	res, err := q.ExecContext(ctx, `
		UPDATE api_keys SET last_used_at = $2, request_count = request_count + 1, updated_at = $2
		WHERE id = $1 AND NOT is_deleted
	`, id, usedAt)
	if err != nil {
		return fmt.Errorf("store/postgres: touch api key usage: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.Wrap(apperr.NotFound, "api key not found")
	}
	return nil
}

func (s *Store) RevokeAPIKey(ctx context.Context, id string) error {
	q := store.QuerierFromContext(ctx, s.db)
	res, err := q.ExecContext(ctx, `
		UPDATE api_keys SET active = FALSE, updated_at = $2 WHERE id = $1 AND NOT is_deleted
	`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store/postgres: revoke api key: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.Wrap(apperr.NotFound, "api key not found")
	}
	return nil
}
