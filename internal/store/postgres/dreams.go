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

const dreamSessionColumns = `id, anima_id, status, trigger, triggering_user,
	memories_reviewed, memories_created, memories_modified, memories_archived, memories_deleted,
	summary, error_message, config_snapshot, started_at, completed_at, created_at, updated_at`

func (s *Store) CreateDreamSession(ctx context.Context, sess *types.DreamSession) error {
	q := store.QuerierFromContext(ctx, s.db)
	now := time.Now().UTC()
	if sess.StartedAt.IsZero() {
		sess.StartedAt = now
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.UpdatedAt = now

	_, err := q.ExecContext(ctx, `
		INSERT INTO dream_sessions (id, anima_id, status, trigger, triggering_user,
			memories_reviewed, memories_created, memories_modified, memories_archived, memories_deleted,
			summary, error_message, config_snapshot, started_at, completed_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`, sess.ID, sess.AnimaID, string(sess.Status), string(sess.Trigger), nullableString(sess.TriggeringUser),
		sess.MemoriesReviewed, sess.MemoriesCreated, sess.MemoriesModified, sess.MemoriesArchived, sess.MemoriesDeleted,
		nullableString(sess.Summary), nullableString(sess.ErrorMessage), rawMessageOrNull(sess.ConfigSnapshot),
		sess.StartedAt, nullableTimePtr(sess.CompletedAt), sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Wrap(apperr.Duplicate, "anima already has a running dream session")
		}
		return fmt.Errorf("store/postgres: create dream session: %w", err)
	}
	return nil
}

func scanDreamSessionRow(row interface{ Scan(...interface{}) error }) (*types.DreamSession, error) {
	var d types.DreamSession
	var triggeringUser, summary, errorMessage, configSnapshot sql.NullString
	var completedAt sql.NullTime
	var status, trigger string

	err := row.Scan(&d.ID, &d.AnimaID, &status, &trigger, &triggeringUser,
		&d.MemoriesReviewed, &d.MemoriesCreated, &d.MemoriesModified, &d.MemoriesArchived, &d.MemoriesDeleted,
		&summary, &errorMessage, &configSnapshot, &d.StartedAt, &completedAt, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Wrap(apperr.NotFound, "dream session not found")
	}
	if err != nil {
		return nil, fmt.Errorf("store/postgres: scan dream session: %w", err)
	}
	d.Status = types.DreamStatus(status)
	d.Trigger = types.DreamTrigger(trigger)
	d.TriggeringUser = triggeringUser.String
	d.Summary = summary.String
	d.ErrorMessage = errorMessage.String
	d.ConfigSnapshot = nullToRawMessage(configSnapshot)
	d.CompletedAt = timePtr(completedAt)
	return &d, nil
}

func (s *Store) GetDreamSession(ctx context.Context, id string) (*types.DreamSession, error) {
	q := store.QuerierFromContext(ctx, s.db)
	return scanDreamSessionRow(q.QueryRowContext(ctx, `SELECT `+dreamSessionColumns+` FROM dream_sessions WHERE id = $1`, id))
}

func (s *Store) UpdateDreamSession(ctx context.Context, sess *types.DreamSession) error {
	q := store.QuerierFromContext(ctx, s.db)
	sess.UpdatedAt = time.Now().UTC()

	res, err := q.ExecContext(ctx, `
		UPDATE dream_sessions SET status=$1, memories_reviewed=$2, memories_created=$3,
			memories_modified=$4, memories_archived=$5, memories_deleted=$6, summary=$7,
			error_message=$8, completed_at=$9, updated_at=$10
		WHERE id=$11
	`, string(sess.Status), sess.MemoriesReviewed, sess.MemoriesCreated, sess.MemoriesModified,
		sess.MemoriesArchived, sess.MemoriesDeleted, nullableString(sess.Summary),
		nullableString(sess.ErrorMessage), nullableTimePtr(sess.CompletedAt), sess.UpdatedAt, sess.ID)
	if err != nil {
		return fmt.Errorf("store/postgres: update dream session: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.Wrap(apperr.NotFound, "dream session not found")
	}
	return nil
}

func (s *Store) ListDreamSessions(ctx context.Context, animaID string, status string) ([]types.DreamSession, error) {
	q := store.QuerierFromContext(ctx, s.db)
	query := `SELECT ` + dreamSessionColumns + ` FROM dream_sessions WHERE anima_id = $1`
	args := []interface{}{animaID}
	if status != "" {
		query += " AND status = $2"
		args = append(args, status)
	}
	query += " ORDER BY started_at DESC"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store/postgres: list dream sessions: %w", err)
	}
	defer rows.Close()

	var items []types.DreamSession
	for rows.Next() {
		d, err := scanDreamSessionRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *d)
	}
	return items, rows.Err()
}

func (s *Store) HasRunningSession(ctx context.Context, animaID string) (bool, error) {
	q := store.QuerierFromContext(ctx, s.db)
	var exists bool
	err := q.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM dream_sessions WHERE anima_id = $1 AND status = 'RUNNING')
	`, animaID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("store/postgres: has running session: %w", err)
	}
	return exists, nil
}

func (s *Store) StaleRunningSessions(ctx context.Context, olderThan time.Time) ([]string, error) {
	q := store.QuerierFromContext(ctx, s.db)
	rows, err := q.QueryContext(ctx, `
		SELECT id FROM dream_sessions WHERE status = 'RUNNING' AND started_at < $1
	`, olderThan)
	if err != nil {
		return nil, fmt.Errorf("store/postgres: stale running sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store/postgres: scan stale session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) LastCompletedDream(ctx context.Context, animaID string) (*types.DreamSession, error) {
	q := store.QuerierFromContext(ctx, s.db)
	row := q.QueryRowContext(ctx, `
		SELECT `+dreamSessionColumns+` FROM dream_sessions
		WHERE anima_id = $1 AND status = 'COMPLETED'
		ORDER BY completed_at DESC LIMIT 1
	`, animaID)
	d, err := scanDreamSessionRow(row)
	if err != nil && errors.Is(err, apperr.NotFound) {
		return nil, nil
	}
	return d, err
}

func (s *Store) CreateDreamAction(ctx context.Context, a *types.DreamAction) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("store/postgres: %w", apperr.Wrap(apperr.Validation, err.Error()))
	}
	q := store.QuerierFromContext(ctx, s.db)
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	sourceIDs, err := marshalJSONStrings(a.SourceMemoryIDs)
	if err != nil {
		return fmt.Errorf("store/postgres: marshal source_memory_ids: %w", err)
	}
	resultIDs, err := marshalJSONStrings(a.ResultMemoryIDs)
	if err != nil {
		return fmt.Errorf("store/postgres: marshal result_memory_ids: %w", err)
	}
	var reasoning sql.NullString
	if a.Reasoning != nil {
		reasoning = nullableString(*a.Reasoning)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO dream_actions (id, session_id, action_type, phase, source_memory_ids,
			result_memory_ids, before_state, after_state, reasoning, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, a.ID, a.SessionID, string(a.ActionType), string(a.Phase), sourceIDs, resultIDs,
		rawMessageOrNull(a.Before), rawMessageOrNull(a.After), reasoning, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("store/postgres: create dream action: %w", err)
	}
	return nil
}

func (s *Store) ListDreamActions(ctx context.Context, sessionID string) ([]types.DreamAction, error) {
	q := store.QuerierFromContext(ctx, s.db)
	rows, err := q.QueryContext(ctx, `
		SELECT id, session_id, action_type, phase, source_memory_ids, result_memory_ids,
			before_state, after_state, reasoning, created_at
		FROM dream_actions WHERE session_id = $1 ORDER BY created_at ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store/postgres: list dream actions: %w", err)
	}
	defer rows.Close()

	var items []types.DreamAction
	for rows.Next() {
		var a types.DreamAction
		var actionType, phase string
		var sourceIDs, resultIDs, before, after, reasoning sql.NullString
		if err := rows.Scan(&a.ID, &a.SessionID, &actionType, &phase, &sourceIDs, &resultIDs,
			&before, &after, &reasoning, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("store/postgres: scan dream action: %w", err)
		}
		a.ActionType = types.DreamActionType(actionType)
		a.Phase = types.DreamPhase(phase)
		a.Before = nullToRawMessage(before)
		a.After = nullToRawMessage(after)
		if reasoning.Valid {
			r := reasoning.String
			a.Reasoning = &r
		}
		if a.SourceMemoryIDs, err = unmarshalJSONStrings(sourceIDs); err != nil {
			return nil, fmt.Errorf("store/postgres: unmarshal source_memory_ids: %w", err)
		}
		if a.ResultMemoryIDs, err = unmarshalJSONStrings(resultIDs); err != nil {
			return nil, fmt.Errorf("store/postgres: unmarshal result_memory_ids: %w", err)
		}
		items = append(items, a)
	}
	return items, rows.Err()
}
