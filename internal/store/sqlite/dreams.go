package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/scrypster/ltam/internal/apperr"
	"github.com/scrypster/ltam/pkg/types"
)

const dreamSessionColumns = `id, anima_id, status, trigger, triggering_user,
	memories_reviewed, memories_created, memories_modified, memories_archived, memories_deleted,
	summary, error_message, config_snapshot, started_at, completed_at, created_at, updated_at`

func (s *Store) CreateDreamSession(ctx context.Context, sess *types.DreamSession) error {
	n := now()
	if sess.StartedAt.IsZero() {
		sess.StartedAt = n
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = n
	}
	sess.UpdatedAt = n

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dream_sessions (id, anima_id, status, trigger, triggering_user,
			memories_reviewed, memories_created, memories_modified, memories_archived, memories_deleted,
			summary, error_message, config_snapshot, started_at, completed_at, created_at, updated_at)
		VALUES (`+placeholders(17)+`)
	`, sess.ID, sess.AnimaID, string(sess.Status), string(sess.Trigger), nullableString(sess.TriggeringUser),
		sess.MemoriesReviewed, sess.MemoriesCreated, sess.MemoriesModified, sess.MemoriesArchived, sess.MemoriesDeleted,
		nullableString(sess.Summary), nullableString(sess.ErrorMessage), rawMessageOrNull(sess.ConfigSnapshot),
		sess.StartedAt, timePtrOrNil(sess.CompletedAt), sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Wrap(apperr.Duplicate, "anima already has a running dream session")
		}
		return fmt.Errorf("store/sqlite: create dream session: %w", err)
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
		return nil, fmt.Errorf("store/sqlite: scan dream session: %w", err)
	}
	d.Status = types.DreamStatus(status)
	d.Trigger = types.DreamTrigger(trigger)
	d.TriggeringUser = triggeringUser.String
	d.Summary = summary.String
	d.ErrorMessage = errorMessage.String
	d.ConfigSnapshot = nullToRawMessage(configSnapshot)
	if completedAt.Valid {
		t := completedAt.Time
		d.CompletedAt = &t
	}
	return &d, nil
}

func (s *Store) GetDreamSession(ctx context.Context, id string) (*types.DreamSession, error) {
	return scanDreamSessionRow(s.db.QueryRowContext(ctx, `SELECT `+dreamSessionColumns+` FROM dream_sessions WHERE id = ?`, id))
}

func (s *Store) UpdateDreamSession(ctx context.Context, sess *types.DreamSession) error {
	sess.UpdatedAt = now()

	res, err := s.db.ExecContext(ctx, `
		UPDATE dream_sessions SET status=?, memories_reviewed=?, memories_created=?,
			memories_modified=?, memories_archived=?, memories_deleted=?, summary=?,
			error_message=?, completed_at=?, updated_at=?
		WHERE id=?
	`, string(sess.Status), sess.MemoriesReviewed, sess.MemoriesCreated, sess.MemoriesModified,
		sess.MemoriesArchived, sess.MemoriesDeleted, nullableString(sess.Summary),
		nullableString(sess.ErrorMessage), timePtrOrNil(sess.CompletedAt), sess.UpdatedAt, sess.ID)
	if err != nil {
		return fmt.Errorf("store/sqlite: update dream session: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.Wrap(apperr.NotFound, "dream session not found")
	}
	return nil
}

func (s *Store) ListDreamSessions(ctx context.Context, animaID string, status string) ([]types.DreamSession, error) {
	query := `SELECT ` + dreamSessionColumns + ` FROM dream_sessions WHERE anima_id = ?`
	args := []interface{}{animaID}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	query += " ORDER BY started_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store/sqlite: list dream sessions: %w", err)
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
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM dream_sessions WHERE anima_id = ? AND status = 'RUNNING')
	`, animaID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("store/sqlite: has running session: %w", err)
	}
	return exists, nil
}

func (s *Store) StaleRunningSessions(ctx context.Context, olderThan time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM dream_sessions WHERE status = 'RUNNING' AND started_at < ?
	`, olderThan)
	if err != nil {
		return nil, fmt.Errorf("store/sqlite: stale running sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store/sqlite: scan stale session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) LastCompletedDream(ctx context.Context, animaID string) (*types.DreamSession, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+dreamSessionColumns+` FROM dream_sessions
		WHERE anima_id = ? AND status = 'COMPLETED'
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
		return fmt.Errorf("store/sqlite: %w", apperr.Wrap(apperr.Validation, err.Error()))
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now()
	}
	sourceIDs, err := marshalJSONStrings(a.SourceMemoryIDs)
	if err != nil {
		return fmt.Errorf("store/sqlite: marshal source_memory_ids: %w", err)
	}
	resultIDs, err := marshalJSONStrings(a.ResultMemoryIDs)
	if err != nil {
		return fmt.Errorf("store/sqlite: marshal result_memory_ids: %w", err)
	}
	var reasoning sql.NullString
	if a.Reasoning != nil {
		reasoning = nullableString(*a.Reasoning)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO dream_actions (id, session_id, action_type, phase, source_memory_ids,
			result_memory_ids, before_state, after_state, reasoning, created_at)
		VALUES (`+placeholders(10)+`)
	`, a.ID, a.SessionID, string(a.ActionType), string(a.Phase), sourceIDs, resultIDs,
		rawMessageOrNull(a.Before), rawMessageOrNull(a.After), reasoning, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("store/sqlite: create dream action: %w", err)
	}
	return nil
}

func (s *Store) ListDreamActions(ctx context.Context, sessionID string) ([]types.DreamAction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, action_type, phase, source_memory_ids, result_memory_ids,
			before_state, after_state, reasoning, created_at
		FROM dream_actions WHERE session_id = ? ORDER BY created_at ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store/sqlite: list dream actions: %w", err)
	}
	defer rows.Close()

	var items []types.DreamAction
	for rows.Next() {
		var a types.DreamAction
		var actionType, phase string
		var sourceIDs, resultIDs, before, after, reasoning sql.NullString
		if err := rows.Scan(&a.ID, &a.SessionID, &actionType, &phase, &sourceIDs, &resultIDs,
			&before, &after, &reasoning, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("store/sqlite: scan dream action: %w", err)
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
			return nil, fmt.Errorf("store/sqlite: unmarshal source_memory_ids: %w", err)
		}
		if a.ResultMemoryIDs, err = unmarshalJSONStrings(resultIDs); err != nil {
			return nil, fmt.Errorf("store/sqlite: unmarshal result_memory_ids: %w", err)
		}
		items = append(items, a)
	}
	return items, rows.Err()
}
