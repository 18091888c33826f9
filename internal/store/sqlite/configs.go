package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/scrypster/ltam/pkg/types"
)

func (s *Store) GetSynthesisConfig(ctx context.Context, animaID string) (*types.SynthesisConfig, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, anima_id, time_weight, event_weight, token_weight, threshold,
			llm_temperature, llm_max_tokens, scheduler_interval_hours, last_synthesis_check_at,
			cost_tracking, created_at, updated_at
		FROM synthesis_configs WHERE anima_id = ?
	`, animaID)

	var c types.SynthesisConfig
	var lastCheck sql.NullTime
	var costJSON sql.NullString
	err := row.Scan(&c.ID, &c.AnimaID, &c.TimeWeight, &c.EventWeight, &c.TokenWeight, &c.Threshold,
		&c.LLMTemperature, &c.LLMMaxTokens, &c.SchedulerIntervalHours, &lastCheck,
		&costJSON, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		defaults := types.DefaultSynthesisConfig(animaID)
		return &defaults, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store/sqlite: get synthesis config: %w", err)
	}
	c.LastSynthesisCheckAt = lastCheck.Time
	if c.CostTracking, err = unmarshalJSONMap(costJSON); err != nil {
		return nil, fmt.Errorf("store/sqlite: unmarshal cost_tracking: %w", err)
	}
	return &c, nil
}

func (s *Store) UpsertSynthesisConfig(ctx context.Context, cfg *types.SynthesisConfig) error {
	cfg.Clamp()
	costJSON, err := marshalJSON(cfg.CostTracking)
	if err != nil {
		return fmt.Errorf("store/sqlite: marshal cost_tracking: %w", err)
	}
	cfg.UpdatedAt = now()
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = cfg.UpdatedAt
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO synthesis_configs (id, anima_id, time_weight, event_weight, token_weight,
			threshold, llm_temperature, llm_max_tokens, scheduler_interval_hours,
			last_synthesis_check_at, cost_tracking, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT (anima_id) DO UPDATE SET
			time_weight=excluded.time_weight, event_weight=excluded.event_weight,
			token_weight=excluded.token_weight, threshold=excluded.threshold,
			llm_temperature=excluded.llm_temperature, llm_max_tokens=excluded.llm_max_tokens,
			scheduler_interval_hours=excluded.scheduler_interval_hours,
			last_synthesis_check_at=excluded.last_synthesis_check_at,
			cost_tracking=excluded.cost_tracking, updated_at=excluded.updated_at
	`, cfg.ID, cfg.AnimaID, cfg.TimeWeight, cfg.EventWeight, cfg.TokenWeight, cfg.Threshold,
		cfg.LLMTemperature, cfg.LLMMaxTokens, cfg.SchedulerIntervalHours,
		timeOrNil(cfg.LastSynthesisCheckAt), costJSON, cfg.CreatedAt, cfg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store/sqlite: upsert synthesis config: %w", err)
	}
	return nil
}

func (s *Store) GetIOConfig(ctx context.Context, animaID string) (*types.IOConfig, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, anima_id, read_settings, write_settings, created_at, updated_at
		FROM io_configs WHERE anima_id = ?
	`, animaID)

	var c types.IOConfig
	var readJSON, writeJSON sql.NullString
	err := row.Scan(&c.ID, &c.AnimaID, &readJSON, &writeJSON, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &types.IOConfig{AnimaID: animaID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store/sqlite: get io config: %w", err)
	}
	if c.ReadSettings, err = unmarshalJSONMap(readJSON); err != nil {
		return nil, fmt.Errorf("store/sqlite: unmarshal read_settings: %w", err)
	}
	if c.WriteSettings, err = unmarshalJSONMap(writeJSON); err != nil {
		return nil, fmt.Errorf("store/sqlite: unmarshal write_settings: %w", err)
	}
	return &c, nil
}

func (s *Store) UpsertIOConfig(ctx context.Context, cfg *types.IOConfig) error {
	readJSON, err := marshalJSON(cfg.ReadSettings)
	if err != nil {
		return fmt.Errorf("store/sqlite: marshal read_settings: %w", err)
	}
	writeJSON, err := marshalJSON(cfg.WriteSettings)
	if err != nil {
		return fmt.Errorf("store/sqlite: marshal write_settings: %w", err)
	}
	cfg.UpdatedAt = now()
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = cfg.UpdatedAt
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO io_configs (id, anima_id, read_settings, write_settings, created_at, updated_at)
		VALUES (?,?,?,?,?,?)
		ON CONFLICT (anima_id) DO UPDATE SET
			read_settings=excluded.read_settings, write_settings=excluded.write_settings,
			updated_at=excluded.updated_at
	`, cfg.ID, cfg.AnimaID, readJSON, writeJSON, cfg.CreatedAt, cfg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store/sqlite: upsert io config: %w", err)
	}
	return nil
}

func (s *Store) GetIdentity(ctx context.Context, animaID string) (*types.Identity, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, anima_id, name, personality_type, communication_style, self_reflection,
			created_at, updated_at
		FROM identities WHERE anima_id = ?
	`, animaID)

	var id types.Identity
	var name, personality, style, reflectionJSON sql.NullString
	err := row.Scan(&id.ID, &id.AnimaID, &name, &personality, &style, &reflectionJSON,
		&id.CreatedAt, &id.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &types.Identity{AnimaID: animaID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store/sqlite: get identity: %w", err)
	}
	id.Name = name.String
	id.PersonalityType = personality.String
	id.CommunicationStyle = style.String
	if id.SelfReflection, err = unmarshalJSONMap(reflectionJSON); err != nil {
		return nil, fmt.Errorf("store/sqlite: unmarshal self_reflection: %w", err)
	}
	return &id, nil
}

func (s *Store) UpsertIdentity(ctx context.Context, id *types.Identity) error {
	reflectionJSON, err := marshalJSON(id.SelfReflection)
	if err != nil {
		return fmt.Errorf("store/sqlite: marshal self_reflection: %w", err)
	}
	id.UpdatedAt = now()
	if id.CreatedAt.IsZero() {
		id.CreatedAt = id.UpdatedAt
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO identities (id, anima_id, name, personality_type, communication_style,
			self_reflection, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?)
		ON CONFLICT (anima_id) DO UPDATE SET
			name=excluded.name, personality_type=excluded.personality_type,
			communication_style=excluded.communication_style,
			self_reflection=excluded.self_reflection, updated_at=excluded.updated_at
	`, id.ID, id.AnimaID, nullableString(id.Name), nullableString(id.PersonalityType),
		nullableString(id.CommunicationStyle), reflectionJSON, id.CreatedAt, id.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store/sqlite: upsert identity: %w", err)
	}
	return nil
}
