package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/scrypster/ltam/internal/store"
	"github.com/scrypster/ltam/pkg/types"
)

// GetSynthesisConfig materializes §4.6's defaults the first time an anima
// is read: a missing row is not an error, it is an unconfigured anima.
func (s *Store) GetSynthesisConfig(ctx context.Context, animaID string) (*types.SynthesisConfig, error) {
	q := store.QuerierFromContext(ctx, s.db)
	row := q.QueryRowContext(ctx, `
		SELECT id, anima_id, time_weight, event_weight, token_weight, threshold,
			llm_temperature, llm_max_tokens, scheduler_interval_hours, last_synthesis_check_at,
			cost_tracking, created_at, updated_at
		FROM synthesis_configs WHERE anima_id = $1
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
		return nil, fmt.Errorf("store/postgres: get synthesis config: %w", err)
	}
	c.LastSynthesisCheckAt = lastCheck.Time
	if c.CostTracking, err = unmarshalJSONMap(costJSON); err != nil {
		return nil, fmt.Errorf("store/postgres: unmarshal cost_tracking: %w", err)
	}
	return &c, nil
}

func (s *Store) UpsertSynthesisConfig(ctx context.Context, cfg *types.SynthesisConfig) error {
	q := store.QuerierFromContext(ctx, s.db)
	cfg.Clamp()
	costJSON, err := marshalJSON(cfg.CostTracking)
	if err != nil {
		return fmt.Errorf("store/postgres: marshal cost_tracking: %w", err)
	}
	cfg.UpdatedAt = time.Now().UTC()
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = cfg.UpdatedAt
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO synthesis_configs (id, anima_id, time_weight, event_weight, token_weight,
			threshold, llm_temperature, llm_max_tokens, scheduler_interval_hours,
			last_synthesis_check_at, cost_tracking, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (anima_id) DO UPDATE SET
			time_weight=EXCLUDED.time_weight, event_weight=EXCLUDED.event_weight,
			token_weight=EXCLUDED.token_weight, threshold=EXCLUDED.threshold,
			llm_temperature=EXCLUDED.llm_temperature, llm_max_tokens=EXCLUDED.llm_max_tokens,
			scheduler_interval_hours=EXCLUDED.scheduler_interval_hours,
			last_synthesis_check_at=EXCLUDED.last_synthesis_check_at,
			cost_tracking=EXCLUDED.cost_tracking, updated_at=EXCLUDED.updated_at
	`, cfg.ID, cfg.AnimaID, cfg.TimeWeight, cfg.EventWeight, cfg.TokenWeight, cfg.Threshold,
		cfg.LLMTemperature, cfg.LLMMaxTokens, cfg.SchedulerIntervalHours,
		nullableTime(cfg.LastSynthesisCheckAt), costJSON, cfg.CreatedAt, cfg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store/postgres: upsert synthesis config: %w", err)
	}
	return nil
}

func (s *Store) GetIOConfig(ctx context.Context, animaID string) (*types.IOConfig, error) {
	q := store.QuerierFromContext(ctx, s.db)
	row := q.QueryRowContext(ctx, `
		SELECT id, anima_id, read_settings, write_settings, created_at, updated_at
		FROM io_configs WHERE anima_id = $1
	`, animaID)

	var c types.IOConfig
	var readJSON, writeJSON sql.NullString
	err := row.Scan(&c.ID, &c.AnimaID, &readJSON, &writeJSON, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &types.IOConfig{AnimaID: animaID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store/postgres: get io config: %w", err)
	}
	if c.ReadSettings, err = unmarshalJSONMap(readJSON); err != nil {
		return nil, fmt.Errorf("store/postgres: unmarshal read_settings: %w", err)
	}
	if c.WriteSettings, err = unmarshalJSONMap(writeJSON); err != nil {
		return nil, fmt.Errorf("store/postgres: unmarshal write_settings: %w", err)
	}
	return &c, nil
}

func (s *Store) UpsertIOConfig(ctx context.Context, cfg *types.IOConfig) error {
	q := store.QuerierFromContext(ctx, s.db)
	readJSON, err := marshalJSON(cfg.ReadSettings)
	if err != nil {
		return fmt.Errorf("store/postgres: marshal read_settings: %w", err)
	}
	writeJSON, err := marshalJSON(cfg.WriteSettings)
	if err != nil {
		return fmt.Errorf("store/postgres: marshal write_settings: %w", err)
	}
	cfg.UpdatedAt = time.Now().UTC()
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = cfg.UpdatedAt
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO io_configs (id, anima_id, read_settings, write_settings, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (anima_id) DO UPDATE SET
			read_settings=EXCLUDED.read_settings, write_settings=EXCLUDED.write_settings,
			updated_at=EXCLUDED.updated_at
	`, cfg.ID, cfg.AnimaID, readJSON, writeJSON, cfg.CreatedAt, cfg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store/postgres: upsert io config: %w", err)
	}
	return nil
}

func (s *Store) GetIdentity(ctx context.Context, animaID string) (*types.Identity, error) {
	q := store.QuerierFromContext(ctx, s.db)
	row := q.QueryRowContext(ctx, `
		SELECT id, anima_id, name, personality_type, communication_style, self_reflection,
			created_at, updated_at
		FROM identities WHERE anima_id = $1
	`, animaID)

	var id types.Identity
	var name, personality, style, reflectionJSON sql.NullString
	err := row.Scan(&id.ID, &id.AnimaID, &name, &personality, &style, &reflectionJSON,
		&id.CreatedAt, &id.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &types.Identity{AnimaID: animaID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store/postgres: get identity: %w", err)
	}
	id.Name = name.String
	id.PersonalityType = personality.String
	id.CommunicationStyle = style.String
	if id.SelfReflection, err = unmarshalJSONMap(reflectionJSON); err != nil {
		return nil, fmt.Errorf("store/postgres: unmarshal self_reflection: %w", err)
	}
	return &id, nil
}

func (s *Store) UpsertIdentity(ctx context.Context, id *types.Identity) error {
	q := store.QuerierFromContext(ctx, s.db)
	reflectionJSON, err := marshalJSON(id.SelfReflection)
	if err != nil {
		return fmt.Errorf("store/postgres: marshal self_reflection: %w", err)
	}
	id.UpdatedAt = time.Now().UTC()
	if id.CreatedAt.IsZero() {
		id.CreatedAt = id.UpdatedAt
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO identities (id, anima_id, name, personality_type, communication_style,
			self_reflection, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (anima_id) DO UPDATE SET
			name=EXCLUDED.name, personality_type=EXCLUDED.personality_type,
			communication_style=EXCLUDED.communication_style,
			self_reflection=EXCLUDED.self_reflection, updated_at=EXCLUDED.updated_at
	`, id.ID, id.AnimaID, nullableString(id.Name), nullableString(id.PersonalityType),
		nullableString(id.CommunicationStyle), reflectionJSON, id.CreatedAt, id.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store/postgres: upsert identity: %w", err)
	}
	return nil
}
