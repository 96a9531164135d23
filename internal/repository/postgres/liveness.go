package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pawline/notify-api/internal/model"
	"github.com/pawline/notify-api/internal/repository"
)

type livenessRepository struct {
	BaseRepository
}

func NewLivenessRepository(base BaseRepository) repository.LivenessRepository {
	return &livenessRepository{base}
}

func (r *livenessRepository) Get(ctx context.Context, hospitalID uuid.UUID) (*model.LivenessState, error) {
	query := `SELECT * FROM liveness_states WHERE hospital_id = $1`
	var state model.LivenessState
	err := r.db.GetContext(ctx, &state, query, hospitalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get liveness state: %w", err)
	}
	return &state, nil
}

func (r *livenessRepository) Upsert(ctx context.Context, state *model.LivenessState) error {
	now := time.Now()
	if state.CreatedAt.IsZero() {
		state.CreatedAt = now
	}
	state.UpdatedAt = now

	query := `
		INSERT INTO liveness_states (
			hospital_id, ping_enabled, status, last_ping_sent_at, last_ping_message_id,
			last_reply_at, last_reply_latency_seconds, no_reply_since, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
		ON CONFLICT (hospital_id) DO UPDATE SET
			ping_enabled = EXCLUDED.ping_enabled,
			status = EXCLUDED.status,
			last_ping_sent_at = EXCLUDED.last_ping_sent_at,
			last_ping_message_id = EXCLUDED.last_ping_message_id,
			last_reply_at = EXCLUDED.last_reply_at,
			last_reply_latency_seconds = EXCLUDED.last_reply_latency_seconds,
			no_reply_since = EXCLUDED.no_reply_since,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		state.HospitalID,
		state.PingEnabled,
		state.Status,
		state.LastPingSentAt,
		state.LastPingMessageID,
		state.LastReplyAt,
		state.LastReplyLatencySeconds,
		state.NoReplySince,
		state.CreatedAt,
		state.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert liveness state: %w", err)
	}
	return nil
}

// ListStale returns active states whose last ping went out before the cutoff
// with no reply since. These are the no-reply sweep candidates.
func (r *livenessRepository) ListStale(ctx context.Context, pingedBefore time.Time) ([]*model.LivenessState, error) {
	query := `
		SELECT * FROM liveness_states
		WHERE status = 'active'
		AND last_ping_sent_at IS NOT NULL
		AND last_ping_sent_at <= $1
		AND (last_reply_at IS NULL OR last_reply_at < last_ping_sent_at)
	`
	var states []*model.LivenessState
	err := r.db.SelectContext(ctx, &states, query, pingedBefore)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list stale liveness states: %w", err)
	}
	return states, nil
}

func (r *livenessRepository) AppendEvent(ctx context.Context, event *model.LivenessEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO liveness_events (
			id, hospital_id, direction, event_type, provider_message_id, payload, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.HospitalID,
		event.Direction,
		event.EventType,
		event.ProviderMessageID,
		event.Payload,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append liveness event: %w", err)
	}
	return nil
}
