package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/pawline/notify-api/internal/model"
	"github.com/pawline/notify-api/internal/repository"
)

type scheduledBroadcastRepository struct {
	BaseRepository
}

func NewScheduledBroadcastRepository(base BaseRepository) repository.ScheduledBroadcastRepository {
	return &scheduledBroadcastRepository{base}
}

func (r *scheduledBroadcastRepository) GetDue(ctx context.Context, now time.Time) ([]*model.ScheduledBroadcast, error) {
	query := `
		SELECT * FROM scheduled_broadcasts
		WHERE status = 'pending'
		AND scheduled_for <= $1
	`
	var broadcasts []*model.ScheduledBroadcast
	err := r.db.SelectContext(ctx, &broadcasts, query, now)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get due broadcasts: %w", err)
	}
	return broadcasts, nil
}

func (r *scheduledBroadcastRepository) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE scheduled_broadcasts
		SET status = 'processing', updated_at = $1
		WHERE id = $2 AND status = 'pending'
	`
	result, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return false, fmt.Errorf("failed to claim broadcast: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *scheduledBroadcastRepository) Update(ctx context.Context, b *model.ScheduledBroadcast) error {
	b.UpdatedAt = time.Now()

	query := `
		UPDATE scheduled_broadcasts
		SET status = $1,
			recipient_count = $2,
			provider_response = $3,
			sent_at = $4,
			updated_at = $5
		WHERE id = $6
	`
	_, err := r.db.ExecContext(ctx, query,
		b.Status,
		b.RecipientCount,
		b.ProviderResponse,
		b.SentAt,
		b.UpdatedAt,
		b.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update broadcast: %w", err)
	}
	return nil
}

type pushTokenRepository struct {
	BaseRepository
}

func NewPushTokenRepository(base BaseRepository) repository.PushTokenRepository {
	return &pushTokenRepository{base}
}

func (r *pushTokenRepository) ListActive(ctx context.Context, language, role *string) ([]*model.PushToken, error) {
	query := `
		SELECT * FROM push_tokens
		WHERE is_active = TRUE
		AND ($1::text IS NULL OR language = $1)
		AND ($2::text IS NULL OR role = $2)
	`
	var tokens []*model.PushToken
	err := r.db.SelectContext(ctx, &tokens, query, language, role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list active push tokens: %w", err)
	}
	return tokens, nil
}

func (r *pushTokenRepository) Deactivate(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}

	query := `UPDATE push_tokens SET is_active = FALSE, updated_at = NOW() WHERE token = ANY($1)`
	_, err := r.db.ExecContext(ctx, query, pq.Array(tokens))
	if err != nil {
		return fmt.Errorf("failed to deactivate push tokens: %w", err)
	}
	return nil
}
