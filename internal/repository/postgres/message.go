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

type messageRepository struct {
	BaseRepository
}

func NewMessageRepository(base BaseRepository) repository.MessageRepository {
	return &messageRepository{base}
}

func (r *messageRepository) Create(ctx context.Context, msg *model.Message) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	msg.CreatedAt = time.Now()
	msg.UpdatedAt = msg.CreatedAt

	query := `
		INSERT INTO messages (
			id, emergency_id, hospital_id, channel, recipient, subject, content,
			template_name, template_params, status, retry_count, next_attempt_at,
			provider_message_id, error_reason, sent_at, failed_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18
		)
	`
	_, err := r.db.ExecContext(ctx, query,
		msg.ID,
		msg.EmergencyID,
		msg.HospitalID,
		msg.Channel,
		msg.Recipient,
		msg.Subject,
		msg.Content,
		msg.TemplateName,
		msg.TemplateParams,
		msg.Status,
		msg.RetryCount,
		msg.NextAttemptAt,
		msg.ProviderMessageID,
		msg.ErrorReason,
		msg.SentAt,
		msg.FailedAt,
		msg.CreatedAt,
		msg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// Update rewrites the mutable delivery fields. Rows already in a terminal
// state are never touched; the WHERE clause enforces that at the database even
// if a stale in-memory copy tries.
func (r *messageRepository) Update(ctx context.Context, msg *model.Message) error {
	msg.UpdatedAt = time.Now()

	query := `
		UPDATE messages
		SET channel = $1,
			recipient = $2,
			status = $3,
			retry_count = $4,
			next_attempt_at = $5,
			provider_message_id = $6,
			error_reason = $7,
			sent_at = $8,
			failed_at = $9,
			updated_at = $10
		WHERE id = $11 AND status = 'queued'
	`
	_, err := r.db.ExecContext(ctx, query,
		msg.Channel,
		msg.Recipient,
		msg.Status,
		msg.RetryCount,
		msg.NextAttemptAt,
		msg.ProviderMessageID,
		msg.ErrorReason,
		msg.SentAt,
		msg.FailedAt,
		msg.UpdatedAt,
		msg.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}
	return nil
}

func (r *messageRepository) Get(ctx context.Context, id uuid.UUID) (*model.Message, error) {
	query := `SELECT * FROM messages WHERE id = $1`
	var msg model.Message
	if err := r.db.GetContext(ctx, &msg, query, id); err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return &msg, nil
}

func (r *messageRepository) GetDueQueued(ctx context.Context, now time.Time, limit int) ([]*model.Message, error) {
	query := `
		SELECT * FROM messages
		WHERE status = 'queued'
		AND next_attempt_at IS NOT NULL
		AND next_attempt_at <= $1
		ORDER BY next_attempt_at ASC
		LIMIT $2
	`
	var msgs []*model.Message
	err := r.db.SelectContext(ctx, &msgs, query, now, limit)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return msgs, err
}
