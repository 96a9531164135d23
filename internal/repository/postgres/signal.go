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

type signalAlertRepository struct {
	BaseRepository
}

func NewSignalAlertRepository(base BaseRepository) repository.SignalAlertRepository {
	return &signalAlertRepository{base}
}

func (r *signalAlertRepository) GetActive(ctx context.Context) (*model.SignalAlert, error) {
	query := `SELECT * FROM signal_alerts WHERE is_active = TRUE ORDER BY issued_at DESC LIMIT 1`
	var alert model.SignalAlert
	err := r.db.GetContext(ctx, &alert, query)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active signal alert: %w", err)
	}
	return &alert, nil
}

func (r *signalAlertRepository) Create(ctx context.Context, alert *model.SignalAlert) error {
	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}
	alert.CreatedAt = time.Now()
	alert.UpdatedAt = alert.CreatedAt

	query := `
		INSERT INTO signal_alerts (
			id, signal_code, severity_level, issued_at, is_active, lifted_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		alert.ID,
		alert.SignalCode,
		alert.SeverityLevel,
		alert.IssuedAt,
		alert.IsActive,
		alert.LiftedAt,
		alert.CreatedAt,
		alert.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create signal alert: %w", err)
	}
	return nil
}

func (r *signalAlertRepository) Lift(ctx context.Context, id uuid.UUID, liftedAt time.Time) error {
	query := `
		UPDATE signal_alerts
		SET is_active = FALSE, lifted_at = $1, updated_at = $2
		WHERE id = $3 AND is_active = TRUE
	`
	_, err := r.db.ExecContext(ctx, query, liftedAt, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to lift signal alert: %w", err)
	}
	return nil
}
