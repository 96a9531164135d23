package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pawline/notify-api/internal/model"
	"github.com/pawline/notify-api/internal/repository"
)

type hospitalRepository struct {
	BaseRepository
}

func NewHospitalRepository(base BaseRepository) repository.HospitalRepository {
	return &hospitalRepository{base}
}

func (r *hospitalRepository) Get(ctx context.Context, id uuid.UUID) (*model.Hospital, error) {
	query := `SELECT * FROM hospitals WHERE id = $1`
	var hospital model.Hospital
	if err := r.db.GetContext(ctx, &hospital, query, id); err != nil {
		return nil, fmt.Errorf("failed to get hospital: %w", err)
	}
	return &hospital, nil
}

// ListPingEligible returns chat-contactable hospitals that have ping enabled,
// are not paused or marked no-reply, and were last pinged before the cutoff
// (or never pinged at all).
func (r *hospitalRepository) ListPingEligible(ctx context.Context, pingedBefore time.Time) ([]*model.Hospital, error) {
	query := `
		SELECT h.*
		FROM hospitals h
		LEFT JOIN liveness_states ls ON ls.hospital_id = h.id
		WHERE h.ping_enabled = TRUE
		AND (COALESCE(h.chat_id, '') <> '' OR COALESCE(h.chat_number, '') <> '')
		AND (ls.hospital_id IS NULL
			OR (ls.ping_enabled = TRUE
				AND ls.status = 'active'
				AND (ls.last_ping_sent_at IS NULL OR ls.last_ping_sent_at <= $1)))
	`
	var hospitals []*model.Hospital
	if err := r.db.SelectContext(ctx, &hospitals, query, pingedBefore); err != nil {
		return nil, fmt.Errorf("failed to list ping-eligible hospitals: %w", err)
	}
	return hospitals, nil
}
