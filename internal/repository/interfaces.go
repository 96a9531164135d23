package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pawline/notify-api/internal/model"
)

// All repository interfaces in one file
type (
	// MessageRepository persists delivery state for emergency messages.
	MessageRepository interface {
		Create(ctx context.Context, msg *model.Message) error
		Update(ctx context.Context, msg *model.Message) error
		Get(ctx context.Context, id uuid.UUID) (*model.Message, error)
		GetDueQueued(ctx context.Context, now time.Time, limit int) ([]*model.Message, error)
	}

	HospitalRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Hospital, error)
		ListPingEligible(ctx context.Context, pingedBefore time.Time) ([]*model.Hospital, error)
	}

	EmergencyRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Emergency, error)
		GetPet(ctx context.Context, id uuid.UUID) (*model.Pet, error)
	}

	// LivenessRepository owns the per-hospital liveness row plus the
	// append-only event log. Get returns nil without error when no row exists.
	LivenessRepository interface {
		Get(ctx context.Context, hospitalID uuid.UUID) (*model.LivenessState, error)
		Upsert(ctx context.Context, state *model.LivenessState) error
		ListStale(ctx context.Context, pingedBefore time.Time) ([]*model.LivenessState, error)
		AppendEvent(ctx context.Context, event *model.LivenessEvent) error
	}

	// SignalAlertRepository tracks the single active severe-weather alert.
	// GetActive returns nil without error when no alert is active.
	SignalAlertRepository interface {
		GetActive(ctx context.Context) (*model.SignalAlert, error)
		Create(ctx context.Context, alert *model.SignalAlert) error
		Lift(ctx context.Context, id uuid.UUID, liftedAt time.Time) error
	}

	ScheduledBroadcastRepository interface {
		GetDue(ctx context.Context, now time.Time) ([]*model.ScheduledBroadcast, error)
		// Claim conditionally moves a pending row to processing and reports
		// whether this caller won the claim.
		Claim(ctx context.Context, id uuid.UUID) (bool, error)
		Update(ctx context.Context, b *model.ScheduledBroadcast) error
	}

	PushTokenRepository interface {
		ListActive(ctx context.Context, language, role *string) ([]*model.PushToken, error)
		Deactivate(ctx context.Context, tokens []string) error
	}
)
