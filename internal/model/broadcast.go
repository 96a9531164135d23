package model

import (
	"time"

	"github.com/google/uuid"
)

type BroadcastStatus string

const (
	BroadcastStatusPending    BroadcastStatus = "pending"
	BroadcastStatusProcessing BroadcastStatus = "processing"
	BroadcastStatusSent       BroadcastStatus = "sent"
	BroadcastStatusFailed     BroadcastStatus = "failed"
)

// ScheduledBroadcast is a time-scheduled, audience-targeted push notification
// created ahead of time by the admin surface and consumed exactly once by the
// dispatcher when due.
type ScheduledBroadcast struct {
	ID               uuid.UUID       `db:"id"`
	Title            string          `db:"title"`
	Body             string          `db:"body"`
	TargetLanguage   *string         `db:"target_language"`
	TargetRole       *string         `db:"target_role"`
	ScheduledFor     time.Time       `db:"scheduled_for"`
	Status           BroadcastStatus `db:"status"`
	RecipientCount   int             `db:"recipient_count"`
	ProviderResponse *string         `db:"provider_response"`
	SentAt           *time.Time      `db:"sent_at"`
	CreatedAt        time.Time       `db:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at"`
}

// PushToken is one device subscription in the push audience store. The engine
// only reads tokens and deactivates the ones the provider reports as dead.
type PushToken struct {
	ID        uuid.UUID `db:"id"`
	Token     string    `db:"token"`
	Language  string    `db:"language"`
	Role      string    `db:"role"`
	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
