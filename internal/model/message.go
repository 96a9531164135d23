package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type MessageStatus string

const (
	MessageStatusQueued MessageStatus = "queued"
	MessageStatusSent   MessageStatus = "sent"
	MessageStatusFailed MessageStatus = "failed"
)

type MessageChannel string

const (
	ChannelChatTemplate MessageChannel = "chat_template"
	ChannelChatFreeform MessageChannel = "chat_freeform"
	ChannelEmail        MessageChannel = "email"
)

// Message is one delivery attempt record for one recipient. Rows are created
// by the broadcast orchestrator or the liveness prober and mutated only by the
// delivery engine. Once Status is sent or failed the row never changes again.
type Message struct {
	ID                uuid.UUID      `db:"id"`
	EmergencyID       uuid.UUID      `db:"emergency_id"`
	HospitalID        uuid.UUID      `db:"hospital_id"`
	Channel           MessageChannel `db:"channel"`
	Recipient         string         `db:"recipient"`
	Subject           string         `db:"subject"`
	Content           string         `db:"content"`
	TemplateName      string         `db:"template_name"`
	TemplateParams    pq.StringArray `db:"template_params"`
	Status            MessageStatus  `db:"status"`
	RetryCount        int            `db:"retry_count"`
	NextAttemptAt     *time.Time     `db:"next_attempt_at"`
	ProviderMessageID *string        `db:"provider_message_id"`
	ErrorReason       *string        `db:"error_reason"`
	SentAt            *time.Time     `db:"sent_at"`
	FailedAt          *time.Time     `db:"failed_at"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
}

// Terminal reports whether the message has reached a state that will never
// change again.
func (m *Message) Terminal() bool {
	return m.Status == MessageStatusSent || m.Status == MessageStatusFailed
}

// MessageEvent is published on the broker when a message reaches a terminal
// state, so the web layer can surface delivery outcomes.
type MessageEvent struct {
	MessageID   uuid.UUID      `json:"message_id"`
	EmergencyID uuid.UUID      `json:"emergency_id"`
	HospitalID  uuid.UUID      `json:"hospital_id"`
	Channel     MessageChannel `json:"channel"`
	Status      MessageStatus  `json:"status"`
	ErrorReason string         `json:"error_reason,omitempty"`
	OccurredAt  time.Time      `json:"occurred_at"`
}
