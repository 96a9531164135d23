package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type LivenessStatus string

const (
	LivenessStatusActive  LivenessStatus = "active"
	LivenessStatusNoReply LivenessStatus = "no_reply"
	LivenessStatusPaused  LivenessStatus = "paused"
)

// LivenessState tracks whether a hospital's chat channel answers the daily
// health-check ping. One row per chat-contactable hospital, created lazily on
// the first eligible ping. Paused is a manual sink: the prober never
// transitions a paused hospital back on its own.
type LivenessState struct {
	HospitalID              uuid.UUID      `db:"hospital_id"`
	PingEnabled             bool           `db:"ping_enabled"`
	Status                  LivenessStatus `db:"status"`
	LastPingSentAt          *time.Time     `db:"last_ping_sent_at"`
	LastPingMessageID       *uuid.UUID     `db:"last_ping_message_id"`
	LastReplyAt             *time.Time     `db:"last_reply_at"`
	LastReplyLatencySeconds *int64         `db:"last_reply_latency_seconds"`
	NoReplySince            *time.Time     `db:"no_reply_since"`
	CreatedAt               time.Time      `db:"created_at"`
	UpdatedAt               time.Time      `db:"updated_at"`
}

type LivenessDirection string

const (
	LivenessDirectionOutbound LivenessDirection = "outbound"
	LivenessDirectionInbound  LivenessDirection = "inbound"
)

type LivenessEventType string

const (
	LivenessEventPingSent      LivenessEventType = "ping_sent"
	LivenessEventReplyReceived LivenessEventType = "reply_received"
	LivenessEventNoReplyMarked LivenessEventType = "no_reply_marked"
)

// LivenessEvent is an append-only audit row for every liveness transition.
type LivenessEvent struct {
	ID                uuid.UUID         `db:"id"`
	HospitalID        uuid.UUID         `db:"hospital_id"`
	Direction         LivenessDirection `db:"direction"`
	EventType         LivenessEventType `db:"event_type"`
	ProviderMessageID *string           `db:"provider_message_id"`
	Payload           json.RawMessage   `db:"payload"`
	CreatedAt         time.Time         `db:"created_at"`
}
