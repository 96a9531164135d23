package model

import (
	"time"

	"github.com/google/uuid"
)

// Hospital is the directory record the engine needs for contact routing.
// ChatID is a dedicated provider conversation, ChatNumber a phone-number
// destination that requires an approved template.
type Hospital struct {
	ID          uuid.UUID `db:"id"`
	Name        string    `db:"name"`
	ChatID      *string   `db:"chat_id"`
	ChatNumber  *string   `db:"chat_number"`
	Email       *string   `db:"email"`
	PingEnabled bool      `db:"ping_enabled"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// ChatContactable reports whether the hospital can receive chat messages at all.
func (h *Hospital) ChatContactable() bool {
	return (h.ChatID != nil && *h.ChatID != "") || (h.ChatNumber != nil && *h.ChatNumber != "")
}
