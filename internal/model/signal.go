package model

import (
	"time"

	"github.com/google/uuid"
)

// SignalAlert is a persisted severe-weather warning observed on the external
// feed. At most one row is active per signal family; a code change closes the
// old row and opens a new one so history is preserved.
type SignalAlert struct {
	ID            uuid.UUID  `db:"id"`
	SignalCode    string     `db:"signal_code"`
	SeverityLevel int        `db:"severity_level"`
	IssuedAt      time.Time  `db:"issued_at"`
	IsActive      bool       `db:"is_active"`
	LiftedAt      *time.Time `db:"lifted_at"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}
