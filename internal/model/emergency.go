package model

import (
	"time"

	"github.com/google/uuid"
)

// Emergency is a submitted emergency request. Optional detail fields are
// empty strings when the submitter left them out; the content builder renders
// those with a language-correct placeholder, never blank.
type Emergency struct {
	ID           uuid.UUID  `db:"id"`
	PetID        *uuid.UUID `db:"pet_id"`
	Species      string     `db:"species"`
	Breed        string     `db:"breed"`
	Age          string     `db:"age"`
	Weight       string     `db:"weight"`
	Symptom      string     `db:"symptom"`
	MedicalNotes string     `db:"medical_notes"`
	Location     string     `db:"location"`
	ContactName  string     `db:"contact_name"`
	ContactPhone string     `db:"contact_phone"`
	Language     string     `db:"language"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

// Pet is a registered pet profile linked to an emergency when the submitter
// was signed in.
type Pet struct {
	ID                   uuid.UUID  `db:"id"`
	Name                 string     `db:"name"`
	Species              string     `db:"species"`
	Breed                string     `db:"breed"`
	Age                  string     `db:"age"`
	Weight               string     `db:"weight"`
	PriorVisitHospitalID *uuid.UUID `db:"prior_visit_hospital_id"`
	CreatedAt            time.Time  `db:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at"`
}
