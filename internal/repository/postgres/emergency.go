package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pawline/notify-api/internal/model"
	"github.com/pawline/notify-api/internal/repository"
)

type emergencyRepository struct {
	BaseRepository
}

func NewEmergencyRepository(base BaseRepository) repository.EmergencyRepository {
	return &emergencyRepository{base}
}

func (r *emergencyRepository) Get(ctx context.Context, id uuid.UUID) (*model.Emergency, error) {
	query := `SELECT * FROM emergencies WHERE id = $1`
	var emergency model.Emergency
	if err := r.db.GetContext(ctx, &emergency, query, id); err != nil {
		return nil, fmt.Errorf("failed to get emergency: %w", err)
	}
	return &emergency, nil
}

func (r *emergencyRepository) GetPet(ctx context.Context, id uuid.UUID) (*model.Pet, error) {
	query := `SELECT * FROM pets WHERE id = $1`
	var pet model.Pet
	if err := r.db.GetContext(ctx, &pet, query, id); err != nil {
		return nil, fmt.Errorf("failed to get pet: %w", err)
	}
	return &pet, nil
}
