package dosing

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, r *DoseRule) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]*DoseRule, error)
	// FindByDrugAndRoute returns matching rules ordered by min_age_days so the
	// tightest age gate wins a tie.
	FindByDrugAndRoute(ctx context.Context, drugCode, route string) ([]*DoseRule, error)
}
