package staff

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, s *Staff) error
	GetByID(ctx context.Context, id uuid.UUID) (*Staff, error)
	Update(ctx context.Context, s *Staff) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, role Role, limit, offset int) ([]*Staff, int, error)

	ReplaceAvailability(ctx context.Context, staffID uuid.UUID, windows []*AvailabilityWindow) error
	AvailabilityFor(ctx context.Context, staffID uuid.UUID) ([]*AvailabilityWindow, error)
}
