package patient

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists patients. Reads exclude soft-deleted rows.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByMRN(ctx context.Context, mrn string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	// List returns a page filtered by an optional name/MRN search term.
	List(ctx context.Context, search string, limit, offset int) ([]*Patient, int, error)
	Count(ctx context.Context) (int, error)
}
