package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	Reschedule(ctx context.Context, id uuid.UUID, start, end time.Time) error
	// HasOverlap reports whether the staff member has a live (scheduled or
	// checked-in) appointment intersecting [start, end), excluding the
	// appointment with excludeID when non-nil.
	HasOverlap(ctx context.Context, staffID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	ListByStaffAndDay(ctx context.Context, staffID uuid.UUID, day time.Time) ([]*Appointment, error)
	CountByDay(ctx context.Context, day time.Time) (total, completed, cancelled int, err error)
}
