package immunization

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ScheduleRepository reads the static pediatric vaccine schedule.
type ScheduleRepository interface {
	List(ctx context.Context) ([]*ScheduleEntry, error)
	// BulkInsert upserts schedule rows, keyed on (vaccine_code, dose_number).
	BulkInsert(ctx context.Context, entries []*ScheduleEntry) (int, error)
	Count(ctx context.Context) (int, error)
}

// RecordRepository persists administered doses.
type RecordRepository interface {
	Create(ctx context.Context, r *Record) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Record, int, error)
	// ExistsDose reports whether the patient already has this vaccine dose.
	ExistsDose(ctx context.Context, patientID uuid.UUID, vaccineCode string, doseNumber int) (bool, error)
	// CountSince counts doses administered at or after the given time.
	CountSince(ctx context.Context, since time.Time) (int, error)
}
