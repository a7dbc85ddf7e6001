package growth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// StandardRepository provides read access to the WHO reference tables.
type StandardRepository interface {
	// FindBounding returns the closest rows at or below and at or above
	// ageDays for the given gender and chart. Either may be nil when no row
	// exists on that side.
	FindBounding(ctx context.Context, gender Gender, chart ChartType, ageDays int) (lower, upper *GrowthStandard, err error)
	BulkInsert(ctx context.Context, rows []*GrowthStandard) error
	Count(ctx context.Context) (int, error)
}

// RecordRepository persists assessed growth records. All reads exclude
// soft-deleted rows.
type RecordRepository interface {
	Create(ctx context.Context, rec *GrowthRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*GrowthRecord, error)
	Update(ctx context.Context, rec *GrowthRecord) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	// ListByPatient returns a page sorted descending by date plus the total.
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*GrowthRecord, int, error)
	// HistoryByPatient returns the full series sorted ascending by date.
	HistoryByPatient(ctx context.Context, patientID uuid.UUID) ([]*GrowthRecord, error)
	ExistsForDate(ctx context.Context, patientID uuid.UUID, dateISO string) (bool, error)
	// CountAbnormalSince counts non-NORMAL records dated at or after since.
	CountAbnormalSince(ctx context.Context, since time.Time) (int, error)
}
