package immunization

import (
	"time"

	"github.com/google/uuid"

	"github.com/pedcare/clinic/pkg/apperror"
)

// ScheduleEntry is one dose slot in the static pediatric vaccine schedule.
// Codes are CVX. DueAgeDays is when the dose becomes due; OverdueAgeDays is
// when a still-missing dose turns overdue.
type ScheduleEntry struct {
	ID             uuid.UUID `db:"id" json:"id"`
	VaccineCode    string    `db:"vaccine_code" json:"vaccine_code"`
	VaccineName    string    `db:"vaccine_name" json:"vaccine_name"`
	DoseNumber     int       `db:"dose_number" json:"dose_number"`
	DueAgeDays     int       `db:"due_age_days" json:"due_age_days"`
	OverdueAgeDays int       `db:"overdue_age_days" json:"overdue_age_days"`
}

// Record is an administered dose.
type Record struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	PatientID        uuid.UUID  `db:"patient_id" json:"patient_id"`
	VaccineCode      string     `db:"vaccine_code" json:"vaccine_code"`
	VaccineName      string     `db:"vaccine_name" json:"vaccine_name"`
	DoseNumber       int        `db:"dose_number" json:"dose_number"`
	AdministeredAt   time.Time  `db:"administered_at" json:"administered_at"`
	LotNumber        *string    `db:"lot_number" json:"lot_number,omitempty"`
	SiteCode         *string    `db:"site_code" json:"site_code,omitempty"`
	AdministeredByID string     `db:"administered_by_id" json:"administered_by_id,omitempty"`
	Notes            string     `db:"notes" json:"notes,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
}

func (r *Record) Validate() error {
	if r.PatientID == uuid.Nil {
		return apperror.Validation("patient id is required")
	}
	if r.VaccineCode == "" {
		return apperror.Validation("vaccine code is required")
	}
	if r.DoseNumber < 1 {
		return apperror.Validation("dose number must be at least 1")
	}
	if r.AdministeredAt.IsZero() {
		return apperror.Validation("administered date is required")
	}
	if r.AdministeredAt.After(time.Now()) {
		return apperror.Validation("administered date cannot be in the future")
	}
	return nil
}

// ForecastStatus buckets a missing dose by the patient's age.
type ForecastStatus string

const (
	StatusUpcoming ForecastStatus = "upcoming"
	StatusDue      ForecastStatus = "due"
	StatusOverdue  ForecastStatus = "overdue"
)

// ForecastItem is one missing dose with its urgency bucket.
type ForecastItem struct {
	VaccineCode    string         `json:"vaccine_code"`
	VaccineName    string         `json:"vaccine_name"`
	DoseNumber     int            `json:"dose_number"`
	DueAgeDays     int            `json:"due_age_days"`
	OverdueAgeDays int            `json:"overdue_age_days"`
	Status         ForecastStatus `json:"status"`
}

// statusFor buckets a schedule entry against the patient's age in days.
// Boundaries: due starts at DueAgeDays inclusive, overdue at OverdueAgeDays
// inclusive.
func statusFor(entry *ScheduleEntry, ageDays int) ForecastStatus {
	switch {
	case ageDays < entry.DueAgeDays:
		return StatusUpcoming
	case ageDays < entry.OverdueAgeDays:
		return StatusDue
	default:
		return StatusOverdue
	}
}
