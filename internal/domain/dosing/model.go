package dosing

import (
	"time"

	"github.com/google/uuid"

	"github.com/pedcare/clinic/pkg/apperror"
)

// DoseRule is a weight-based dosing rule for one drug and route, optionally
// gated by patient age in days. Nil age gates mean unbounded on that side.
type DoseRule struct {
	ID              uuid.UUID `db:"id" json:"id"`
	DrugCode        string    `db:"drug_code" json:"drug_code"`
	DrugName        string    `db:"drug_name" json:"drug_name"`
	Route           string    `db:"route" json:"route"`
	MinAgeDays      *int      `db:"min_age_days" json:"min_age_days,omitempty"`
	MaxAgeDays      *int      `db:"max_age_days" json:"max_age_days,omitempty"`
	MgPerKg         float64   `db:"mg_per_kg" json:"mg_per_kg"`
	MaxSingleDoseMg *float64  `db:"max_single_dose_mg" json:"max_single_dose_mg,omitempty"`
	MaxDailyDoseMg  *float64  `db:"max_daily_dose_mg" json:"max_daily_dose_mg,omitempty"`
	FrequencyPerDay int       `db:"frequency_per_day" json:"frequency_per_day"`
	Notes           string    `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

func (r *DoseRule) Validate() error {
	if r.DrugCode == "" {
		return apperror.Validation("drug code is required")
	}
	if r.DrugName == "" {
		return apperror.Validation("drug name is required")
	}
	if r.Route == "" {
		return apperror.Validation("route is required")
	}
	if r.MgPerKg <= 0 {
		return apperror.Validation("mg per kg must be positive")
	}
	if r.FrequencyPerDay < 1 {
		return apperror.Validation("frequency per day must be at least 1")
	}
	if r.MinAgeDays != nil && *r.MinAgeDays < 0 {
		return apperror.Validation("minimum age cannot be negative")
	}
	if r.MinAgeDays != nil && r.MaxAgeDays != nil && *r.MaxAgeDays < *r.MinAgeDays {
		return apperror.Validation("maximum age cannot be below minimum age")
	}
	return nil
}

// AppliesTo reports whether the rule's age gates admit the given age.
func (r *DoseRule) AppliesTo(ageDays int) bool {
	if r.MinAgeDays != nil && ageDays < *r.MinAgeDays {
		return false
	}
	if r.MaxAgeDays != nil && ageDays > *r.MaxAgeDays {
		return false
	}
	return true
}

// DoseResult is a computed dose for one patient. Capped flags record which
// ceiling bound the computation so the clinician can see why the per-kg
// number was reduced.
type DoseResult struct {
	DrugCode        string    `json:"drug_code"`
	DrugName        string    `json:"drug_name"`
	Route           string    `json:"route"`
	WeightKg        float64   `json:"weight_kg"`
	WeightDate      time.Time `json:"weight_date"`
	DoseMg          float64   `json:"dose_mg"`
	FrequencyPerDay int       `json:"frequency_per_day"`
	DailyDoseMg     float64   `json:"daily_dose_mg"`
	CappedBySingle  bool      `json:"capped_by_single_dose"`
	CappedByDaily   bool      `json:"capped_by_daily_dose"`
	Notes           string    `json:"notes,omitempty"`
}
