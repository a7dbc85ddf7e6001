// Package patient manages the clinic's patient registry: demographics,
// guardian contacts, and the date-of-birth/gender data the growth engine
// assesses against.
package patient

import (
	"time"

	"github.com/google/uuid"

	"github.com/pedcare/clinic/internal/domain/growth"
	"github.com/pedcare/clinic/pkg/apperror"
)

type Patient struct {
	ID            uuid.UUID     `db:"id" json:"id"`
	MRN           string        `db:"mrn" json:"mrn"`
	Active        bool          `db:"active" json:"active"`
	FirstName     string        `db:"first_name" json:"first_name"`
	LastName      string        `db:"last_name" json:"last_name"`
	DateOfBirth   time.Time     `db:"date_of_birth" json:"date_of_birth"`
	Gender        growth.Gender `db:"gender" json:"gender"`
	BloodGroup    *string       `db:"blood_group" json:"blood_group,omitempty"`
	Allergies     *string       `db:"allergies" json:"allergies,omitempty"`
	GuardianName  *string       `db:"guardian_name" json:"guardian_name,omitempty"`
	GuardianPhone *string       `db:"guardian_phone" json:"guardian_phone,omitempty"`
	Email         *string       `db:"email" json:"email,omitempty"`
	AddressLine1  *string       `db:"address_line1" json:"address_line1,omitempty"`
	City          *string       `db:"city" json:"city,omitempty"`
	Notes         *string       `db:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
	DeletedAt     *time.Time    `db:"deleted_at" json:"deleted_at,omitempty"`
}

// Validate checks the registration invariants. Date of birth is mandatory:
// every growth assessment is derived from it.
func (p *Patient) Validate() error {
	if p.FirstName == "" || p.LastName == "" {
		return apperror.Validation("patient name is required")
	}
	if p.DateOfBirth.IsZero() {
		return apperror.Validation("date of birth is required")
	}
	if p.DateOfBirth.After(time.Now()) {
		return apperror.Validation("date of birth cannot be in the future")
	}
	if !p.Gender.Valid() {
		return apperror.Validation("gender must be male or female")
	}
	return nil
}

// AgeMonths returns the patient's current age in fractional months.
func (p *Patient) AgeMonths() float64 {
	return growth.AgeMonthsFromDays(growth.AgeDaysAt(p.DateOfBirth, time.Now()))
}
