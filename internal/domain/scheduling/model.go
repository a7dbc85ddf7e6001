// Package scheduling books and manages appointments against doctor
// availability windows.
package scheduling

import (
	"time"

	"github.com/google/uuid"

	"github.com/pedcare/clinic/pkg/apperror"
)

// Status is the appointment lifecycle state.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCheckedIn Status = "checked_in"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

// validTransitions encodes the lifecycle: an appointment moves forward
// through check-in to completion, or terminates in cancelled/no-show.
var validTransitions = map[Status][]Status{
	StatusScheduled: {StatusCheckedIn, StatusCancelled, StatusNoShow},
	StatusCheckedIn: {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether from -> to is a legal lifecycle step.
func CanTransition(from, to Status) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Appointment struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	PatientID uuid.UUID  `db:"patient_id" json:"patient_id"`
	StaffID   uuid.UUID  `db:"staff_id" json:"staff_id"`
	StartTime time.Time  `db:"start_time" json:"start_time"`
	EndTime   time.Time  `db:"end_time" json:"end_time"`
	Status    Status     `db:"status" json:"status"`
	Reason    string     `db:"reason" json:"reason,omitempty"`
	Notes     *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

func (a *Appointment) Validate() error {
	if a.PatientID == uuid.Nil {
		return apperror.Validation("patient is required")
	}
	if a.StaffID == uuid.Nil {
		return apperror.Validation("staff member is required")
	}
	if a.StartTime.IsZero() || a.EndTime.IsZero() {
		return apperror.Validation("start and end time are required")
	}
	if !a.EndTime.After(a.StartTime) {
		return apperror.Validation("end time must be after start time")
	}
	return nil
}
