// Package staff manages doctors, nurses, and front-desk staff along with
// the weekly availability windows appointments are booked against.
package staff

import (
	"time"

	"github.com/google/uuid"

	"github.com/pedcare/clinic/pkg/apperror"
)

// Role mirrors the auth roles staff members sign in with.
type Role string

const (
	RoleDoctor    Role = "doctor"
	RoleNurse     Role = "nurse"
	RoleFrontDesk Role = "front_desk"
	RoleAdmin     Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleDoctor, RoleNurse, RoleFrontDesk, RoleAdmin:
		return true
	}
	return false
}

type Staff struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	FirstName string     `db:"first_name" json:"first_name"`
	LastName  string     `db:"last_name" json:"last_name"`
	Role      Role       `db:"role" json:"role"`
	Specialty *string    `db:"specialty" json:"specialty,omitempty"`
	Email     *string    `db:"email" json:"email,omitempty"`
	Phone     *string    `db:"phone" json:"phone,omitempty"`
	Active    bool       `db:"active" json:"active"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

func (s *Staff) Validate() error {
	if s.FirstName == "" || s.LastName == "" {
		return apperror.Validation("staff name is required")
	}
	if !s.Role.Valid() {
		return apperror.Validation("invalid staff role %q", s.Role)
	}
	return nil
}

// AvailabilityWindow is one recurring weekly slot in which a staff member
// accepts appointments. Minutes are measured from midnight clinic time.
type AvailabilityWindow struct {
	ID       uuid.UUID    `db:"id" json:"id"`
	StaffID  uuid.UUID    `db:"staff_id" json:"staff_id"`
	Weekday  time.Weekday `db:"weekday" json:"weekday"`
	StartMin int          `db:"start_min" json:"start_min"`
	EndMin   int          `db:"end_min" json:"end_min"`
}

const minutesPerDay = 24 * 60

func (w *AvailabilityWindow) Validate() error {
	if w.Weekday < time.Sunday || w.Weekday > time.Saturday {
		return apperror.Validation("invalid weekday %d", w.Weekday)
	}
	if w.StartMin < 0 || w.EndMin > minutesPerDay || w.StartMin >= w.EndMin {
		return apperror.Validation("availability window must satisfy 0 <= start < end <= %d", minutesPerDay)
	}
	return nil
}

// Covers reports whether the interval [start, end) on the window's weekday
// lies entirely inside the window.
func (w *AvailabilityWindow) Covers(start, end time.Time) bool {
	if start.Weekday() != w.Weekday {
		return false
	}
	startMin := start.Hour()*60 + start.Minute()
	endMin := end.Hour()*60 + end.Minute()
	return startMin >= w.StartMin && endMin <= w.EndMin
}
