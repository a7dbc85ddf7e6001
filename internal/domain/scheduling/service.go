package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/pedcare/clinic/internal/platform/cache"
	"github.com/pedcare/clinic/internal/platform/db"
	"github.com/pedcare/clinic/pkg/apperror"
)

// AvailabilityChecker reports whether a staff member accepts appointments in
// a given interval. Satisfied by the staff service.
type AvailabilityChecker interface {
	IsAvailable(ctx context.Context, staffID uuid.UUID, start, end time.Time) (bool, error)
}

// PatientChecker verifies a patient exists before booking. Satisfied by the
// patient service's directory adapter through a thin closure, or any lookup
// returning a not-found error for unknown patients.
type PatientChecker func(ctx context.Context, patientID uuid.UUID) error

type Service struct {
	repo         Repository
	availability AvailabilityChecker
	checkPatient PatientChecker
	versions     *cache.Versions
	log          zerolog.Logger
	runTx        func(ctx context.Context, fn func(ctx context.Context) error) error
}

func NewService(repo Repository, availability AvailabilityChecker, checkPatient PatientChecker,
	versions *cache.Versions, pool *pgxpool.Pool, logger zerolog.Logger) *Service {
	return &Service{
		repo:         repo,
		availability: availability,
		checkPatient: checkPatient,
		versions:     versions,
		log:          logger,
		runTx: func(ctx context.Context, fn func(ctx context.Context) error) error {
			return db.RunInTx(ctx, pool, fn)
		},
	}
}

// Book creates an appointment. Booking outside the doctor's availability is
// a validation failure; colliding with an existing live appointment is a
// conflict.
func (s *Service) Book(ctx context.Context, a *Appointment) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if err := s.checkPatient(ctx, a.PatientID); err != nil {
		return err
	}

	available, err := s.availability.IsAvailable(ctx, a.StaffID, a.StartTime, a.EndTime)
	if err != nil {
		return err
	}
	if !available {
		return apperror.Validation("requested time is outside the doctor's availability")
	}

	a.Status = StatusScheduled
	err = s.runTx(ctx, func(ctx context.Context) error {
		overlap, err := s.repo.HasOverlap(ctx, a.StaffID, a.StartTime, a.EndTime, nil)
		if err != nil {
			return apperror.Internal("check appointment overlap", err)
		}
		if overlap {
			return apperror.Conflict("the doctor already has an appointment in that interval")
		}
		return s.repo.Create(ctx, a)
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, a.PatientID)
	return nil
}

// Reschedule moves a scheduled appointment to a new interval, re-running the
// availability and overlap checks.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, start, end time.Time) (*Appointment, error) {
	if !end.After(start) {
		return nil, apperror.Validation("end time must be after start time")
	}

	var result *Appointment
	err := s.runTx(ctx, func(ctx context.Context) error {
		a, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if a.Status != StatusScheduled {
			return apperror.Validation("only scheduled appointments can be rescheduled")
		}

		available, err := s.availability.IsAvailable(ctx, a.StaffID, start, end)
		if err != nil {
			return err
		}
		if !available {
			return apperror.Validation("requested time is outside the doctor's availability")
		}

		overlap, err := s.repo.HasOverlap(ctx, a.StaffID, start, end, &id)
		if err != nil {
			return apperror.Internal("check appointment overlap", err)
		}
		if overlap {
			return apperror.Conflict("the doctor already has an appointment in that interval")
		}

		if err := s.repo.Reschedule(ctx, id, start, end); err != nil {
			return err
		}
		a.StartTime, a.EndTime = start, end
		result = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, result.PatientID)
	return result, nil
}

// Transition moves an appointment through its lifecycle.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, to Status) (*Appointment, error) {
	var result *Appointment
	err := s.runTx(ctx, func(ctx context.Context) error {
		a, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !CanTransition(a.Status, to) {
			return apperror.Validation("cannot move appointment from %s to %s", a.Status, to)
		}
		if err := s.repo.UpdateStatus(ctx, id, to); err != nil {
			return err
		}
		a.Status = to
		result = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, result.PatientID)
	return result, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) DaySchedule(ctx context.Context, staffID uuid.UUID, day time.Time) ([]*Appointment, error) {
	return s.repo.ListByStaffAndDay(ctx, staffID, day)
}

func (s *Service) invalidate(ctx context.Context, patientID uuid.UUID) {
	s.versions.InvalidatePatient(ctx, db.ClinicFromContext(ctx), patientID.String())
}
