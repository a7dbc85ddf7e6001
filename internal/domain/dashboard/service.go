// Package dashboard aggregates cross-domain counters into a clinic summary.
// It reads through the clinic-versioned cache so any mutation elsewhere makes
// the next read recompute.
package dashboard

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/pedcare/clinic/internal/platform/cache"
	"github.com/pedcare/clinic/internal/platform/db"
	"github.com/pedcare/clinic/pkg/apperror"
)

// PatientCounter counts active patients. Satisfied by the patient repository.
type PatientCounter interface {
	Count(ctx context.Context) (int, error)
}

// AppointmentCounter tallies a day's appointments. Satisfied by the
// scheduling repository.
type AppointmentCounter interface {
	CountByDay(ctx context.Context, day time.Time) (total, completed, cancelled int, err error)
}

// VaccinationCounter counts doses given since a point in time. Satisfied by
// the immunization service.
type VaccinationCounter interface {
	GivenSince(ctx context.Context, since time.Time) (int, error)
}

// GrowthFlagCounter counts abnormal growth assessments since a point in time.
// Satisfied by the growth service.
type GrowthFlagCounter interface {
	AbnormalSince(ctx context.Context, since time.Time) (int, error)
}

// ClinicSummary is the aggregate the front desk dashboard renders.
type ClinicSummary struct {
	ActivePatients        int       `json:"active_patients"`
	AppointmentsToday     int       `json:"appointments_today"`
	AppointmentsCompleted int       `json:"appointments_completed"`
	AppointmentsCancelled int       `json:"appointments_cancelled"`
	VaccinationsThisMonth int       `json:"vaccinations_this_month"`
	AbnormalGrowthLast90d int       `json:"abnormal_growth_last_90_days"`
	GeneratedAt           time.Time `json:"generated_at"`
}

type Service struct {
	patients     PatientCounter
	appointments AppointmentCounter
	vaccinations VaccinationCounter
	growthFlags  GrowthFlagCounter
	versions     *cache.Versions
	cacheTTL     time.Duration
	log          zerolog.Logger
	now          func() time.Time
}

func NewService(patients PatientCounter, appointments AppointmentCounter,
	vaccinations VaccinationCounter, growthFlags GrowthFlagCounter,
	versions *cache.Versions, cacheTTL time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		patients:     patients,
		appointments: appointments,
		vaccinations: vaccinations,
		growthFlags:  growthFlags,
		versions:     versions,
		cacheTTL:     cacheTTL,
		log:          logger,
		now:          time.Now,
	}
}

// Summary returns the clinic dashboard, cached under the clinic version so
// any write in patient, scheduling, growth, or immunization forces a
// recompute on the next read.
func (s *Service) Summary(ctx context.Context) (*ClinicSummary, error) {
	clinicID := db.ClinicFromContext(ctx)
	ver := s.versions.ClinicVersion(ctx, clinicID)
	// The store is shared across clinics, so the clinic ID must be part of
	// the key: version counters alone can collide between tenants.
	base := "dashboard:summary:" + clinicID

	var summary ClinicSummary
	if s.versions.GetJSON(ctx, base, ver, &summary) {
		return &summary, nil
	}

	now := s.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	patients, err := s.patients.Count(ctx)
	if err != nil {
		return nil, apperror.Internal("count patients", err)
	}
	total, completed, cancelled, err := s.appointments.CountByDay(ctx, now)
	if err != nil {
		return nil, apperror.Internal("count appointments", err)
	}
	vaccinations, err := s.vaccinations.GivenSince(ctx, monthStart)
	if err != nil {
		return nil, apperror.Internal("count vaccinations", err)
	}
	flagged, err := s.growthFlags.AbnormalSince(ctx, now.AddDate(0, 0, -90))
	if err != nil {
		return nil, apperror.Internal("count abnormal growth", err)
	}

	summary = ClinicSummary{
		ActivePatients:        patients,
		AppointmentsToday:     total,
		AppointmentsCompleted: completed,
		AppointmentsCancelled: cancelled,
		VaccinationsThisMonth: vaccinations,
		AbnormalGrowthLast90d: flagged,
		GeneratedAt:           now,
	}

	s.versions.SetJSON(ctx, base, ver, &summary, s.cacheTTL)
	return &summary, nil
}
