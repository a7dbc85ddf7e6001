package immunization

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/pedcare/clinic/internal/platform/auth"
	"github.com/pedcare/clinic/internal/platform/cache"
	"github.com/pedcare/clinic/internal/platform/db"
	"github.com/pedcare/clinic/pkg/apperror"
)

// DOBLookup resolves a patient's date of birth. Satisfied by the patient
// service's directory adapter through a thin closure.
type DOBLookup func(ctx context.Context, patientID uuid.UUID) (time.Time, error)

type Service struct {
	schedule ScheduleRepository
	records  RecordRepository
	dobOf    DOBLookup
	versions *cache.Versions
	cacheTTL time.Duration
	log      zerolog.Logger
	runTx    func(ctx context.Context, fn func(ctx context.Context) error) error
}

func NewService(schedule ScheduleRepository, records RecordRepository, dobOf DOBLookup,
	versions *cache.Versions, pool *pgxpool.Pool, cacheTTL time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		schedule: schedule,
		records:  records,
		dobOf:    dobOf,
		versions: versions,
		cacheTTL: cacheTTL,
		log:      logger,
		runTx: func(ctx context.Context, fn func(ctx context.Context) error) error {
			return db.RunInTx(ctx, pool, fn)
		},
	}
}

// Record registers an administered dose. When the schedule knows the vaccine
// code, the dose number must exist in it; a dose the patient already has is a
// conflict.
func (s *Service) Record(ctx context.Context, rec *Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	dob, err := s.dobOf(ctx, rec.PatientID)
	if err != nil {
		return err
	}
	if rec.AdministeredAt.Before(dob) {
		return apperror.Validation("administered date precedes the patient's date of birth")
	}

	entries, err := s.schedule.List(ctx)
	if err != nil {
		return apperror.Internal("load vaccine schedule", err)
	}
	if err := s.checkAgainstSchedule(rec, entries); err != nil {
		return err
	}

	rec.AdministeredByID = auth.UserIDFromContext(ctx)

	err = s.runTx(ctx, func(ctx context.Context) error {
		exists, err := s.records.ExistsDose(ctx, rec.PatientID, rec.VaccineCode, rec.DoseNumber)
		if err != nil {
			return apperror.Internal("check existing dose", err)
		}
		if exists {
			return apperror.Conflict("dose %d of %s is already recorded for this patient",
				rec.DoseNumber, rec.VaccineCode)
		}
		return s.records.Create(ctx, rec)
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, rec.PatientID)
	return nil
}

// checkAgainstSchedule validates the code/dose pair against the schedule and
// backfills the vaccine name. Unknown codes pass through: clinics record
// vaccines outside the pediatric series (travel, flu) too.
func (s *Service) checkAgainstSchedule(rec *Record, entries []*ScheduleEntry) error {
	known := false
	for _, e := range entries {
		if e.VaccineCode != rec.VaccineCode {
			continue
		}
		known = true
		if e.DoseNumber == rec.DoseNumber {
			if rec.VaccineName == "" {
				rec.VaccineName = e.VaccineName
			}
			return nil
		}
	}
	if known {
		return apperror.Validation("vaccine %s has no dose %d in the schedule",
			rec.VaccineCode, rec.DoseNumber)
	}
	if rec.VaccineName == "" {
		return apperror.Validation("vaccine name is required for vaccines outside the schedule")
	}
	return nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Record, int, error) {
	return s.records.ListByPatient(ctx, patientID, limit, offset)
}

// Forecast lists the schedule doses the patient has not received, bucketed by
// urgency from the patient's age. Served from the patient-versioned cache.
func (s *Service) Forecast(ctx context.Context, patientID uuid.UUID) ([]*ForecastItem, error) {
	clinicID := db.ClinicFromContext(ctx)
	ver := s.versions.PatientVersion(ctx, clinicID, patientID.String())
	base := "immunization:forecast:" + patientID.String()

	var items []*ForecastItem
	if s.versions.GetJSON(ctx, base, ver, &items) {
		return items, nil
	}

	dob, err := s.dobOf(ctx, patientID)
	if err != nil {
		return nil, err
	}
	ageDays := int(time.Since(dob).Hours() / 24)

	entries, err := s.schedule.List(ctx)
	if err != nil {
		return nil, apperror.Internal("load vaccine schedule", err)
	}

	given, _, err := s.records.ListByPatient(ctx, patientID, 1000, 0)
	if err != nil {
		return nil, err
	}
	have := make(map[string]bool, len(given))
	for _, r := range given {
		have[doseKey(r.VaccineCode, r.DoseNumber)] = true
	}

	items = make([]*ForecastItem, 0)
	for _, e := range entries {
		if have[doseKey(e.VaccineCode, e.DoseNumber)] {
			continue
		}
		items = append(items, &ForecastItem{
			VaccineCode:    e.VaccineCode,
			VaccineName:    e.VaccineName,
			DoseNumber:     e.DoseNumber,
			DueAgeDays:     e.DueAgeDays,
			OverdueAgeDays: e.OverdueAgeDays,
			Status:         statusFor(e, ageDays),
		})
	}

	s.versions.SetJSON(ctx, base, ver, items, s.cacheTTL)
	return items, nil
}

// GivenSince counts doses administered at or after the given time. The
// dashboard uses it for the monthly tally.
func (s *Service) GivenSince(ctx context.Context, since time.Time) (int, error) {
	return s.records.CountSince(ctx, since)
}

func doseKey(code string, dose int) string {
	return code + "#" + strconv.Itoa(dose)
}

func (s *Service) invalidate(ctx context.Context, patientID uuid.UUID) {
	s.versions.InvalidatePatient(ctx, db.ClinicFromContext(ctx), patientID.String())
}
