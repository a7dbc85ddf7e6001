package growth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/pedcare/clinic/internal/platform/auth"
	"github.com/pedcare/clinic/internal/platform/cache"
	"github.com/pedcare/clinic/internal/platform/db"
	"github.com/pedcare/clinic/pkg/apperror"
)

// PatientInfo is the slice of the patient record the growth engine needs.
type PatientInfo struct {
	ID          uuid.UUID
	DateOfBirth time.Time
	Gender      Gender
}

// PatientDirectory resolves patients for assessment. Satisfied by the
// patient service.
type PatientDirectory interface {
	PatientInfo(ctx context.Context, id uuid.UUID) (*PatientInfo, error)
}

// Service orchestrates measurement assessment, persistence, and cache
// invalidation.
type Service struct {
	records  RecordRepository
	resolver *Resolver
	patients PatientDirectory
	versions *cache.Versions
	cacheTTL time.Duration
	log      zerolog.Logger
	runTx    func(ctx context.Context, fn func(ctx context.Context) error) error
}

// NewService wires the growth service. The pool is only used as the
// transaction fallback when no clinic connection is on the context.
func NewService(records RecordRepository, resolver *Resolver, patients PatientDirectory,
	versions *cache.Versions, pool *pgxpool.Pool, cacheTTL time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		records:  records,
		resolver: resolver,
		patients: patients,
		versions: versions,
		cacheTTL: cacheTTL,
		log:      logger,
		runTx: func(ctx context.Context, fn func(ctx context.Context) error) error {
			return db.RunInTx(ctx, pool, fn)
		},
	}
}

func (s *Service) validateMeasurement(m *Measurement, dob time.Time) error {
	if m.Weight <= 0 {
		return apperror.Validation("weight must be positive")
	}
	if m.Height != nil && *m.Height <= 0 {
		return apperror.Validation("height must be positive")
	}
	if m.HeadCircumference != nil && *m.HeadCircumference <= 0 {
		return apperror.Validation("head circumference must be positive")
	}
	if m.Date.IsZero() {
		return apperror.Validation("measurement date is required")
	}
	if m.Date.Before(dob) {
		return apperror.Validation("measurement date precedes date of birth")
	}
	return nil
}

// assess computes age, Z-scores, percentiles, and status for a measurement.
func (s *Service) assess(ctx context.Context, p *PatientInfo, m *Measurement) (*GrowthRecord, error) {
	ageDays := AgeDaysAt(p.DateOfBirth, m.Date)

	rec := &GrowthRecord{
		PatientID:         p.ID,
		Date:              m.Date,
		Weight:            m.Weight,
		Height:            m.Height,
		HeadCircumference: m.HeadCircumference,
		AgeDays:           ageDays,
		AgeMonths:         AgeMonthsFromDays(ageDays),
		Notes:             m.Notes,
	}

	wRef, err := s.resolver.Reference(ctx, p.Gender, ChartWeightForAge, ageDays)
	if err != nil {
		return nil, err
	}
	wz := ZScore(m.Weight, wRef)
	wp := PercentileFromZ(wz)
	rec.WeightForAgeZ = &wz
	rec.WeightPercentile = &wp

	if m.Height != nil {
		hRef, err := s.resolver.Reference(ctx, p.Gender, ChartHeightForAge, ageDays)
		if err != nil {
			return nil, err
		}
		hz := ZScore(*m.Height, hRef)
		hp := PercentileFromZ(hz)
		rec.HeightForAgeZ = &hz
		rec.HeightPercentile = &hp

		bmi := BMIFrom(m.Weight, *m.Height)
		rec.BMI = &bmi
		if bRef, err := s.resolver.Reference(ctx, p.Gender, ChartBMIForAge, ageDays); err == nil {
			bz := ZScore(bmi, bRef)
			bp := PercentileFromZ(bz)
			rec.BMIZ = &bz
			rec.BMIPercentile = &bp
		} else if !apperror.IsKind(err, apperror.KindValidation) {
			return nil, err
		}
		// Missing BMI reference rows leave the record without a BMI
		// Z-score; classification falls through to weight-for-age.
	}

	rec.GrowthStatus = Classify(rec.BMIZ, rec.WeightForAgeZ, rec.HeightForAgeZ)
	return rec, nil
}

// RecordMeasurement assesses and persists a new measurement, then bumps the
// patient's and clinic's cache versions after the transaction commits.
func (s *Service) RecordMeasurement(ctx context.Context, m *Measurement) (*GrowthRecord, error) {
	p, err := s.patients.PatientInfo(ctx, m.PatientID)
	if err != nil {
		return nil, err
	}
	if p.DateOfBirth.IsZero() {
		return nil, apperror.Validation("patient has no date of birth on file")
	}
	if err := s.validateMeasurement(m, p.DateOfBirth); err != nil {
		return nil, err
	}

	rec, err := s.assess(ctx, p, m)
	if err != nil {
		return nil, err
	}
	rec.RecordedByID = auth.UserIDFromContext(ctx)

	err = s.runTx(ctx, func(ctx context.Context) error {
		exists, err := s.records.ExistsForDate(ctx, m.PatientID, m.Date.Format("2006-01-02"))
		if err != nil {
			return apperror.Internal("check duplicate measurement", err)
		}
		if exists {
			return apperror.Conflict("a measurement already exists for patient %s on %s", m.PatientID, m.Date.Format("2006-01-02"))
		}
		// The unique (patient_id, date) index backstops this check against
		// a concurrent insert racing past it.
		return s.records.Create(ctx, rec)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, rec.PatientID)
	return rec, nil
}

// MeasurementUpdate carries the mutable fields of a growth record.
type MeasurementUpdate struct {
	Weight            *float64 `json:"weight,omitempty"`
	Height            *float64 `json:"height,omitempty"`
	HeadCircumference *float64 `json:"head_circumference,omitempty"`
	Notes             *string  `json:"notes,omitempty"`
}

// UpdateMeasurement applies the changed fields and recomputes the assessment
// when weight or height changed.
func (s *Service) UpdateMeasurement(ctx context.Context, id uuid.UUID, upd *MeasurementUpdate) (*GrowthRecord, error) {
	var result *GrowthRecord
	err := s.runTx(ctx, func(ctx context.Context) error {
		rec, err := s.records.GetByID(ctx, id)
		if err != nil {
			return err
		}

		recompute := false
		if upd.Weight != nil && *upd.Weight != rec.Weight {
			rec.Weight = *upd.Weight
			recompute = true
		}
		if upd.Height != nil && (rec.Height == nil || *upd.Height != *rec.Height) {
			rec.Height = upd.Height
			recompute = true
		}
		if upd.HeadCircumference != nil {
			rec.HeadCircumference = upd.HeadCircumference
		}
		if upd.Notes != nil {
			rec.Notes = *upd.Notes
		}

		if recompute {
			p, err := s.patients.PatientInfo(ctx, rec.PatientID)
			if err != nil {
				return err
			}
			if err := s.validateMeasurement(&Measurement{
				PatientID: rec.PatientID, Date: rec.Date,
				Weight: rec.Weight, Height: rec.Height,
				HeadCircumference: rec.HeadCircumference,
			}, p.DateOfBirth); err != nil {
				return err
			}
			assessed, err := s.assess(ctx, p, &Measurement{
				PatientID: rec.PatientID, Date: rec.Date,
				Weight: rec.Weight, Height: rec.Height,
				HeadCircumference: rec.HeadCircumference, Notes: rec.Notes,
			})
			if err != nil {
				return err
			}
			rec.WeightForAgeZ = assessed.WeightForAgeZ
			rec.WeightPercentile = assessed.WeightPercentile
			rec.HeightForAgeZ = assessed.HeightForAgeZ
			rec.HeightPercentile = assessed.HeightPercentile
			rec.BMI = assessed.BMI
			rec.BMIZ = assessed.BMIZ
			rec.BMIPercentile = assessed.BMIPercentile
			rec.GrowthStatus = assessed.GrowthStatus
		}

		if err := s.records.Update(ctx, rec); err != nil {
			return err
		}
		result = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, result.PatientID)
	return result, nil
}

// DeleteMeasurement soft-deletes a growth record.
func (s *Service) DeleteMeasurement(ctx context.Context, id uuid.UUID) error {
	var patientID uuid.UUID
	err := s.runTx(ctx, func(ctx context.Context) error {
		rec, err := s.records.GetByID(ctx, id)
		if err != nil {
			return err
		}
		patientID = rec.PatientID
		return s.records.SoftDelete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, patientID)
	return nil
}

// historyPage is the cached shape of a history read.
type historyPage struct {
	Items []*GrowthRecord `json:"items"`
	Total int             `json:"total"`
}

// History returns a page of a patient's growth records, newest first, served
// from the versioned cache when possible.
func (s *Service) History(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*GrowthRecord, int, error) {
	clinicID := db.ClinicFromContext(ctx)
	ver := s.versions.PatientVersion(ctx, clinicID, patientID.String())
	base := fmt.Sprintf("growth:history:%s:%d:%d", patientID, limit, offset)

	var page historyPage
	if s.versions.GetJSON(ctx, base, ver, &page) {
		return page.Items, page.Total, nil
	}

	items, total, err := s.records.ListByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	s.versions.SetJSON(ctx, base, ver, historyPage{Items: items, Total: total}, s.cacheTTL)
	return items, total, nil
}

// Trend returns the earliest-to-latest weight/height gain, or nil with fewer
// than two measurements.
func (s *Service) Trend(ctx context.Context, patientID uuid.UUID) (*GrowthTrend, error) {
	history, err := s.cachedHistory(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return Trend(history), nil
}

// Velocity returns the monthly rate of change over the two most recent
// measurements, or nil when they are under a week apart.
func (s *Service) Velocity(ctx context.Context, patientID uuid.UUID) (*Velocity, error) {
	history, err := s.cachedHistory(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return VelocityFrom(history), nil
}

// LatestWeight returns the most recent recorded weight in kilograms and the
// date it was measured. Dosing needs this; a patient with no measurements
// cannot be dosed by weight.
func (s *Service) LatestWeight(ctx context.Context, patientID uuid.UUID) (float64, time.Time, error) {
	records, _, err := s.records.ListByPatient(ctx, patientID, 1, 0)
	if err != nil {
		return 0, time.Time{}, err
	}
	if len(records) == 0 {
		return 0, time.Time{}, apperror.Validation("no recorded weight for patient %s", patientID)
	}
	return records[0].Weight, records[0].Date, nil
}

// AbnormalSince counts non-NORMAL assessments dated at or after since. The
// dashboard uses it for the flagged-growth tally.
func (s *Service) AbnormalSince(ctx context.Context, since time.Time) (int, error) {
	return s.records.CountAbnormalSince(ctx, since)
}

// Analysis returns the percentile-drift analysis across the full series.
func (s *Service) Analysis(ctx context.Context, patientID uuid.UUID) (*TrendAnalysis, error) {
	history, err := s.cachedHistory(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return AnalyzeTrend(history), nil
}

func (s *Service) cachedHistory(ctx context.Context, patientID uuid.UUID) ([]*GrowthRecord, error) {
	clinicID := db.ClinicFromContext(ctx)
	ver := s.versions.PatientVersion(ctx, clinicID, patientID.String())
	base := "growth:series:" + patientID.String()

	var series []*GrowthRecord
	if s.versions.GetJSON(ctx, base, ver, &series) {
		return series, nil
	}

	series, err := s.records.HistoryByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	s.versions.SetJSON(ctx, base, ver, series, s.cacheTTL)
	return series, nil
}

// invalidate bumps the cache versions after a committed mutation. It never
// fails the caller.
func (s *Service) invalidate(ctx context.Context, patientID uuid.UUID) {
	clinicID := db.ClinicFromContext(ctx)
	s.versions.InvalidatePatient(ctx, clinicID, patientID.String())
}
