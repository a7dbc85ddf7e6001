package dosing

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pedcare/clinic/pkg/apperror"
)

// WeightSource supplies the most recent recorded weight for a patient.
// Satisfied by the growth service.
type WeightSource interface {
	LatestWeight(ctx context.Context, patientID uuid.UUID) (float64, time.Time, error)
}

// DOBLookup resolves a patient's date of birth.
type DOBLookup func(ctx context.Context, patientID uuid.UUID) (time.Time, error)

type Service struct {
	rules   Repository
	weights WeightSource
	dobOf   DOBLookup
	log     zerolog.Logger
}

func NewService(rules Repository, weights WeightSource, dobOf DOBLookup, logger zerolog.Logger) *Service {
	return &Service{rules: rules, weights: weights, dobOf: dobOf, log: logger}
}

func (s *Service) CreateRule(ctx context.Context, rule *DoseRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	return s.rules.Create(ctx, rule)
}

func (s *Service) DeleteRule(ctx context.Context, id uuid.UUID) error {
	return s.rules.Delete(ctx, id)
}

func (s *Service) ListRules(ctx context.Context) ([]*DoseRule, error) {
	return s.rules.List(ctx)
}

// Calculate computes a weight-based dose for the patient. The per-kg dose is
// capped by the rule's single-dose ceiling; the daily total is capped by the
// daily ceiling, and when the daily cap binds the per-dose amount is
// recomputed from it.
func (s *Service) Calculate(ctx context.Context, drugCode, route string, patientID uuid.UUID) (*DoseResult, error) {
	if drugCode == "" || route == "" {
		return nil, apperror.Validation("drug code and route are required")
	}

	dob, err := s.dobOf(ctx, patientID)
	if err != nil {
		return nil, err
	}
	ageDays := int(time.Since(dob).Hours() / 24)

	weight, weightDate, err := s.weights.LatestWeight(ctx, patientID)
	if err != nil {
		return nil, err
	}

	rules, err := s.rules.FindByDrugAndRoute(ctx, drugCode, route)
	if err != nil {
		return nil, apperror.Internal("load dose rules", err)
	}

	var rule *DoseRule
	for _, r := range rules {
		if r.AppliesTo(ageDays) {
			rule = r
			break
		}
	}
	if rule == nil {
		return nil, apperror.Validation("no dosing rule for %s (%s) at this patient's age", drugCode, route)
	}

	result := &DoseResult{
		DrugCode:        rule.DrugCode,
		DrugName:        rule.DrugName,
		Route:           rule.Route,
		WeightKg:        weight,
		WeightDate:      weightDate,
		FrequencyPerDay: rule.FrequencyPerDay,
		Notes:           rule.Notes,
	}

	dose := rule.MgPerKg * weight
	if rule.MaxSingleDoseMg != nil && dose > *rule.MaxSingleDoseMg {
		dose = *rule.MaxSingleDoseMg
		result.CappedBySingle = true
	}

	daily := dose * float64(rule.FrequencyPerDay)
	if rule.MaxDailyDoseMg != nil && daily > *rule.MaxDailyDoseMg {
		daily = *rule.MaxDailyDoseMg
		dose = daily / float64(rule.FrequencyPerDay)
		result.CappedByDaily = true
	}

	result.DoseMg = round1(dose)
	result.DailyDoseMg = round1(daily)
	return result, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
