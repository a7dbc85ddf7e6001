package dosing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pedcare/clinic/pkg/apperror"
)

type mockRepo struct {
	rules []*DoseRule
}

func (m *mockRepo) Create(_ context.Context, r *DoseRule) error {
	r.ID = uuid.New()
	m.rules = append(m.rules, r)
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	for i, r := range m.rules {
		if r.ID == id {
			m.rules = append(m.rules[:i], m.rules[i+1:]...)
			return nil
		}
	}
	return apperror.NotFound("dose rule %s not found", id)
}

func (m *mockRepo) List(context.Context) ([]*DoseRule, error) {
	return m.rules, nil
}

func (m *mockRepo) FindByDrugAndRoute(_ context.Context, code, route string) ([]*DoseRule, error) {
	var out []*DoseRule
	for _, r := range m.rules {
		if r.DrugCode == code && r.Route == route {
			out = append(out, r)
		}
	}
	return out, nil
}

type mockWeights struct {
	weight float64
	date   time.Time
	err    error
}

func (m *mockWeights) LatestWeight(context.Context, uuid.UUID) (float64, time.Time, error) {
	if m.err != nil {
		return 0, time.Time{}, m.err
	}
	return m.weight, m.date, nil
}

func intp(v int) *int           { return &v }
func floatp(v float64) *float64 { return &v }

func rule(code, route string, mgPerKg float64, freq int) *DoseRule {
	return &DoseRule{
		ID:              uuid.New(),
		DrugCode:        code,
		DrugName:        code,
		Route:           route,
		MgPerKg:         mgPerKg,
		FrequencyPerDay: freq,
	}
}

func newService(t *testing.T, dob time.Time, weightKg float64, rules ...*DoseRule) (*Service, uuid.UUID) {
	t.Helper()
	patientID := uuid.New()
	repo := &mockRepo{rules: rules}
	weights := &mockWeights{weight: weightKg, date: time.Now().AddDate(0, 0, -3)}
	if weightKg == 0 {
		weights.err = apperror.Validation("no recorded weight for patient %s", patientID)
	}
	dobOf := func(_ context.Context, id uuid.UUID) (time.Time, error) {
		if id != patientID {
			return time.Time{}, apperror.NotFound("patient %s not found", id)
		}
		return dob, nil
	}
	return NewService(repo, weights, dobOf, zerolog.Nop()), patientID
}

func TestCalculate_PerKg(t *testing.T) {
	dob := time.Now().AddDate(-2, 0, 0)
	r := rule("ACETAMINOPHEN", "oral", 15, 4)
	svc, pid := newService(t, dob, 12, r)

	got, err := svc.Calculate(context.Background(), "ACETAMINOPHEN", "oral", pid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.DoseMg != 180 {
		t.Errorf("expected 180 mg, got %v", got.DoseMg)
	}
	if got.DailyDoseMg != 720 {
		t.Errorf("expected 720 mg/day, got %v", got.DailyDoseMg)
	}
	if got.CappedBySingle || got.CappedByDaily {
		t.Error("no cap should bind")
	}
}

func TestCalculate_SingleDoseCapBinds(t *testing.T) {
	dob := time.Now().AddDate(-10, 0, 0)
	r := rule("ACETAMINOPHEN", "oral", 15, 4)
	r.MaxSingleDoseMg = floatp(500)
	svc, pid := newService(t, dob, 40, r) // 15 × 40 = 600 > 500

	got, err := svc.Calculate(context.Background(), "ACETAMINOPHEN", "oral", pid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.DoseMg != 500 || !got.CappedBySingle {
		t.Errorf("expected 500 mg capped, got %v (capped=%v)", got.DoseMg, got.CappedBySingle)
	}
	if got.DailyDoseMg != 2000 {
		t.Errorf("expected 2000 mg/day, got %v", got.DailyDoseMg)
	}
}

func TestCalculate_DailyCapRecomputesDose(t *testing.T) {
	dob := time.Now().AddDate(-10, 0, 0)
	r := rule("IBUPROFEN", "oral", 10, 4)
	r.MaxDailyDoseMg = floatp(1200)
	svc, pid := newService(t, dob, 40, r) // 10 × 40 × 4 = 1600 > 1200

	got, err := svc.Calculate(context.Background(), "IBUPROFEN", "oral", pid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.DailyDoseMg != 1200 || !got.CappedByDaily {
		t.Errorf("expected 1200 mg/day capped, got %v (capped=%v)", got.DailyDoseMg, got.CappedByDaily)
	}
	// Per-dose comes back from the daily cap: 1200 / 4.
	if got.DoseMg != 300 {
		t.Errorf("expected 300 mg per dose, got %v", got.DoseMg)
	}
}

func TestCalculate_AgeGates(t *testing.T) {
	infantRule := rule("AMOXICILLIN", "oral", 20, 2)
	infantRule.MaxAgeDays = intp(365)
	childRule := rule("AMOXICILLIN", "oral", 25, 2)
	childRule.MinAgeDays = intp(366)

	// A 6-month-old matches the infant rule.
	dob := time.Now().AddDate(0, -6, 0)
	svc, pid := newService(t, dob, 8, infantRule, childRule)
	got, err := svc.Calculate(context.Background(), "AMOXICILLIN", "oral", pid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.DoseMg != 160 { // 20 × 8
		t.Errorf("expected infant rule (160 mg), got %v", got.DoseMg)
	}

	// A 5-year-old matches the child rule.
	svc, pid = newService(t, time.Now().AddDate(-5, 0, 0), 18, infantRule, childRule)
	got, err = svc.Calculate(context.Background(), "AMOXICILLIN", "oral", pid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.DoseMg != 450 { // 25 × 18
		t.Errorf("expected child rule (450 mg), got %v", got.DoseMg)
	}
}

func TestCalculate_NoMatchingRule(t *testing.T) {
	neonatalOnly := rule("GENTAMICIN", "iv", 4, 1)
	neonatalOnly.MaxAgeDays = intp(28)
	svc, pid := newService(t, time.Now().AddDate(-3, 0, 0), 14, neonatalOnly)

	// Right drug, wrong age.
	if _, err := svc.Calculate(context.Background(), "GENTAMICIN", "iv", pid); !apperror.IsKind(err, apperror.KindValidation) {
		t.Errorf("expected validation error for age outside all gates, got %v", err)
	}
	// Unknown drug.
	if _, err := svc.Calculate(context.Background(), "UNKNOWN", "oral", pid); !apperror.IsKind(err, apperror.KindValidation) {
		t.Errorf("expected validation error for unknown drug, got %v", err)
	}
	// Wrong route.
	if _, err := svc.Calculate(context.Background(), "GENTAMICIN", "oral", pid); !apperror.IsKind(err, apperror.KindValidation) {
		t.Errorf("expected validation error for unmatched route, got %v", err)
	}
}

func TestCalculate_NoRecordedWeight(t *testing.T) {
	r := rule("ACETAMINOPHEN", "oral", 15, 4)
	svc, pid := newService(t, time.Now().AddDate(-2, 0, 0), 0, r)

	if _, err := svc.Calculate(context.Background(), "ACETAMINOPHEN", "oral", pid); !apperror.IsKind(err, apperror.KindValidation) {
		t.Errorf("expected validation error without weight, got %v", err)
	}
}

func TestCalculate_UnknownPatient(t *testing.T) {
	r := rule("ACETAMINOPHEN", "oral", 15, 4)
	svc, _ := newService(t, time.Now().AddDate(-2, 0, 0), 12, r)

	if _, err := svc.Calculate(context.Background(), "ACETAMINOPHEN", "oral", uuid.New()); !apperror.IsKind(err, apperror.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestCreateRule_Validation(t *testing.T) {
	svc, _ := newService(t, time.Now(), 10)

	bad := []*DoseRule{
		{DrugName: "x", Route: "oral", MgPerKg: 1, FrequencyPerDay: 1},                          // no code
		{DrugCode: "X", DrugName: "x", Route: "oral", MgPerKg: 0, FrequencyPerDay: 1},           // zero mg/kg
		{DrugCode: "X", DrugName: "x", Route: "oral", MgPerKg: 1, FrequencyPerDay: 0},           // zero frequency
		{DrugCode: "X", DrugName: "x", Route: "oral", MgPerKg: 1, FrequencyPerDay: 1,
			MinAgeDays: intp(100), MaxAgeDays: intp(50)}, // inverted gates
	}
	for i, r := range bad {
		if err := svc.CreateRule(context.Background(), r); !apperror.IsKind(err, apperror.KindValidation) {
			t.Errorf("case %d: expected validation error, got %v", i, err)
		}
	}
}
