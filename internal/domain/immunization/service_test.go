package immunization

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pedcare/clinic/internal/platform/cache"
	"github.com/pedcare/clinic/internal/platform/db"
	"github.com/pedcare/clinic/pkg/apperror"
)

type mockScheduleRepo struct {
	entries []*ScheduleEntry
	queries int
}

func (m *mockScheduleRepo) List(context.Context) ([]*ScheduleEntry, error) {
	m.queries++
	return m.entries, nil
}

func (m *mockScheduleRepo) BulkInsert(_ context.Context, entries []*ScheduleEntry) (int, error) {
	m.entries = append(m.entries, entries...)
	return len(entries), nil
}

func (m *mockScheduleRepo) Count(context.Context) (int, error) {
	return len(m.entries), nil
}

type mockRecordRepo struct {
	records []*Record
}

func (m *mockRecordRepo) Create(_ context.Context, r *Record) error {
	r.ID = uuid.New()
	cp := *r
	m.records = append(m.records, &cp)
	return nil
}

func (m *mockRecordRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Record, int, error) {
	var out []*Record
	for _, r := range m.records {
		if r.PatientID == patientID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

func (m *mockRecordRepo) ExistsDose(_ context.Context, patientID uuid.UUID, code string, dose int) (bool, error) {
	for _, r := range m.records {
		if r.PatientID == patientID && r.VaccineCode == code && r.DoseNumber == dose {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRecordRepo) CountSince(_ context.Context, since time.Time) (int, error) {
	n := 0
	for _, r := range m.records {
		if !r.AdministeredAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func entry(code, name string, dose, due, overdue int) *ScheduleEntry {
	return &ScheduleEntry{
		ID:             uuid.New(),
		VaccineCode:    code,
		VaccineName:    name,
		DoseNumber:     dose,
		DueAgeDays:     due,
		OverdueAgeDays: overdue,
	}
}

func newService(t *testing.T, dob time.Time) (*Service, *mockRecordRepo, *mockScheduleRepo, uuid.UUID, context.Context) {
	t.Helper()
	schedule := &mockScheduleRepo{entries: []*ScheduleEntry{
		entry("08", "Hepatitis B", 1, 0, 60),
		entry("08", "Hepatitis B", 2, 30, 120),
		entry("20", "DTaP", 1, 60, 120),
	}}
	records := &mockRecordRepo{}
	patientID := uuid.New()

	dobOf := func(_ context.Context, id uuid.UUID) (time.Time, error) {
		if id != patientID {
			return time.Time{}, apperror.NotFound("patient %s not found", id)
		}
		return dob, nil
	}

	versions := cache.NewVersions(cache.NewMemory(), zerolog.Nop())
	svc := NewService(schedule, records, dobOf, versions, nil, time.Minute, zerolog.Nop())
	svc.runTx = func(ctx context.Context, fn func(ctx context.Context) error) error {
		return fn(ctx)
	}
	ctx := context.WithValue(context.Background(), db.ClinicIDKey, "default")
	return svc, records, schedule, patientID, ctx
}

func dose(patientID uuid.UUID, code string, n int, at time.Time) *Record {
	return &Record{
		PatientID:      patientID,
		VaccineCode:    code,
		DoseNumber:     n,
		AdministeredAt: at,
	}
}

func TestRecord_FillsNameFromSchedule(t *testing.T) {
	dob := time.Now().AddDate(0, -3, 0)
	svc, records, _, pid, ctx := newService(t, dob)

	rec := dose(pid, "08", 1, time.Now().AddDate(0, 0, -1))
	if err := svc.Record(ctx, rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.VaccineName != "Hepatitis B" {
		t.Errorf("expected name filled from schedule, got %q", rec.VaccineName)
	}
	if len(records.records) != 1 {
		t.Errorf("expected one stored record, got %d", len(records.records))
	}
}

func TestRecord_Validation(t *testing.T) {
	dob := time.Now().AddDate(-1, 0, 0)
	svc, _, _, pid, ctx := newService(t, dob)
	yesterday := time.Now().AddDate(0, 0, -1)

	cases := []struct {
		name string
		rec  *Record
	}{
		{"missing code", &Record{PatientID: pid, DoseNumber: 1, AdministeredAt: yesterday}},
		{"zero dose", dose(pid, "08", 0, yesterday)},
		{"future date", dose(pid, "08", 1, time.Now().AddDate(0, 0, 2))},
		{"before birth", dose(pid, "08", 1, dob.AddDate(0, 0, -10))},
		{"unknown dose for known vaccine", dose(pid, "08", 5, yesterday)},
	}
	for _, tc := range cases {
		if err := svc.Record(ctx, tc.rec); !apperror.IsKind(err, apperror.KindValidation) {
			t.Errorf("%s: expected validation error, got %v", tc.name, err)
		}
	}
}

func TestRecord_UnknownVaccineNeedsName(t *testing.T) {
	dob := time.Now().AddDate(-2, 0, 0)
	svc, _, _, pid, ctx := newService(t, dob)
	yesterday := time.Now().AddDate(0, 0, -1)

	rec := dose(pid, "141", 1, yesterday)
	if err := svc.Record(ctx, rec); !apperror.IsKind(err, apperror.KindValidation) {
		t.Fatalf("expected validation error without a name, got %v", err)
	}

	rec = dose(pid, "141", 1, yesterday)
	rec.VaccineName = "Influenza, seasonal"
	if err := svc.Record(ctx, rec); err != nil {
		t.Errorf("off-schedule vaccine with a name should record: %v", err)
	}
}

func TestRecord_DuplicateDoseIsConflict(t *testing.T) {
	dob := time.Now().AddDate(-1, 0, 0)
	svc, _, _, pid, ctx := newService(t, dob)
	yesterday := time.Now().AddDate(0, 0, -1)

	if err := svc.Record(ctx, dose(pid, "08", 1, yesterday)); err != nil {
		t.Fatalf("first dose failed: %v", err)
	}
	if err := svc.Record(ctx, dose(pid, "08", 1, yesterday)); !apperror.IsKind(err, apperror.KindConflict) {
		t.Errorf("expected conflict on repeated dose, got %v", err)
	}
	// The next dose number is fine.
	if err := svc.Record(ctx, dose(pid, "08", 2, yesterday)); err != nil {
		t.Errorf("second dose should record: %v", err)
	}
}

func TestRecord_UnknownPatient(t *testing.T) {
	svc, _, _, _, ctx := newService(t, time.Now().AddDate(-1, 0, 0))

	err := svc.Record(ctx, dose(uuid.New(), "08", 1, time.Now().AddDate(0, 0, -1)))
	if !apperror.IsKind(err, apperror.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestForecast_Buckets(t *testing.T) {
	// Patient is 90 days old: HepB dose 1 (due 0, overdue 60) is overdue,
	// HepB dose 2 (due 30, overdue 120) is due, DTaP dose 1 (due 60,
	// overdue 120) is due.
	dob := time.Now().AddDate(0, 0, -90)
	svc, _, _, pid, ctx := newService(t, dob)

	items, err := svc.Forecast(ctx, pid)
	if err != nil {
		t.Fatalf("forecast failed: %v", err)
	}
	got := map[string]ForecastStatus{}
	for _, it := range items {
		got[it.VaccineCode+"#"+string(rune('0'+it.DoseNumber))] = it.Status
	}
	want := map[string]ForecastStatus{
		"08#1": StatusOverdue,
		"08#2": StatusDue,
		"20#1": StatusDue,
	}
	for k, w := range want {
		if got[k] != w {
			t.Errorf("%s: expected %s, got %s", k, w, got[k])
		}
	}
}

func TestForecast_BoundaryAges(t *testing.T) {
	// Exactly at the due boundary the dose is due, not upcoming; exactly at
	// the overdue boundary it is overdue.
	e := entry("20", "DTaP", 1, 60, 120)
	cases := []struct {
		ageDays int
		want    ForecastStatus
	}{
		{59, StatusUpcoming},
		{60, StatusDue},
		{119, StatusDue},
		{120, StatusOverdue},
	}
	for _, tc := range cases {
		if got := statusFor(e, tc.ageDays); got != tc.want {
			t.Errorf("age %d: expected %s, got %s", tc.ageDays, tc.want, got)
		}
	}
}

func TestForecast_ExcludesAdministeredAndCaches(t *testing.T) {
	dob := time.Now().AddDate(0, 0, -90)
	svc, _, schedule, pid, ctx := newService(t, dob)

	if err := svc.Record(ctx, dose(pid, "08", 1, time.Now().AddDate(0, 0, -1))); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	items, err := svc.Forecast(ctx, pid)
	if err != nil {
		t.Fatalf("forecast failed: %v", err)
	}
	for _, it := range items {
		if it.VaccineCode == "08" && it.DoseNumber == 1 {
			t.Error("administered dose still forecast")
		}
	}
	if len(items) != 2 {
		t.Errorf("expected 2 remaining doses, got %d", len(items))
	}

	// A repeat read comes from the cache without touching the schedule.
	before := schedule.queries
	if _, err := svc.Forecast(ctx, pid); err != nil {
		t.Fatalf("cached forecast failed: %v", err)
	}
	if schedule.queries != before {
		t.Errorf("expected cached forecast, schedule queried %d more times", schedule.queries-before)
	}

	// Recording a dose invalidates the forecast.
	if err := svc.Record(ctx, dose(pid, "08", 2, time.Now().AddDate(0, 0, -1))); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	items, err = svc.Forecast(ctx, pid)
	if err != nil {
		t.Fatalf("forecast failed: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("expected 1 remaining dose after second shot, got %d", len(items))
	}
}

func TestGivenSince(t *testing.T) {
	dob := time.Now().AddDate(-1, 0, 0)
	svc, _, _, pid, ctx := newService(t, dob)

	svc.Record(ctx, dose(pid, "08", 1, time.Now().AddDate(0, 0, -40)))
	svc.Record(ctx, dose(pid, "08", 2, time.Now().AddDate(0, 0, -5)))

	n, err := svc.GivenSince(ctx, time.Now().AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 dose in the window, got %d", n)
	}
}
