package scheduling

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

type mockRepo struct {
	appts map[uuid.UUID]*Appointment
}

func newMockRepo() *mockRepo {
	return &mockRepo{appts: make(map[uuid.UUID]*Appointment)}
}

func (m *mockRepo) Create(_ context.Context, a *Appointment) error {
	a.ID = uuid.New()
	cp := *a
	m.appts[a.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := m.appts[id]
	if !ok || a.DeletedAt != nil {
		return nil, apperror.NotFound("appointment %s not found", id)
	}
	cp := *a
	return &cp, nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, id uuid.UUID, status Status) error {
	a, ok := m.appts[id]
	if !ok {
		return apperror.NotFound("appointment %s not found", id)
	}
	a.Status = status
	return nil
}

func (m *mockRepo) Reschedule(_ context.Context, id uuid.UUID, start, end time.Time) error {
	a, ok := m.appts[id]
	if !ok {
		return apperror.NotFound("appointment %s not found", id)
	}
	a.StartTime, a.EndTime = start, end
	return nil
}

func (m *mockRepo) HasOverlap(_ context.Context, staffID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	for _, a := range m.appts {
		if a.StaffID != staffID || a.DeletedAt != nil {
			continue
		}
		if a.Status != StatusScheduled && a.Status != StatusCheckedIn {
			continue
		}
		if excludeID != nil && a.ID == *excludeID {
			continue
		}
		if a.StartTime.Before(end) && start.Before(a.EndTime) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	var out []*Appointment
	for _, a := range m.appts {
		if a.PatientID == patientID && a.DeletedAt == nil {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) ListByStaffAndDay(_ context.Context, staffID uuid.UUID, day time.Time) ([]*Appointment, error) {
	var out []*Appointment
	for _, a := range m.appts {
		if a.StaffID == staffID && a.StartTime.Format("2006-01-02") == day.Format("2006-01-02") {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRepo) CountByDay(_ context.Context, day time.Time) (int, int, int, error) {
	total, completed, cancelled := 0, 0, 0
	for _, a := range m.appts {
		if a.StartTime.Format("2006-01-02") != day.Format("2006-01-02") {
			continue
		}
		total++
		switch a.Status {
		case StatusCompleted:
			completed++
		case StatusCancelled:
			cancelled++
		}
	}
	return total, completed, cancelled, nil
}

type mockAvailability struct {
	available bool
}

func (m *mockAvailability) IsAvailable(context.Context, uuid.UUID, time.Time, time.Time) (bool, error) {
	return m.available, nil
}

// unknownPatient is rejected by the test patient checker; every other ID is
// treated as registered.
var unknownPatient = uuid.MustParse("00000000-0000-0000-0000-00000000dead")

func newService(t *testing.T) (*Service, *mockRepo, *mockAvailability, context.Context) {
	t.Helper()
	repo := newMockRepo()
	avail := &mockAvailability{available: true}
	versions := cache.NewVersions(cache.NewMemory(), zerolog.Nop())

	checkPatient := func(_ context.Context, id uuid.UUID) error {
		if id == unknownPatient {
			return apperror.NotFound("patient %s not found", id)
		}
		return nil
	}

	svc := NewService(repo, avail, checkPatient, versions, nil, zerolog.Nop())
	svc.runTx = func(ctx context.Context, fn func(ctx context.Context) error) error {
		return fn(ctx)
	}
	ctx := context.WithValue(context.Background(), db.ClinicIDKey, "default")
	return svc, repo, avail, ctx
}

func appt(staffID uuid.UUID, start, end time.Time) *Appointment {
	return &Appointment{
		PatientID: uuid.New(),
		StaffID:   staffID,
		StartTime: start,
		EndTime:   end,
		Reason:    "well-child visit",
	}
}

func at(h, m int) time.Time {
	return time.Date(2024, 1, 1, h, m, 0, 0, time.UTC)
}

func TestBook_Succeeds(t *testing.T) {
	svc, repo, _, ctx := newService(t)

	a := appt(uuid.New(), at(9, 0), at(9, 30))
	if err := svc.Book(ctx, a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Status != StatusScheduled {
		t.Errorf("expected scheduled status, got %s", a.Status)
	}
	if len(repo.appts) != 1 {
		t.Errorf("expected one stored appointment, got %d", len(repo.appts))
	}
}

func TestBook_Validation(t *testing.T) {
	svc, _, _, ctx := newService(t)

	bad := []*Appointment{
		{StaffID: uuid.New(), StartTime: at(9, 0), EndTime: at(9, 30)},                         // no patient
		{PatientID: uuid.New(), StartTime: at(9, 0), EndTime: at(9, 30)},                       // no staff
		{PatientID: uuid.New(), StaffID: uuid.New()},                                           // no times
		{PatientID: uuid.New(), StaffID: uuid.New(), StartTime: at(10, 0), EndTime: at(9, 0)},  // inverted
		{PatientID: uuid.New(), StaffID: uuid.New(), StartTime: at(9, 0), EndTime: at(9, 0)},   // empty
	}
	for i, a := range bad {
		if err := svc.Book(ctx, a); !apperror.IsKind(err, apperror.KindValidation) {
			t.Errorf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestBook_UnknownPatient(t *testing.T) {
	svc, _, _, ctx := newService(t)

	a := appt(uuid.New(), at(9, 0), at(9, 30))
	a.PatientID = unknownPatient
	if err := svc.Book(ctx, a); !apperror.IsKind(err, apperror.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestBook_OutsideAvailabilityIsValidation(t *testing.T) {
	svc, _, avail, ctx := newService(t)
	avail.available = false

	err := svc.Book(ctx, appt(uuid.New(), at(9, 0), at(9, 30)))
	if !apperror.IsKind(err, apperror.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestBook_OverlapIsConflict(t *testing.T) {
	svc, _, _, ctx := newService(t)
	staffID := uuid.New()

	if err := svc.Book(ctx, appt(staffID, at(9, 0), at(9, 30))); err != nil {
		t.Fatalf("first booking failed: %v", err)
	}

	cases := []struct{ start, end time.Time }{
		{at(9, 0), at(9, 30)},  // identical
		{at(9, 15), at(9, 45)}, // overlaps tail
		{at(8, 45), at(9, 15)}, // overlaps head
		{at(8, 0), at(10, 0)},  // envelops
	}
	for i, tc := range cases {
		err := svc.Book(ctx, appt(staffID, tc.start, tc.end))
		if !apperror.IsKind(err, apperror.KindConflict) {
			t.Errorf("case %d: expected conflict, got %v", i, err)
		}
	}

	// Back-to-back is allowed: [9:30, 10:00) does not intersect [9:00, 9:30).
	if err := svc.Book(ctx, appt(staffID, at(9, 30), at(10, 0))); err != nil {
		t.Errorf("back-to-back booking should succeed: %v", err)
	}
}

func TestBook_CancelledAppointmentDoesNotBlock(t *testing.T) {
	svc, _, _, ctx := newService(t)
	staffID := uuid.New()

	a := appt(staffID, at(9, 0), at(9, 30))
	if err := svc.Book(ctx, a); err != nil {
		t.Fatalf("booking failed: %v", err)
	}
	if _, err := svc.Transition(ctx, a.ID, StatusCancelled); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	if err := svc.Book(ctx, appt(staffID, at(9, 0), at(9, 30))); err != nil {
		t.Errorf("slot freed by cancellation should be bookable: %v", err)
	}
}

func TestBook_BumpsPatientVersion(t *testing.T) {
	svc, _, _, ctx := newService(t)

	a := appt(uuid.New(), at(9, 0), at(9, 30))
	before := svc.versions.PatientVersion(ctx, "default", a.PatientID.String())
	if err := svc.Book(ctx, a); err != nil {
		t.Fatalf("booking failed: %v", err)
	}
	after := svc.versions.PatientVersion(ctx, "default", a.PatientID.String())
	if after <= before {
		t.Errorf("expected patient version to increase, got %d -> %d", before, after)
	}
}

func TestTransition_Lifecycle(t *testing.T) {
	svc, _, _, ctx := newService(t)

	a := appt(uuid.New(), at(9, 0), at(9, 30))
	svc.Book(ctx, a)

	if _, err := svc.Transition(ctx, a.ID, StatusCheckedIn); err != nil {
		t.Fatalf("check-in failed: %v", err)
	}
	if _, err := svc.Transition(ctx, a.ID, StatusCompleted); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	// Completed is terminal.
	if _, err := svc.Transition(ctx, a.ID, StatusCancelled); !apperror.IsKind(err, apperror.KindValidation) {
		t.Errorf("expected validation error on terminal transition, got %v", err)
	}
}

func TestTransition_IllegalSteps(t *testing.T) {
	svc, _, _, ctx := newService(t)

	a := appt(uuid.New(), at(9, 0), at(9, 30))
	svc.Book(ctx, a)

	// Cannot complete without checking in.
	if _, err := svc.Transition(ctx, a.ID, StatusCompleted); !apperror.IsKind(err, apperror.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
	// No-show only from scheduled.
	if _, err := svc.Transition(ctx, a.ID, StatusNoShow); err != nil {
		t.Errorf("no-show from scheduled should succeed: %v", err)
	}
}

func TestReschedule(t *testing.T) {
	svc, _, _, ctx := newService(t)
	staffID := uuid.New()

	a := appt(staffID, at(9, 0), at(9, 30))
	svc.Book(ctx, a)
	b := appt(staffID, at(10, 0), at(10, 30))
	svc.Book(ctx, b)

	// Moving a onto b's slot conflicts.
	if _, err := svc.Reschedule(ctx, a.ID, at(10, 0), at(10, 30)); !apperror.IsKind(err, apperror.KindConflict) {
		t.Errorf("expected conflict, got %v", err)
	}

	// Moving a onto its own slot does not self-conflict.
	moved, err := svc.Reschedule(ctx, a.ID, at(9, 0), at(9, 45))
	if err != nil {
		t.Fatalf("reschedule failed: %v", err)
	}
	if !moved.EndTime.Equal(at(9, 45)) {
		t.Errorf("end time not updated: %v", moved.EndTime)
	}

	// Checked-in appointments cannot be rescheduled.
	svc.Transition(ctx, a.ID, StatusCheckedIn)
	if _, err := svc.Reschedule(ctx, a.ID, at(11, 0), at(11, 30)); !apperror.IsKind(err, apperror.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}
