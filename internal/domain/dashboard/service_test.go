package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pedcare/clinic/internal/platform/cache"
	"github.com/pedcare/clinic/internal/platform/db"
)

type counters struct {
	patients     int
	total        int
	completed    int
	cancelled    int
	vaccinations int
	flagged      int
	queries      int
}

func (c *counters) Count(context.Context) (int, error) {
	c.queries++
	return c.patients, nil
}

func (c *counters) CountByDay(context.Context, time.Time) (int, int, int, error) {
	return c.total, c.completed, c.cancelled, nil
}

func (c *counters) GivenSince(context.Context, time.Time) (int, error) {
	return c.vaccinations, nil
}

func (c *counters) AbnormalSince(context.Context, time.Time) (int, error) {
	return c.flagged, nil
}

func newService(t *testing.T) (*Service, *counters, *cache.Versions, context.Context) {
	t.Helper()
	c := &counters{patients: 42, total: 10, completed: 6, cancelled: 1, vaccinations: 17, flagged: 3}
	versions := cache.NewVersions(cache.NewMemory(), zerolog.Nop())
	svc := NewService(c, c, c, c, versions, time.Minute, zerolog.Nop())
	ctx := context.WithValue(context.Background(), db.ClinicIDKey, "default")
	return svc, c, versions, ctx
}

func TestSummary_Aggregates(t *testing.T) {
	svc, _, _, ctx := newService(t)

	got, err := svc.Summary(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ActivePatients != 42 {
		t.Errorf("active patients: expected 42, got %d", got.ActivePatients)
	}
	if got.AppointmentsToday != 10 || got.AppointmentsCompleted != 6 || got.AppointmentsCancelled != 1 {
		t.Errorf("appointments: got %d/%d/%d", got.AppointmentsToday, got.AppointmentsCompleted, got.AppointmentsCancelled)
	}
	if got.VaccinationsThisMonth != 17 {
		t.Errorf("vaccinations: expected 17, got %d", got.VaccinationsThisMonth)
	}
	if got.AbnormalGrowthLast90d != 3 {
		t.Errorf("abnormal growth: expected 3, got %d", got.AbnormalGrowthLast90d)
	}
}

func TestSummary_KeyedPerClinic(t *testing.T) {
	// Two clinics share one store (as they do in production Redis). A summary
	// cached for one clinic must never be served to the other, even while
	// both sit at the same clinic version.
	store := cache.NewMemory()
	alphaCounters := &counters{patients: 111}
	betaCounters := &counters{patients: 222}
	alphaSvc := NewService(alphaCounters, alphaCounters, alphaCounters, alphaCounters,
		cache.NewVersions(store, zerolog.Nop()), time.Minute, zerolog.Nop())
	betaSvc := NewService(betaCounters, betaCounters, betaCounters, betaCounters,
		cache.NewVersions(store, zerolog.Nop()), time.Minute, zerolog.Nop())

	alphaCtx := context.WithValue(context.Background(), db.ClinicIDKey, "alpha")
	betaCtx := context.WithValue(context.Background(), db.ClinicIDKey, "beta")

	got, err := alphaSvc.Summary(alphaCtx)
	if err != nil {
		t.Fatalf("alpha read failed: %v", err)
	}
	if got.ActivePatients != 111 {
		t.Fatalf("alpha: expected 111, got %d", got.ActivePatients)
	}

	got, err = betaSvc.Summary(betaCtx)
	if err != nil {
		t.Fatalf("beta read failed: %v", err)
	}
	if got.ActivePatients != 222 {
		t.Errorf("beta served another clinic's summary: expected 222, got %d", got.ActivePatients)
	}
}

func TestSummary_CachedUntilClinicVersionBumps(t *testing.T) {
	svc, c, versions, ctx := newService(t)

	if _, err := svc.Summary(ctx); err != nil {
		t.Fatalf("first read failed: %v", err)
	}
	queriesAfterFirst := c.queries

	// Repeat read hits the cache; the stale patient count is served.
	c.patients = 100
	got, err := svc.Summary(ctx)
	if err != nil {
		t.Fatalf("cached read failed: %v", err)
	}
	if c.queries != queriesAfterFirst {
		t.Errorf("expected cached read, counters queried %d more times", c.queries-queriesAfterFirst)
	}
	if got.ActivePatients != 42 {
		t.Errorf("expected stale cached count 42, got %d", got.ActivePatients)
	}

	// A clinic-version bump (any domain mutation) forces a recompute.
	versions.InvalidateClinic(ctx, "default")
	got, err = svc.Summary(ctx)
	if err != nil {
		t.Fatalf("recomputed read failed: %v", err)
	}
	if got.ActivePatients != 100 {
		t.Errorf("expected fresh count 100 after invalidation, got %d", got.ActivePatients)
	}
}
