package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestMemory_SetGet(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	if err := s.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	data, ok, err := s.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if string(data) != "v" {
		t.Errorf("expected v, got %q", data)
	}
}

func TestMemory_MissingKey(t *testing.T) {
	s := NewMemory()
	_, ok, err := s.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected miss for missing key")
	}
}

func TestMemory_Expiry(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	s.Set(ctx, "k", []byte("v"), time.Nanosecond)
	time.Sleep(5 * time.Millisecond)

	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Error("expected expired entry to miss")
	}
}

func TestMemory_ZeroTTLNeverExpires(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	s.Set(ctx, "counter", []byte("5"), 0)
	time.Sleep(2 * time.Millisecond)

	if _, ok, _ := s.Get(ctx, "counter"); !ok {
		t.Error("entry with zero TTL should not expire")
	}
}

func TestMemory_Incr(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	n, err := s.Incr(ctx, "c")
	if err != nil || n != 1 {
		t.Fatalf("first incr: got %d, %v", n, err)
	}
	n, _ = s.Incr(ctx, "c")
	if n != 2 {
		t.Errorf("second incr: expected 2, got %d", n)
	}

	got, ok, err := s.GetInt(ctx, "c")
	if err != nil || !ok || got != 2 {
		t.Errorf("GetInt: got %d ok=%v err=%v", got, ok, err)
	}
}

func TestMemory_GetIntMissing(t *testing.T) {
	s := NewMemory()
	n, ok, err := s.GetInt(context.Background(), "absent")
	if err != nil || ok || n != 0 {
		t.Errorf("expected (0, false, nil), got (%d, %v, %v)", n, ok, err)
	}
}

func TestKey(t *testing.T) {
	if got := Key("growth:history:p1", 3); got != "growth:history:p1:v3" {
		t.Errorf("unexpected key %q", got)
	}
}

func TestVersions_InvalidatePatientBumpsBoth(t *testing.T) {
	s := NewMemory()
	v := NewVersions(s, zerolog.Nop())
	ctx := context.Background()

	pv0 := v.PatientVersion(ctx, "default", "p1")
	cv0 := v.ClinicVersion(ctx, "default")

	v.InvalidatePatient(ctx, "default", "p1")

	if pv := v.PatientVersion(ctx, "default", "p1"); pv <= pv0 {
		t.Errorf("patient version not bumped: %d -> %d", pv0, pv)
	}
	if cv := v.ClinicVersion(ctx, "default"); cv <= cv0 {
		t.Errorf("clinic version not bumped: %d -> %d", cv0, cv)
	}
}

func TestVersions_InvalidationMakesOldKeyUnreachable(t *testing.T) {
	s := NewMemory()
	v := NewVersions(s, zerolog.Nop())
	ctx := context.Background()

	type payload struct{ N int }

	ver := v.PatientVersion(ctx, "default", "p1")
	v.SetJSON(ctx, "growth:history:p1", ver, payload{N: 42}, time.Minute)

	var out payload
	if !v.GetJSON(ctx, "growth:history:p1", ver, &out) || out.N != 42 {
		t.Fatal("expected cache hit before invalidation")
	}

	v.InvalidatePatient(ctx, "default", "p1")

	newVer := v.PatientVersion(ctx, "default", "p1")
	if newVer <= ver {
		t.Fatalf("expected strictly greater version, got %d -> %d", ver, newVer)
	}
	if v.GetJSON(ctx, "growth:history:p1", newVer, &out) {
		t.Error("expected miss under new version after invalidation")
	}
}

func TestVersions_PatientCountersIsolatedPerPatient(t *testing.T) {
	s := NewMemory()
	v := NewVersions(s, zerolog.Nop())
	ctx := context.Background()

	v.InvalidatePatient(ctx, "default", "p1")
	if pv := v.PatientVersion(ctx, "default", "p2"); pv != 0 {
		t.Errorf("other patient's counter moved: %d", pv)
	}
}

// failStore errors on every operation to exercise the degrade-to-miss path.
type failStore struct{}

func (failStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("down")
}
func (failStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("down")
}
func (failStore) Delete(context.Context, string) error    { return errors.New("down") }
func (failStore) Incr(context.Context, string) (int64, error) {
	return 0, errors.New("down")
}
func (failStore) GetInt(context.Context, string) (int64, bool, error) {
	return 0, false, errors.New("down")
}

func TestVersions_StoreFailureDegradesToMiss(t *testing.T) {
	v := NewVersions(failStore{}, zerolog.Nop())
	ctx := context.Background()

	if ver := v.ClinicVersion(ctx, "default"); ver != 0 {
		t.Errorf("expected version 0 on store failure, got %d", ver)
	}

	var out struct{ N int }
	if v.GetJSON(ctx, "k", 0, &out) {
		t.Error("expected miss on store failure")
	}

	// Must not panic or surface errors.
	v.SetJSON(ctx, "k", 0, out, time.Minute)
	v.InvalidatePatient(ctx, "default", "p1")
}
