package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Versions implements version-salted cache keys. Every cached read embeds the
// current version counter in its key; invalidation increments the counter so
// all keys built with the old version become unreachable and expire via TTL.
// Counters are monotonic and never deleted.
//
// Cache failures are never surfaced to callers: a broken cache degrades to a
// miss and the database remains the source of truth.
type Versions struct {
	store Store
	log   zerolog.Logger
}

// NewVersions creates a Versions component over the given store.
func NewVersions(store Store, logger zerolog.Logger) *Versions {
	return &Versions{store: store, log: logger}
}

func clinicVersionKey(clinicID string) string {
	return "version:clinic:" + clinicID
}

func patientVersionKey(clinicID, patientID string) string {
	return "version:patient:" + clinicID + ":" + patientID
}

// ClinicVersion returns the current clinic-wide version counter. A missing
// counter reads as 0; a store failure also reads as 0, which only widens the
// set of cache misses.
func (v *Versions) ClinicVersion(ctx context.Context, clinicID string) int64 {
	return v.version(ctx, clinicVersionKey(clinicID))
}

// PatientVersion returns the current per-patient version counter.
func (v *Versions) PatientVersion(ctx context.Context, clinicID, patientID string) int64 {
	return v.version(ctx, patientVersionKey(clinicID, patientID))
}

func (v *Versions) version(ctx context.Context, key string) int64 {
	n, ok, err := v.store.GetInt(ctx, key)
	if err != nil {
		v.log.Warn().Err(err).Str("key", key).Msg("cache version read failed")
		return 0
	}
	if !ok {
		return 0
	}
	return n
}

// Key builds a versioned cache key from a base key and a version counter.
func Key(base string, version int64) string {
	return fmt.Sprintf("%s:v%d", base, version)
}

// InvalidatePatient bumps both the patient counter and the clinic counter, so
// patient-scoped and clinic-wide aggregates are refreshed together. Call it
// strictly after the owning transaction commits.
func (v *Versions) InvalidatePatient(ctx context.Context, clinicID, patientID string) {
	v.bump(ctx, patientVersionKey(clinicID, patientID))
	v.bump(ctx, clinicVersionKey(clinicID))
}

// InvalidateClinic bumps the clinic-wide counter only.
func (v *Versions) InvalidateClinic(ctx context.Context, clinicID string) {
	v.bump(ctx, clinicVersionKey(clinicID))
}

func (v *Versions) bump(ctx context.Context, key string) {
	if _, err := v.store.Incr(ctx, key); err != nil {
		v.log.Warn().Err(err).Str("key", key).Msg("cache invalidation failed")
	}
}

// GetJSON reads a versioned key and unmarshals it into dst. Any store or
// decode failure is logged and reported as a miss.
func (v *Versions) GetJSON(ctx context.Context, base string, version int64, dst any) bool {
	key := Key(base, version)
	data, ok, err := v.store.Get(ctx, key)
	if err != nil {
		v.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		v.log.Warn().Err(err).Str("key", key).Msg("cache payload corrupt")
		return false
	}
	return true
}

// SetJSON marshals val and stores it under the versioned key with the given
// TTL. Failures are logged and swallowed.
func (v *Versions) SetJSON(ctx context.Context, base string, version int64, val any, ttl time.Duration) {
	key := Key(base, version)
	data, err := json.Marshal(val)
	if err != nil {
		v.log.Warn().Err(err).Str("key", key).Msg("cache payload marshal failed")
		return
	}
	if err := v.store.Set(ctx, key, data, ttl); err != nil {
		v.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}
