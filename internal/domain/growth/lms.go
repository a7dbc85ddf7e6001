package growth

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/pedcare/clinic/pkg/apperror"
)

// refCacheTTL bounds how long interpolated references live in the
// process-local cache. Reference data is effectively immutable, so a short
// TTL only limits memory, not staleness risk.
const refCacheTTL = 5 * time.Minute

type refCacheKey struct {
	gender   Gender
	chart    ChartType
	ageMonth int
}

type refCacheEntry struct {
	ref       Reference
	expiresAt time.Time
}

// refCache is a process-local TTL cache for interpolated references, keyed
// by whole age month so nearby ages share an entry.
type refCache struct {
	entries map[refCacheKey]refCacheEntry
	ttl     time.Duration
	mu      sync.RWMutex
}

func newRefCache(ttl time.Duration) *refCache {
	return &refCache{entries: make(map[refCacheKey]refCacheEntry), ttl: ttl}
}

func (c *refCache) get(key refCacheKey) (Reference, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(e.expiresAt) {
		return Reference{}, false
	}
	return e.ref, true
}

func (c *refCache) put(key refCacheKey, ref Reference) {
	c.mu.Lock()
	c.entries[key] = refCacheEntry{ref: ref, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

// Resolver interpolates WHO reference parameters at a patient's exact age.
type Resolver struct {
	standards StandardRepository
	cache     *refCache
}

// NewResolver creates a Resolver over the given standards repository.
func NewResolver(standards StandardRepository) *Resolver {
	return &Resolver{standards: standards, cache: newRefCache(refCacheTTL)}
}

// Reference returns the reference tuple for (gender, chart) at ageDays,
// linearly interpolating between the bounding table rows. Missing reference
// data is a validation failure: it reflects an unseeded table or an age
// outside the charted range, not a bug.
func (r *Resolver) Reference(ctx context.Context, gender Gender, chart ChartType, ageDays int) (Reference, error) {
	key := refCacheKey{gender: gender, chart: chart, ageMonth: int(math.Floor(AgeMonthsFromDays(ageDays)))}
	if ref, ok := r.cache.get(key); ok {
		return ref, nil
	}

	lower, upper, err := r.standards.FindBounding(ctx, gender, chart, ageDays)
	if err != nil {
		return Reference{}, apperror.Internal("load growth standards", err)
	}

	var ref Reference
	switch {
	case lower == nil && upper == nil:
		return Reference{}, apperror.Validation("no growth standards available for %s %s at age %d days", gender, chart, ageDays)
	case lower == nil:
		ref = refFromStandard(upper)
	case upper == nil:
		ref = refFromStandard(lower)
	case lower.AgeDays == upper.AgeDays:
		ref = refFromStandard(lower)
	default:
		ratio := float64(ageDays-lower.AgeDays) / float64(upper.AgeDays-lower.AgeDays)
		ref = interpolate(refFromStandard(lower), refFromStandard(upper), ratio)
	}

	r.cache.put(key, ref)
	return ref, nil
}

func refFromStandard(s *GrowthStandard) Reference {
	mean := s.M
	sd := s.S
	return Reference{
		L:          s.L,
		M:          s.M,
		S:          s.S,
		Mean:       mean,
		SD:         sd,
		LowerBound: mean - 2*sd,
		UpperBound: mean + 2*sd,
	}
}

func lerp(a, b, ratio float64) float64 {
	return a + (b-a)*ratio
}

func interpolate(lo, hi Reference, ratio float64) Reference {
	return Reference{
		L:          lerp(lo.L, hi.L, ratio),
		M:          lerp(lo.M, hi.M, ratio),
		S:          lerp(lo.S, hi.S, ratio),
		Mean:       lerp(lo.Mean, hi.Mean, ratio),
		SD:         lerp(lo.SD, hi.SD, ratio),
		LowerBound: lerp(lo.LowerBound, hi.LowerBound, ratio),
		UpperBound: lerp(lo.UpperBound, hi.UpperBound, ratio),
	}
}
