package growth

import (
	"math"
	"testing"
)

func TestZScore_ValueAtMedianIsZero(t *testing.T) {
	refs := []Reference{
		{L: 0.5, M: 7.8, S: 0.12},
		{L: -1.2, M: 16.0, S: 0.08},
		{L: 1.0, M: 50.0, S: 0.04},
	}
	for _, ref := range refs {
		if z := ZScore(ref.M, ref); math.Abs(z) > 1e-12 {
			t.Errorf("Z at median should be 0, got %v for %+v", z, ref)
		}
	}
}

func TestZScore_DegenerateL(t *testing.T) {
	ref := Reference{L: 0, M: 10.0, S: 0.1}
	want := math.Log(12.0/10.0) / 0.1
	if z := ZScore(12.0, ref); math.Abs(z-want) > 1e-12 {
		t.Errorf("expected log-normal branch %v, got %v", want, z)
	}

	// Just under the cutoff takes the same branch.
	refSmall := Reference{L: 0.0009, M: 10.0, S: 0.1}
	if z := ZScore(12.0, refSmall); math.Abs(z-want) > 1e-12 {
		t.Errorf("expected |L| < 0.001 to use log-normal branch, got %v", z)
	}
}

func TestZScore_BoxCox(t *testing.T) {
	ref := Reference{L: 0.5, M: 7.8, S: 0.12}
	got := ZScore(7.5, ref)
	want := (math.Pow(7.5/7.8, 0.5) - 1) / (0.5 * 0.12)
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("expected %v, got %v", want, got)
	}
	if got > -0.31 || got < -0.34 {
		t.Errorf("Z out of expected range: %v", got)
	}
}

func TestPercentileFromZ_Median(t *testing.T) {
	if p := PercentileFromZ(0); p != 50.0 {
		t.Errorf("expected 50.0 at Z=0, got %v", p)
	}
}

func TestPercentileFromZ_Symmetry(t *testing.T) {
	for _, z := range []float64{0.5, 1.0, 2.0} {
		up := PercentileFromZ(z)
		down := PercentileFromZ(-z)
		if math.Abs((up+down)-100) > 0.11 {
			t.Errorf("percentiles at ±%v not symmetric: %v + %v", z, up, down)
		}
	}
}

func TestPercentileFromZ_Monotonic(t *testing.T) {
	ref := Reference{L: 0.5, M: 7.8, S: 0.12}
	prev := -1.0
	for v := 4.0; v <= 12.0; v += 0.1 {
		p := PercentileFromZ(ZScore(v, ref))
		if p < prev {
			t.Fatalf("percentile decreased at value %v: %v < %v", v, p, prev)
		}
		prev = p
	}
}

func TestPercentileFromZ_OneDecimal(t *testing.T) {
	p := PercentileFromZ(-0.3236)
	if p != math.Round(p*10)/10 {
		t.Errorf("percentile not rounded to one decimal: %v", p)
	}
	if p < 37.0 || p > 37.5 {
		t.Errorf("percentile outside expected band: %v", p)
	}
}
