package growth

import "math"

// lmsDegenerateL is the cutoff below which the Box-Cox power is treated as
// zero and the log-normal form is used.
const lmsDegenerateL = 0.001

// ZScore applies the LMS (Box-Cox) transform to a raw value.
func ZScore(value float64, ref Reference) float64 {
	if math.Abs(ref.L) < lmsDegenerateL {
		return math.Log(value/ref.M) / ref.S
	}
	return (math.Pow(value/ref.M, ref.L) - 1) / (ref.L * ref.S)
}

// PercentileFromZ converts a Z-score to a 0-100 percentile, rounded to one
// decimal. Uses a closed-form approximation of the standard normal CDF,
//
//	phi(z) = 0.5 * (1 + sign(z) * sqrt(1 - exp(-2z^2/pi)))
//
// which the stored assessments were computed with. Do not replace it with an
// erf-based CDF: historical records would stop matching recomputation.
func PercentileFromZ(z float64) float64 {
	sign := 1.0
	if z < 0 {
		sign = -1.0
	}
	phi := 0.5 * (1 + sign*math.Sqrt(1-math.Exp(-2*z*z/math.Pi)))
	return math.Round(phi*1000) / 10
}
