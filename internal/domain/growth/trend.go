package growth

import "math"

// VelocityClass buckets a velocity against simplified heuristics. These are
// screening thresholds, not WHO-calibrated velocity standards.
type VelocityClass string

const (
	VelocitySlow   VelocityClass = "slow"
	VelocityNormal VelocityClass = "normal"
	VelocityRapid  VelocityClass = "rapid"
)

// TrendPattern buckets the percentile drift across a measurement series.
type TrendPattern string

const (
	PatternStable          TrendPattern = "stable"
	PatternGradualIncrease TrendPattern = "gradual_increase"
	PatternGradualDecrease TrendPattern = "gradual_decrease"
	PatternRapidIncrease   TrendPattern = "rapid_increase"
	PatternRapidDecrease   TrendPattern = "rapid_decrease"
)

// GrowthTrend is the two-point gain between the earliest and latest
// measurement in a series.
type GrowthTrend struct {
	Days             int      `json:"days"`
	WeightGain       float64  `json:"weight_gain"`
	WeightGainPerDay float64  `json:"weight_gain_per_day"`
	HeightGain       *float64 `json:"height_gain,omitempty"`
	HeightGainPerDay *float64 `json:"height_gain_per_day,omitempty"`
}

// Velocity is the rate of change between the two most recent measurements,
// expressed per month.
type Velocity struct {
	DaysBetween    int            `json:"days_between"`
	WeightVelocity float64        `json:"weight_velocity"`
	WeightClass    VelocityClass  `json:"weight_class"`
	HeightVelocity *float64       `json:"height_velocity,omitempty"`
	HeightClass    *VelocityClass `json:"height_class,omitempty"`
}

// TrendAnalysis summarizes percentile drift across the whole series and
// flags patterns that warrant clinical review.
type TrendAnalysis struct {
	PercentileChange float64      `json:"percentile_change"`
	ZScoreChange     float64      `json:"z_score_change"`
	Pattern          TrendPattern `json:"pattern"`
	Concern          bool         `json:"concern"`
}

// minVelocityDays is the minimum spacing between two measurements for a
// velocity to be meaningful.
const minVelocityDays = 7

// Trend computes the earliest-to-latest gain over records sorted ascending
// by date. Returns nil with fewer than two records.
func Trend(records []*GrowthRecord) *GrowthTrend {
	if len(records) < 2 {
		return nil
	}
	first, last := records[0], records[len(records)-1]
	days := AgeDaysAt(first.Date, last.Date)

	t := &GrowthTrend{
		Days:       days,
		WeightGain: last.Weight - first.Weight,
	}
	if days > 0 {
		t.WeightGainPerDay = t.WeightGain / float64(days)
	}
	if first.Height != nil && last.Height != nil {
		gain := *last.Height - *first.Height
		t.HeightGain = &gain
		perDay := 0.0
		if days > 0 {
			perDay = gain / float64(days)
		}
		t.HeightGainPerDay = &perDay
	}
	return t
}

func classifyVelocity(v, slow, rapid float64) VelocityClass {
	switch {
	case v < slow:
		return VelocitySlow
	case v > rapid:
		return VelocityRapid
	default:
		return VelocityNormal
	}
}

// VelocityFrom computes the monthly velocity over the two most recent
// records of a series sorted ascending by date. Returns nil with fewer than
// two records or when the pair is less than a week apart.
func VelocityFrom(records []*GrowthRecord) *Velocity {
	if len(records) < 2 {
		return nil
	}
	prev, last := records[len(records)-2], records[len(records)-1]
	daysDiff := AgeDaysAt(prev.Date, last.Date)
	if daysDiff < minVelocityDays {
		return nil
	}

	months := float64(daysDiff) / daysPerMonth
	v := &Velocity{
		DaysBetween:    daysDiff,
		WeightVelocity: (last.Weight - prev.Weight) / months,
	}
	v.WeightClass = classifyVelocity(v.WeightVelocity, 0.1, 0.5)

	if prev.Height != nil && last.Height != nil {
		hv := (*last.Height - *prev.Height) / months
		hc := classifyVelocity(hv, 0.3, 1.5)
		v.HeightVelocity = &hv
		v.HeightClass = &hc
	}
	return v
}

// AnalyzeTrend evaluates weight-for-age percentile drift across the series.
// Returns nil when fewer than two records carry a weight-for-age assessment.
func AnalyzeTrend(records []*GrowthRecord) *TrendAnalysis {
	var assessed []*GrowthRecord
	for _, r := range records {
		if r.WeightForAgeZ != nil && r.WeightPercentile != nil {
			assessed = append(assessed, r)
		}
	}
	if len(assessed) < 2 {
		return nil
	}
	first, last := assessed[0], assessed[len(assessed)-1]

	a := &TrendAnalysis{
		PercentileChange: *last.WeightPercentile - *first.WeightPercentile,
		ZScoreChange:     *last.WeightForAgeZ - *first.WeightForAgeZ,
	}

	abs := math.Abs(a.PercentileChange)
	switch {
	case abs < 5:
		a.Pattern = PatternStable
	case abs <= 15:
		if a.PercentileChange > 0 {
			a.Pattern = PatternGradualIncrease
		} else {
			a.Pattern = PatternGradualDecrease
		}
	default:
		if a.PercentileChange > 0 {
			a.Pattern = PatternRapidIncrease
		} else {
			a.Pattern = PatternRapidDecrease
		}
	}

	lastZ := *last.WeightForAgeZ
	dz := a.ZScoreChange
	a.Concern = math.Abs(dz) > 1.5 ||
		(dz < -1 && lastZ < -1) ||
		(dz > 1 && lastZ > 2)

	return a
}
