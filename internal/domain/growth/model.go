// Package growth implements WHO LMS growth assessment: Z-scores,
// percentiles, status classification, and velocity/trend analysis over a
// patient's measurement history.
package growth

import (
	"time"

	"github.com/google/uuid"
)

// Gender is the biological sex axis of the WHO reference tables.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Valid reports whether g is one of the reference genders.
func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}

// ChartType identifies a WHO growth chart. Measurement dispatch is done on
// this closed set, never on raw strings.
type ChartType string

const (
	ChartWeightForAge   ChartType = "weight_for_age"
	ChartHeightForAge   ChartType = "height_for_age"
	ChartBMIForAge      ChartType = "bmi_for_age"
	ChartHeadCircForAge ChartType = "head_circumference_for_age"
)

// Valid reports whether c is a known chart type.
func (c ChartType) Valid() bool {
	switch c {
	case ChartWeightForAge, ChartHeightForAge, ChartBMIForAge, ChartHeadCircForAge:
		return true
	}
	return false
}

// GrowthStatus is the clinical classification derived from Z-scores.
type GrowthStatus string

const (
	StatusNormal      GrowthStatus = "NORMAL"
	StatusUnderweight GrowthStatus = "UNDERWEIGHT"
	StatusStunted     GrowthStatus = "STUNTED"
	StatusOverweight  GrowthStatus = "OVERWEIGHT"
	StatusObese       GrowthStatus = "OBESE"
)

// GrowthStandard is one row of the WHO reference tables: the LMS triple for
// a given gender, chart, and age in days. Seeded once, read-only thereafter.
type GrowthStandard struct {
	ID        uuid.UUID `json:"id"`
	Gender    Gender    `json:"gender"`
	ChartType ChartType `json:"chart_type"`
	AgeDays   int       `json:"age_days"`
	L         float64   `json:"l"`
	M         float64   `json:"m"`
	S         float64   `json:"s"`
}

// Reference is the interpolated reference tuple at a patient's exact age.
// Mean/SD mirror M/S for callers that chart bands rather than Z-scores.
type Reference struct {
	L          float64 `json:"l"`
	M          float64 `json:"m"`
	S          float64 `json:"s"`
	Mean       float64 `json:"mean"`
	SD         float64 `json:"sd"`
	LowerBound float64 `json:"lower_bound"`
	UpperBound float64 `json:"upper_bound"`
}

// Measurement is the raw input captured at a visit.
type Measurement struct {
	PatientID         uuid.UUID `json:"patient_id"`
	Date              time.Time `json:"date"`
	Weight            float64   `json:"weight"`
	Height            *float64  `json:"height,omitempty"`
	HeadCircumference *float64  `json:"head_circumference,omitempty"`
	Notes             string    `json:"notes,omitempty"`
}

// GrowthRecord is a persisted, fully-assessed measurement.
type GrowthRecord struct {
	ID                uuid.UUID    `json:"id"`
	PatientID         uuid.UUID    `json:"patient_id"`
	Date              time.Time    `json:"date"`
	Weight            float64      `json:"weight"`
	Height            *float64     `json:"height,omitempty"`
	HeadCircumference *float64     `json:"head_circumference,omitempty"`
	AgeDays           int          `json:"age_days"`
	AgeMonths         float64      `json:"age_months"`
	WeightForAgeZ     *float64     `json:"weight_for_age_z,omitempty"`
	WeightPercentile  *float64     `json:"weight_percentile,omitempty"`
	HeightForAgeZ     *float64     `json:"height_for_age_z,omitempty"`
	HeightPercentile  *float64     `json:"height_percentile,omitempty"`
	BMI               *float64     `json:"bmi,omitempty"`
	BMIZ              *float64     `json:"bmi_z,omitempty"`
	BMIPercentile     *float64     `json:"bmi_percentile,omitempty"`
	GrowthStatus      GrowthStatus `json:"growth_status"`
	Notes             string       `json:"notes,omitempty"`
	RecordedByID      string       `json:"recorded_by_id,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
	DeletedAt         *time.Time   `json:"deleted_at,omitempty"`
}

// daysPerMonth converts day spans to the fractional months used throughout
// the WHO tables.
const daysPerMonth = 30.44

// AgeDaysAt returns whole days between dob and date.
func AgeDaysAt(dob, date time.Time) int {
	return int(date.Sub(dob).Hours() / 24)
}

// AgeMonthsFromDays converts whole days to fractional months.
func AgeMonthsFromDays(days int) float64 {
	return float64(days) / daysPerMonth
}

// BMIFrom computes body mass index from weight in kg and height in cm.
func BMIFrom(weightKg, heightCm float64) float64 {
	m := heightCm / 100
	return weightKg / (m * m)
}
