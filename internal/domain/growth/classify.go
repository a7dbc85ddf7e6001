package growth

// Classify derives a single growth status from the available Z-scores.
// BMI takes precedence over weight-for-age, which takes precedence over
// height-for-age. When BMI is available it always decides.
func Classify(bmiZ, weightZ, heightZ *float64) GrowthStatus {
	if bmiZ != nil {
		switch {
		case *bmiZ < -2:
			return StatusStunted
		case *bmiZ > 3:
			return StatusObese
		case *bmiZ > 2:
			return StatusOverweight
		default:
			return StatusNormal
		}
	}
	if weightZ != nil {
		switch {
		case *weightZ < -2:
			return StatusUnderweight
		case *weightZ > 3:
			return StatusObese
		case *weightZ > 2:
			return StatusOverweight
		}
	}
	if heightZ != nil && *heightZ < -2 {
		return StatusStunted
	}
	return StatusNormal
}
