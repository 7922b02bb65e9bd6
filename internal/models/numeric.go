package models

import "math"

// Round2 rounds to two decimals, half away from zero. Used for money and percentages.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Percent returns part/whole*100 rounded to two decimals, or 0 when whole is not positive.
func Percent(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}
	return Round2(part / whole * 100)
}
