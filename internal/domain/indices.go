package domain

import (
	"math"
	"time"
)

// ReflectanceScale converts Sentinel-2 L2A integer reflectance to [0, 1].
const ReflectanceScale = 10000.0

// KelvinOffset is subtracted from Kelvin temperatures to obtain Celsius.
const KelvinOffset = 273.15

// NormalizedDifference returns (a - b) / (a + b), or 0 when the denominator is 0.
func NormalizedDifference(a, b float64) float64 {
	sum := a + b
	if sum == 0 {
		return 0
	}
	return (a - b) / sum
}

// NBR is the Normalized Burn Ratio of near-infrared and short-wave infrared
// reflectance.
func NBR(nir, swir float64) float64 {
	return NormalizedDifference(nir, swir)
}

// NDWI is the Normalized Difference Water Index of green and short-wave
// infrared reflectance.
func NDWI(green, swir float64) float64 {
	return NormalizedDifference(green, swir)
}

// DeltaNBR is the burn-severity proxy NBR(pre) - NBR(post).
func DeltaNBR(pre, post float64) float64 {
	return pre - post
}

// KelvinToCelsius converts a temperature and rounds it to two decimals.
func KelvinToCelsius(k float64) float64 {
	return Round(k-KelvinOffset, 2)
}

// Round rounds v half away from zero to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}

// MonthSpan widens [start, end] to the first day of start's month and the
// last day of end's month. Both results are at midnight UTC.
func MonthSpan(start, end time.Time) (time.Time, time.Time) {
	first := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	// Day 0 of the following month normalises to the last day of this one.
	last := time.Date(end.Year(), end.Month()+1, 0, 0, 0, 0, 0, time.UTC)
	return first, last
}
