package domain

import "math"

// BurnedClassThreshold is the lowest class counted as burned.
const BurnedClassThreshold = 4

// SeverityClass is one row of the dNBR classification table.
type SeverityClass struct {
	Class          int     `json:"class"`
	Label          string  `json:"label"`
	Lower          float64 `json:"lower"`
	Upper          float64 `json:"upper"`
	UpperInclusive bool    `json:"upper_inclusive"`
}

var severityClasses = []SeverityClass{
	{Class: 1, Label: "Enhanced Regrowth (High)", Lower: -0.5, Upper: -0.251},
	{Class: 2, Label: "Enhanced Regrowth (Low)", Lower: -0.25, Upper: -0.101},
	{Class: 3, Label: "Unburned", Lower: -0.10, Upper: 0.099, UpperInclusive: true},
	{Class: 4, Label: "Low Severity Burns", Lower: 0.10, Upper: 0.269},
	{Class: 5, Label: "Moderate-Low Severity Burns", Lower: 0.27, Upper: 0.439},
	{Class: 6, Label: "Moderate-High Severity Burns", Lower: 0.44, Upper: 0.659},
	{Class: 7, Label: "High Severity Burns", Lower: 0.66, Upper: 1.30, UpperInclusive: true},
}

// SeverityClasses returns a copy of the classification table ordered by class.
func SeverityClasses() []SeverityClass {
	out := make([]SeverityClass, len(severityClasses))
	copy(out, severityClasses)
	return out
}

// Contains reports whether d falls inside the class range.
func (s SeverityClass) Contains(d float64) bool {
	if d < s.Lower {
		return false
	}
	if s.UpperInclusive {
		return d <= s.Upper
	}
	return d < s.Upper
}

// Burned reports whether the class counts toward the burned area.
func (s SeverityClass) Burned() bool {
	return s.Class >= BurnedClassThreshold
}

// Classify maps a dNBR value to its severity class. The first matching row
// wins. ok is false for NaN and for values no row contains.
func Classify(d float64) (SeverityClass, bool) {
	if math.IsNaN(d) {
		return SeverityClass{}, false
	}
	for _, c := range severityClasses {
		if c.Contains(d) {
			return c, true
		}
	}
	return SeverityClass{}, false
}

// ClassLabel returns the label for a class number, or "" if unknown.
func ClassLabel(class int) string {
	if class < 1 || class > len(severityClasses) {
		return ""
	}
	return severityClasses[class-1].Label
}
