package etl

import (
	"math"
	"strconv"
	"strings"
)

// Round2 rounds to two decimal places, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ComputeBMI derives body mass index from weight in kilograms and height in
// centimeters, rounded to two decimals. Height is range-checked upstream so
// division is safe.
func ComputeBMI(weightKg, heightCm float64) float64 {
	m := heightCm / 100
	return Round2(weightKg / (m * m))
}

// ClassifySeverity derives a severity band from clinical measurements when
// the source left it blank. Any measurement in a critical range makes the
// band High; any in an elevated range makes it Moderate; otherwise Low.
func ClassifySeverity(cholesterol, glucose int, bloodPressure string) string {
	systolic := systolicOf(bloodPressure)
	switch {
	case cholesterol >= 280 || glucose >= 200 || systolic >= 160:
		return "High"
	case cholesterol >= 220 || glucose >= 126 || systolic >= 140:
		return "Moderate"
	default:
		return "Low"
	}
}

// systolicOf extracts the systolic reading from a "SYS/DIA" string. The
// format is pattern-validated upstream; a malformed value reads as zero and
// only the other measurements drive the band.
func systolicOf(bloodPressure string) int {
	parts := strings.SplitN(bloodPressure, "/", 2)
	if len(parts) == 0 {
		return 0
	}
	n, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0
	}
	return n
}
