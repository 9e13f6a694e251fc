// Package qc holds the production-line quality rules shared by every stage
// form: short-length detection and the optical length auto-fill.
package qc

import (
	"math"

	"fiberqc/internal/models"
)

// ShortLengthThresholdKM is the length @1550nm under which a fiber or tube
// is flagged as short.
const ShortLengthThresholdKM = 24.5

// Cable status values written when a QC check is recorded.
const (
	CableInProgress = "in_progress"
	CableQCPassed   = "qc_passed"
	CableQCFailed   = "qc_failed"
	CableCompleted  = "completed"
)

// QC check outcomes.
const (
	Pass = "pass"
	Fail = "fail"
)

// IsShort reports whether a measured length is below the short threshold.
// A zero or negative length is an unmeasured value, not a short one.
func IsShort(lengthKM float64) bool {
	return lengthKM > 0 && lengthKM < ShortLengthThresholdKM
}

// CountShort returns how many of the given lengths are short.
func CountShort(lengthsKM ...float64) int {
	n := 0
	for _, l := range lengthsKM {
		if IsShort(l) {
			n++
		}
	}
	return n
}

// OpticalLength returns the shortest of the given distances. The second
// result is false when there is nothing to measure.
func OpticalLength(distancesKM ...float64) (float64, bool) {
	if len(distancesKM) == 0 {
		return 0, false
	}
	shortest := math.Inf(1)
	for _, d := range distancesKM {
		if d < shortest {
			shortest = d
		}
	}
	return shortest, true
}

// FiberDistances flattens the 1310nm and 1550nm distances of every fiber.
func FiberDistances(fibers []models.CableFiberDetail) []float64 {
	out := make([]float64, 0, len(fibers)*2)
	for _, f := range fibers {
		out = append(out, f.Distance1310, f.Distance1550)
	}
	return out
}

// CableOpticalLength is the auto-fill value offered to the QC operator:
// the shortest reading across all assigned fibers, rounded for display.
func CableOpticalLength(fibers []models.CableFiberDetail) (float64, bool) {
	l, ok := OpticalLength(FiberDistances(fibers)...)
	if !ok {
		return 0, false
	}
	return RoundKM(l), true
}

// ShortFibers lists the fiber ids whose 1550nm length is short.
func ShortFibers(fibers []models.CableFiberDetail) []string {
	out := []string{}
	for _, f := range fibers {
		if IsShort(f.Distance1550) {
			out = append(out, f.FiberID)
		}
	}
	return out
}

// RoundKM rounds a length to two decimals.
func RoundKM(v float64) float64 {
	return math.Round(v*100) / 100
}

// CableStatusForQC maps a QC outcome to the cable status it implies.
func CableStatusForQC(status string) (string, bool) {
	switch status {
	case Pass:
		return CableQCPassed, true
	case Fail:
		return CableQCFailed, true
	}
	return "", false
}
