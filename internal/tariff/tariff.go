// Package tariff prices a parking session from its elapsed duration.
package tariff

import (
	"time"

	"parking-lpr-service/internal/domain/parking"
)

// ComputeFee bills durationMinutes against a rate. The grace period fully
// waives the charge; past it, partial hours round up, the first billable hour
// costs FirstHourFee and each further hour HourlyFee. A DailyCap of 0 means
// uncapped. Negative durations already satisfy the grace condition.
func ComputeFee(durationMinutes int64, rate parking.Rate, graceMinutes int64) int64 {
	if durationMinutes <= graceMinutes {
		return 0
	}
	billableMinutes := durationMinutes - graceMinutes
	billableHours := (billableMinutes + 59) / 60
	fee := rate.FirstHourFee + (billableHours-1)*rate.HourlyFee
	if rate.DailyCap > 0 && fee > rate.DailyCap {
		fee = rate.DailyCap
	}
	return fee
}

// DurationMinutes is the whole-minute interval between an IN and its OUT,
// clamped to 0 so clock skew cannot produce a negative bill.
func DurationMinutes(in, out time.Time) int64 {
	secs := int64(out.Sub(in) / time.Second)
	if secs < 0 {
		return 0
	}
	return secs / 60
}
