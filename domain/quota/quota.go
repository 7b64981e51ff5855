// Package quota provides pure functions for daily bandwidth quota checks.
// All functions are deterministic with no side effects.
package quota

import "github.com/artpar/usagemeter/domain/usage"

// Alert thresholds as fractions of the daily limit.
const (
	ApproachingRatio = 0.8
	ExceededRatio    = 1.0
)

// AlertState reports proximity to the daily limit. Approaching and
// Exceeded are not mutually exclusive: exceeded implies approaching.
type AlertState struct {
	Approaching bool
	Exceeded    bool
}

// Allows reports whether a transfer of size bytes fits within the daily
// limit given the day's record so far. An absent record is the zero value,
// so a first upload is blocked only when it alone exceeds the limit.
// This is a PURE function.
func Allows(r usage.DailyRecord, size, limit int64) bool {
	return r.TotalUploadVolume+size <= limit
}

// Ratio returns the fraction of the daily limit consumed by uploads.
// limit must be > 0; this is a configuration contract validated at
// startup, not per call.
// This is a PURE function.
func Ratio(r usage.DailyRecord, limit int64) float64 {
	return float64(r.TotalUploadVolume) / float64(limit)
}

// Alerts evaluates the alert thresholds for a day's record.
// This is a PURE function.
func Alerts(r usage.DailyRecord, limit int64) AlertState {
	ratio := Ratio(r, limit)
	return AlertState{
		Approaching: ratio >= ApproachingRatio,
		Exceeded:    ratio >= ExceededRatio,
	}
}
