// Package usage provides the daily bandwidth accounting types and
// aggregation functions. All functions are pure - no side effects.
package usage

import "time"

// Kind identifies the direction of a transfer event.
type Kind string

const (
	KindUpload   Kind = "upload"
	KindDeletion Kind = "deletion"
)

// TransferEvent is one entry in a day's append-only upload or deletion log
// (immutable value type). Insertion order is chronological order.
type TransferEvent struct {
	ID        string
	FileName  string
	FileSize  int64
	Timestamp time.Time
}

// Delta describes a single accounting event to be applied to a day's record.
type Delta struct {
	Kind     Kind
	FileName string
	FileSize int64
}

// AlertStages holds the reserved one-shot notification flags. They are set
// at most once per day and never cleared except by reset.
type AlertStages struct {
	EightyPercentSent bool
	UploadBlocked     bool
}

// DailyRecord is the accounting bucket for one (user, calendar day).
// The zero value represents an absent record: zero usage, empty logs.
type DailyRecord struct {
	UserKey             string
	Day                 time.Time // midnight-aligned UTC
	TotalUploadVolume   int64
	TotalDeletionVolume int64
	UploadCount         int64
	DeletionCount       int64
	Uploads             []TransferEvent
	Deletions           []TransferEvent
	Alerts              AlertStages
}

// NetVolume is the derived upload-minus-deletion view. May be negative.
func (r DailyRecord) NetVolume() int64 {
	return r.TotalUploadVolume - r.TotalDeletionVolume
}

// Apply returns a copy of the record with one event accumulated.
// This is a PURE function - the receiver is not modified.
func (r DailyRecord) Apply(d Delta, eventID string, at time.Time) DailyRecord {
	ev := TransferEvent{
		ID:        eventID,
		FileName:  d.FileName,
		FileSize:  d.FileSize,
		Timestamp: at,
	}

	out := r
	out.Uploads = append([]TransferEvent{}, r.Uploads...)
	out.Deletions = append([]TransferEvent{}, r.Deletions...)

	switch d.Kind {
	case KindDeletion:
		out.TotalDeletionVolume += d.FileSize
		out.DeletionCount++
		out.Deletions = append(out.Deletions, ev)
	default:
		out.TotalUploadVolume += d.FileSize
		out.UploadCount++
		out.Uploads = append(out.Uploads, ev)
	}

	return out
}

// Day truncates a timestamp to its UTC calendar day (midnight-aligned,
// no time-of-day component).
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SpanDays returns the inclusive calendar span between two days, in days.
// Both arguments must be midnight-aligned.
func SpanDays(start, end time.Time) int {
	if end.Before(start) {
		start, end = end, start
	}
	return int(end.Sub(start).Hours()/24) + 1
}
