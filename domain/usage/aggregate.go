package usage

import "time"

// DayView projects one daily record against the configured per-day limit.
type DayView struct {
	Record             DailyRecord
	Limit              int64
	Remaining          int64
	PercentageConsumed float64 // may exceed 100
}

// Project computes the derived per-day fields for a record.
// This is a PURE function.
func Project(r DailyRecord, limit int64) DayView {
	v := DayView{
		Record:    r,
		Limit:     limit,
		Remaining: limit - r.TotalUploadVolume,
	}
	if limit > 0 {
		v.PercentageConsumed = float64(r.TotalUploadVolume) / float64(limit) * 100
	}
	return v
}

// DateRange describes the calendar span covered by a set of records.
// TotalDays is the inclusive span between the earliest and latest record
// day, not the record count: days with no activity still count.
type DateRange struct {
	Start      time.Time // zero when no records
	End        time.Time // zero when no records
	TotalDays  int
	ActiveDays int
	IdleDays   int
}

// Totals accumulates volume across the whole range.
type Totals struct {
	LimitProvided    int64 // per-day limit * total days
	Uploaded         int64
	Deleted          int64
	PercentageOfAll  float64
}

// Averages divides totals by total calendar days, and separately by days
// that actually had activity. All divisions are zero-guarded.
type Averages struct {
	DailyUpload         float64
	DailyDeletion       float64
	DailyUploadCount    float64
	DailyDeletionCount  float64
	ActiveDayUpload     float64
	ActiveDayDeletion   float64
}

// Activity accumulates event counts across the whole range.
type Activity struct {
	UploadCount   int64
	DeletionCount int64
}

// Summary is the multi-day aggregation over one user's daily records.
type Summary struct {
	UserKey  string
	Range    DateRange
	Totals   Totals
	Averages Averages
	Activity Activity
}

// Summarize combines a user's daily records into a multi-day summary.
// Records must be ordered by day descending (most recent first), as
// returned by the store. Empty input yields a zeroed summary, never a
// division error.
// This is a PURE function.
func Summarize(records []DailyRecord, perDayLimit int64) Summary {
	var s Summary

	if len(records) == 0 {
		return s
	}

	s.UserKey = records[0].UserKey
	s.Range.End = records[0].Day
	s.Range.Start = records[len(records)-1].Day
	s.Range.TotalDays = SpanDays(s.Range.Start, s.Range.End)
	s.Range.ActiveDays = len(records)
	s.Range.IdleDays = s.Range.TotalDays - s.Range.ActiveDays

	for _, r := range records {
		s.Totals.Uploaded += r.TotalUploadVolume
		s.Totals.Deleted += r.TotalDeletionVolume
		s.Activity.UploadCount += r.UploadCount
		s.Activity.DeletionCount += r.DeletionCount
	}

	s.Totals.LimitProvided = perDayLimit * int64(s.Range.TotalDays)
	if s.Totals.LimitProvided > 0 {
		s.Totals.PercentageOfAll = float64(s.Totals.Uploaded) / float64(s.Totals.LimitProvided) * 100
	}

	if days := float64(s.Range.TotalDays); days > 0 {
		s.Averages.DailyUpload = float64(s.Totals.Uploaded) / days
		s.Averages.DailyDeletion = float64(s.Totals.Deleted) / days
		s.Averages.DailyUploadCount = float64(s.Activity.UploadCount) / days
		s.Averages.DailyDeletionCount = float64(s.Activity.DeletionCount) / days
	}
	if active := float64(s.Range.ActiveDays); active > 0 {
		s.Averages.ActiveDayUpload = float64(s.Totals.Uploaded) / active
		s.Averages.ActiveDayDeletion = float64(s.Totals.Deleted) / active
	}

	return s
}
