package usage

import (
	"testing"
	"time"
)

func TestProject(t *testing.T) {
	rec := DailyRecord{
		UserKey:           "u-1",
		Day:               day(2025, time.June, 1),
		TotalUploadVolume: 600,
	}

	v := Project(rec, 1000)

	if v.Remaining != 400 {
		t.Errorf("expected Remaining=400, got %d", v.Remaining)
	}
	if v.PercentageConsumed != 60 {
		t.Errorf("expected PercentageConsumed=60, got %f", v.PercentageConsumed)
	}
}

func TestProject_MayExceedHundredPercent(t *testing.T) {
	rec := DailyRecord{TotalUploadVolume: 1500}
	v := Project(rec, 1000)

	if v.PercentageConsumed != 150 {
		t.Errorf("expected PercentageConsumed=150, got %f", v.PercentageConsumed)
	}
	if v.Remaining != -500 {
		t.Errorf("expected Remaining=-500, got %d", v.Remaining)
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil, 1000)

	if s.Range.TotalDays != 0 || s.Range.ActiveDays != 0 {
		t.Errorf("expected zero day counts, got %+v", s.Range)
	}
	if s.Totals.Uploaded != 0 || s.Totals.LimitProvided != 0 {
		t.Errorf("expected zero totals, got %+v", s.Totals)
	}
	if s.Averages != (Averages{}) {
		t.Errorf("expected zero averages, got %+v", s.Averages)
	}
	if !s.Range.Start.IsZero() || !s.Range.End.IsZero() {
		t.Errorf("expected absent date range, got %+v", s.Range)
	}
}

func TestSummarize_CalendarSpanNotRecordCount(t *testing.T) {
	// Activity on day 1 and day 5 only: the span is 5 days, 2 active.
	records := []DailyRecord{
		{UserKey: "u-1", Day: day(2025, time.June, 5), TotalUploadVolume: 300, UploadCount: 3},
		{UserKey: "u-1", Day: day(2025, time.June, 1), TotalUploadVolume: 200, UploadCount: 2},
	}

	s := Summarize(records, 1000)

	if s.Range.TotalDays != 5 {
		t.Errorf("expected TotalDays=5, got %d", s.Range.TotalDays)
	}
	if s.Range.ActiveDays != 2 {
		t.Errorf("expected ActiveDays=2, got %d", s.Range.ActiveDays)
	}
	if s.Range.IdleDays != 3 {
		t.Errorf("expected IdleDays=3, got %d", s.Range.IdleDays)
	}
	if s.Totals.LimitProvided != 5000 {
		t.Errorf("expected LimitProvided=5000, got %d", s.Totals.LimitProvided)
	}
	if s.Totals.Uploaded != 500 {
		t.Errorf("expected Uploaded=500, got %d", s.Totals.Uploaded)
	}
	if s.Totals.PercentageOfAll != 10 {
		t.Errorf("expected PercentageOfAll=10, got %f", s.Totals.PercentageOfAll)
	}
}

func TestSummarize_Averages(t *testing.T) {
	records := []DailyRecord{
		{UserKey: "u-1", Day: day(2025, time.June, 4), TotalUploadVolume: 100, TotalDeletionVolume: 40, UploadCount: 1, DeletionCount: 2},
		{UserKey: "u-1", Day: day(2025, time.June, 1), TotalUploadVolume: 300, TotalDeletionVolume: 20, UploadCount: 3, DeletionCount: 1},
	}

	s := Summarize(records, 1000)

	// 4 calendar days, 2 active.
	if s.Averages.DailyUpload != 100 {
		t.Errorf("expected DailyUpload=100, got %f", s.Averages.DailyUpload)
	}
	if s.Averages.DailyDeletion != 15 {
		t.Errorf("expected DailyDeletion=15, got %f", s.Averages.DailyDeletion)
	}
	if s.Averages.DailyUploadCount != 1 {
		t.Errorf("expected DailyUploadCount=1, got %f", s.Averages.DailyUploadCount)
	}
	if s.Averages.ActiveDayUpload != 200 {
		t.Errorf("expected ActiveDayUpload=200, got %f", s.Averages.ActiveDayUpload)
	}
	if s.Averages.ActiveDayDeletion != 30 {
		t.Errorf("expected ActiveDayDeletion=30, got %f", s.Averages.ActiveDayDeletion)
	}
}

func TestSummarize_SingleDay(t *testing.T) {
	records := []DailyRecord{
		{UserKey: "u-1", Day: day(2025, time.June, 3), TotalUploadVolume: 250, UploadCount: 5},
	}

	s := Summarize(records, 1000)

	if s.Range.TotalDays != 1 || s.Range.ActiveDays != 1 || s.Range.IdleDays != 0 {
		t.Errorf("expected single-day range, got %+v", s.Range)
	}
	if !s.Range.Start.Equal(s.Range.End) {
		t.Errorf("expected Start == End, got %v / %v", s.Range.Start, s.Range.End)
	}
	if s.Activity.UploadCount != 5 {
		t.Errorf("expected UploadCount=5, got %d", s.Activity.UploadCount)
	}
}
