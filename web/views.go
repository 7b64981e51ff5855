package web

import (
	"time"

	"github.com/artpar/usagemeter/app"
	"github.com/artpar/usagemeter/domain/usage"
)

const dayFormat = "2006-01-02"

// transferEventView is the wire shape of one log entry.
type transferEventView struct {
	FileName  string    `json:"file_name"`
	FileSize  int64     `json:"file_size"`
	Timestamp time.Time `json:"timestamp"`
}

// alertStagesView is the wire shape of the reserved one-shot flags.
type alertStagesView struct {
	EightyPercentAlertSent bool `json:"eighty_percent_alert_sent"`
	UploadBlocked          bool `json:"upload_blocked"`
}

// recordView is the full wire shape of a daily record.
type recordView struct {
	UserKey             string              `json:"user_key"`
	Date                string              `json:"date"`
	TotalUploadVolume   int64               `json:"total_upload_volume"`
	TotalDeletionVolume int64               `json:"total_deletion_volume"`
	UploadCount         int64               `json:"upload_count"`
	DeletionCount       int64               `json:"deletion_count"`
	NetVolume           int64               `json:"net_volume"`
	Uploads             []transferEventView `json:"uploads"`
	Deletions           []transferEventView `json:"deletions"`
	AlertStages         alertStagesView     `json:"alert_stages"`
}

func toEventViews(events []usage.TransferEvent) []transferEventView {
	views := make([]transferEventView, 0, len(events))
	for _, ev := range events {
		views = append(views, transferEventView{
			FileName:  ev.FileName,
			FileSize:  ev.FileSize,
			Timestamp: ev.Timestamp,
		})
	}
	return views
}

func toRecordView(r usage.DailyRecord) recordView {
	return recordView{
		UserKey:             r.UserKey,
		Date:                r.Day.Format(dayFormat),
		TotalUploadVolume:   r.TotalUploadVolume,
		TotalDeletionVolume: r.TotalDeletionVolume,
		UploadCount:         r.UploadCount,
		DeletionCount:       r.DeletionCount,
		NetVolume:           r.NetVolume(),
		Uploads:             toEventViews(r.Uploads),
		Deletions:           toEventViews(r.Deletions),
		AlertStages: alertStagesView{
			EightyPercentAlertSent: r.Alerts.EightyPercentSent,
			UploadBlocked:          r.Alerts.UploadBlocked,
		},
	}
}

// bandwidthCheckView is the wire shape of a quota check result.
type bandwidthCheckView struct {
	Allowed bool   `json:"allowed"`
	Message string `json:"message"`
}

// deletionConfirmationView is the wire shape of a deletion confirmation.
type deletionConfirmationView struct {
	UserKey               string    `json:"user_key"`
	FileDeleted           string    `json:"file_deleted"`
	FileSize              int64     `json:"file_size"`
	Timestamp             time.Time `json:"timestamp"`
	Date                  string    `json:"date"`
	UpdatedDeletionVolume int64     `json:"updated_deletion_volume"`
	TotalDeletionCount    int64     `json:"total_deletion_count"`
}

func toDeletionView(c app.DeletionConfirmation) deletionConfirmationView {
	return deletionConfirmationView{
		UserKey:               c.UserKey,
		FileDeleted:           c.FileDeleted,
		FileSize:              c.FileSize,
		Timestamp:             c.Timestamp,
		Date:                  c.Day.Format(dayFormat),
		UpdatedDeletionVolume: c.UpdatedDeletionVolume,
		TotalDeletionCount:    c.TotalDeletionCount,
	}
}

// alertReportView is the wire shape of the usage-alerts check.
type alertReportView struct {
	TotalBandwidthUsed       int64   `json:"total_bandwidth_used"`
	BandwidthTotalLimit      int64   `json:"bandwidth_total_limit"`
	BandwidthPercentageUsed  float64 `json:"bandwidth_percentage_used"`
	BandwidthChecks          struct {
		LimitApproaching bool `json:"bandwidth_limit_approaching"`
		LimitExceeded    bool `json:"bandwidth_limit_exceeded"`
	} `json:"bandwidth_checks"`
}

func toAlertView(rep app.AlertReport) alertReportView {
	var v alertReportView
	v.TotalBandwidthUsed = rep.TotalUsed
	v.BandwidthTotalLimit = rep.Limit
	v.BandwidthPercentageUsed = rep.PercentUsed
	v.BandwidthChecks.LimitApproaching = rep.State.Approaching
	v.BandwidthChecks.LimitExceeded = rep.State.Exceeded
	return v
}

// dailyUsageView is the projected per-day summary.
type dailyUsageView struct {
	UserKey                      string              `json:"user_key"`
	Date                         string              `json:"date"`
	TotalBandwidthLimit          int64               `json:"total_bandwidth_limit"`
	TotalDataBandwidthUsed       int64               `json:"total_data_bandwidth_used"`
	TotalVolumeDeleted           int64               `json:"total_volume_deleted"`
	NetVolume                    int64               `json:"net_volume"`
	RemainingBandwidth           int64               `json:"remaining_bandwidth"`
	BandwidthPercentageConsumed  float64             `json:"bandwidth_percentage_consumed"`
	UploadCount                  int64               `json:"upload_count"`
	DeletionCount                int64               `json:"deletion_count"`
	Uploads                      []transferEventView `json:"uploads"`
	Deletions                    []transferEventView `json:"deletions"`
}

func toDailyUsageView(v usage.DayView) dailyUsageView {
	return dailyUsageView{
		UserKey:                     v.Record.UserKey,
		Date:                        v.Record.Day.Format(dayFormat),
		TotalBandwidthLimit:         v.Limit,
		TotalDataBandwidthUsed:      v.Record.TotalUploadVolume,
		TotalVolumeDeleted:          v.Record.TotalDeletionVolume,
		NetVolume:                   v.Record.NetVolume(),
		RemainingBandwidth:          v.Remaining,
		BandwidthPercentageConsumed: v.PercentageConsumed,
		UploadCount:                 v.Record.UploadCount,
		DeletionCount:               v.Record.DeletionCount,
		Uploads:                     toEventViews(v.Record.Uploads),
		Deletions:                   toEventViews(v.Record.Deletions),
	}
}

// completeStatsView combines projected daily records and the multi-day
// summary.
type completeStatsView struct {
	UserKey           string           `json:"user_key"`
	SummaryStatistics summaryView      `json:"summary_statistics"`
	DailyRecords      []dailyUsageView `json:"daily_records"`
}

type summaryView struct {
	DateRange struct {
		Start               *string `json:"start"`
		End                 *string `json:"end"`
		TotalDays           int     `json:"total_days"`
		DaysWithActivity    int     `json:"days_with_activity"`
		DaysWithoutActivity int     `json:"days_without_activity"`
	} `json:"date_range"`
	BandwidthTotals struct {
		TotalBandwidthProvided              int64   `json:"total_bandwidth_provided"`
		TotalDataBandwidthUsed              int64   `json:"total_data_bandwidth_used"`
		TotalVolumeDeleted                  int64   `json:"total_volume_deleted"`
		OverallBandwidthPercentageConsumed  float64 `json:"overall_bandwidth_percentage_consumed"`
	} `json:"bandwidth_totals"`
	DailyAverages struct {
		AverageDailyUsage            float64 `json:"average_daily_usage"`
		AverageDailyDeletions        float64 `json:"average_daily_deletions"`
		AverageDailyUploadCount      float64 `json:"average_daily_upload_count"`
		AverageDailyDeletionCount    float64 `json:"average_daily_deletion_count"`
		AverageUsageOnActiveDays     float64 `json:"average_usage_on_active_days"`
		AverageDeletionsOnActiveDays float64 `json:"average_deletions_on_active_days"`
	} `json:"daily_averages"`
	ActivityTotals struct {
		TotalUploadCount   int64 `json:"total_upload_count"`
		TotalDeletionCount int64 `json:"total_deletion_count"`
	} `json:"activity_totals"`
}

func toCompleteStatsView(stats app.CompleteStats) completeStatsView {
	out := completeStatsView{
		UserKey:      stats.UserKey,
		DailyRecords: make([]dailyUsageView, 0, len(stats.Days)),
	}
	for _, day := range stats.Days {
		out.DailyRecords = append(out.DailyRecords, toDailyUsageView(day))
	}

	s := stats.Summary
	sv := &out.SummaryStatistics
	if s.Range.ActiveDays > 0 {
		start := s.Range.Start.Format(dayFormat)
		end := s.Range.End.Format(dayFormat)
		sv.DateRange.Start = &start
		sv.DateRange.End = &end
	}
	sv.DateRange.TotalDays = s.Range.TotalDays
	sv.DateRange.DaysWithActivity = s.Range.ActiveDays
	sv.DateRange.DaysWithoutActivity = s.Range.IdleDays
	sv.BandwidthTotals.TotalBandwidthProvided = s.Totals.LimitProvided
	sv.BandwidthTotals.TotalDataBandwidthUsed = s.Totals.Uploaded
	sv.BandwidthTotals.TotalVolumeDeleted = s.Totals.Deleted
	sv.BandwidthTotals.OverallBandwidthPercentageConsumed = s.Totals.PercentageOfAll
	sv.DailyAverages.AverageDailyUsage = s.Averages.DailyUpload
	sv.DailyAverages.AverageDailyDeletions = s.Averages.DailyDeletion
	sv.DailyAverages.AverageDailyUploadCount = s.Averages.DailyUploadCount
	sv.DailyAverages.AverageDailyDeletionCount = s.Averages.DailyDeletionCount
	sv.DailyAverages.AverageUsageOnActiveDays = s.Averages.ActiveDayUpload
	sv.DailyAverages.AverageDeletionsOnActiveDays = s.Averages.ActiveDayDeletion
	sv.ActivityTotals.TotalUploadCount = s.Activity.UploadCount
	sv.ActivityTotals.TotalDeletionCount = s.Activity.DeletionCount
	return out
}
