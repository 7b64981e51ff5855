// Package app contains the accounting service that composes the usage
// store with the pure quota and aggregation functions.
package app

import (
	"context"
	"errors"
	"time"

	"github.com/artpar/usagemeter/adapters/metrics"
	"github.com/artpar/usagemeter/domain/quota"
	"github.com/artpar/usagemeter/domain/usage"
	"github.com/artpar/usagemeter/ports"
	"github.com/rs/zerolog"
)

// BandwidthCheck is the result of a pure quota check. Not-allowed is a
// result, not an error; the caller decides whether to proceed.
type BandwidthCheck struct {
	Allowed bool
	Message string
}

// DeletionConfirmation is the trimmed view returned after logging a
// deletion.
type DeletionConfirmation struct {
	UserKey               string
	FileDeleted           string
	FileSize              int64
	Timestamp             time.Time
	Day                   time.Time
	UpdatedDeletionVolume int64
	TotalDeletionCount    int64
}

// AlertReport packages the day's alert state for display.
type AlertReport struct {
	TotalUsed   int64
	Limit       int64
	PercentUsed float64
	State       quota.AlertState
}

// CompleteStats combines projected per-day records with the multi-day
// summary.
type CompleteStats struct {
	UserKey string
	Days    []usage.DayView
	Summary usage.Summary
}

// AccountingService orchestrates the usage-accounting operations. All
// state lives behind the store; the service itself is stateless and safe
// for concurrent use.
type AccountingService struct {
	store   ports.UsageStore
	clock   ports.Clock
	limit   func() int64 // daily byte quota, live view for hot reload
	logger  zerolog.Logger
	metrics *metrics.Collector
}

// Deps contains dependencies for the accounting service.
type Deps struct {
	Store   ports.UsageStore
	Clock   ports.Clock
	Limit   func() int64
	Logger  zerolog.Logger
	Metrics *metrics.Collector
}

// NewAccountingService creates the accounting service.
func NewAccountingService(deps Deps) *AccountingService {
	return &AccountingService{
		store:   deps.Store,
		clock:   deps.Clock,
		limit:   deps.Limit,
		logger:  deps.Logger,
		metrics: deps.Metrics,
	}
}

func (s *AccountingService) today() time.Time {
	return usage.Day(s.clock.Now())
}

// timeStore returns a deferred observer for store operation latency.
func (s *AccountingService) timeStore(op string) func() {
	if s.metrics == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		s.metrics.StoreDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

// CheckUploadBandwidth reports whether an upload of size bytes would fit
// within today's quota. Pure with respect to stored state: calling it any
// number of times never mutates a record. Enforcement is advisory - the
// caller decides whether to proceed before calling LogUpload.
func (s *AccountingService) CheckUploadBandwidth(ctx context.Context, userKey string, size int64) (BandwidthCheck, error) {
	rec, _, err := s.store.Get(ctx, userKey, s.today())
	if err != nil {
		return BandwidthCheck{}, err
	}

	if !quota.Allows(rec, size, s.limit()) {
		if s.metrics != nil {
			s.metrics.QuotaDenials.Inc()
		}
		s.logger.Debug().
			Str("user_key", userKey).
			Int64("file_size", size).
			Int64("used", rec.TotalUploadVolume).
			Msg("upload denied by daily quota")
		return BandwidthCheck{Allowed: false, Message: "Daily bandwidth limit exceeded"}, nil
	}

	return BandwidthCheck{Allowed: true, Message: "Upload permitted"}, nil
}

// LogUpload unconditionally records an upload event, regardless of quota.
// Returns the updated daily record.
func (s *AccountingService) LogUpload(ctx context.Context, userKey, fileName string, size int64) (usage.DailyRecord, error) {
	defer s.timeStore("apply")()
	rec, err := s.store.Apply(ctx, userKey, s.today(), usage.Delta{
		Kind:     usage.KindUpload,
		FileName: fileName,
		FileSize: size,
	})
	if err != nil {
		return usage.DailyRecord{}, err
	}

	if s.metrics != nil {
		s.metrics.EventsTotal.WithLabelValues(string(usage.KindUpload)).Inc()
		s.metrics.BytesTotal.WithLabelValues(string(usage.KindUpload)).Add(float64(size))
	}
	s.logger.Info().
		Str("user_key", userKey).
		Str("file_name", fileName).
		Int64("file_size", size).
		Int64("total_upload_volume", rec.TotalUploadVolume).
		Msg("upload logged")

	return rec, nil
}

// LogDeletion records a deletion event and returns the confirmation view.
func (s *AccountingService) LogDeletion(ctx context.Context, userKey, fileName string, size int64) (DeletionConfirmation, error) {
	day := s.today()
	defer s.timeStore("apply")()
	rec, err := s.store.Apply(ctx, userKey, day, usage.Delta{
		Kind:     usage.KindDeletion,
		FileName: fileName,
		FileSize: size,
	})
	if err != nil {
		return DeletionConfirmation{}, err
	}

	if s.metrics != nil {
		s.metrics.EventsTotal.WithLabelValues(string(usage.KindDeletion)).Inc()
		s.metrics.BytesTotal.WithLabelValues(string(usage.KindDeletion)).Add(float64(size))
	}
	s.logger.Info().
		Str("user_key", userKey).
		Str("file_name", fileName).
		Int64("file_size", size).
		Msg("deletion logged")

	return DeletionConfirmation{
		UserKey:               userKey,
		FileDeleted:           fileName,
		FileSize:              size,
		Timestamp:             s.clock.Now().UTC(),
		Day:                   day,
		UpdatedDeletionVolume: rec.TotalDeletionVolume,
		TotalDeletionCount:    rec.DeletionCount,
	}, nil
}

// CheckUsageAlerts evaluates today's alert thresholds. The reserved
// alert_stages flags are set once when a threshold is first reported;
// marking failures are logged but never fail the report.
func (s *AccountingService) CheckUsageAlerts(ctx context.Context, userKey string) (AlertReport, error) {
	day := s.today()
	rec, found, err := s.store.Get(ctx, userKey, day)
	if err != nil {
		return AlertReport{}, err
	}

	limit := s.limit()
	state := quota.Alerts(rec, limit)

	if found {
		s.markStages(ctx, userKey, day, rec, state)
	}

	return AlertReport{
		TotalUsed:   rec.TotalUploadVolume,
		Limit:       limit,
		PercentUsed: quota.Ratio(rec, limit) * 100,
		State:       state,
	}, nil
}

func (s *AccountingService) markStages(ctx context.Context, userKey string, day time.Time, rec usage.DailyRecord, state quota.AlertState) {
	if state.Approaching && !rec.Alerts.EightyPercentSent {
		if err := s.store.MarkAlertStage(ctx, userKey, day, ports.StageEightyPercent); err != nil {
			s.logger.Warn().Err(err).Str("user_key", userKey).Msg("failed to mark 80% alert stage")
		} else if s.metrics != nil {
			s.metrics.AlertsReported.WithLabelValues("approaching").Inc()
		}
	}
	if state.Exceeded && !rec.Alerts.UploadBlocked {
		if err := s.store.MarkAlertStage(ctx, userKey, day, ports.StageUploadBlocked); err != nil {
			s.logger.Warn().Err(err).Str("user_key", userKey).Msg("failed to mark exceeded alert stage")
		} else if s.metrics != nil {
			s.metrics.AlertsReported.WithLabelValues("exceeded").Inc()
		}
	}
}

// GetDailyUsage returns today's record projected against the daily limit.
// An absent record projects as zero usage.
func (s *AccountingService) GetDailyUsage(ctx context.Context, userKey string) (usage.DayView, error) {
	day := s.today()
	rec, found, err := s.store.Get(ctx, userKey, day)
	if err != nil {
		return usage.DayView{}, err
	}
	if !found {
		rec = usage.DailyRecord{UserKey: userKey, Day: day}
	}
	return usage.Project(rec, s.limit()), nil
}

// GetCompleteUsageStats returns every projected daily record plus the
// multi-day summary.
func (s *AccountingService) GetCompleteUsageStats(ctx context.Context, userKey string) (CompleteStats, error) {
	defer s.timeStore("list")()
	records, err := s.store.GetAll(ctx, userKey)
	if err != nil {
		return CompleteStats{}, err
	}

	limit := s.limit()
	stats := CompleteStats{
		UserKey: userKey,
		Summary: usage.Summarize(records, limit),
	}
	for _, rec := range records {
		stats.Days = append(stats.Days, usage.Project(rec, limit))
	}
	return stats, nil
}

// ResetDailyUsage deletes yesterday's record for one user. Resetting an
// already-absent day is a no-op.
func (s *AccountingService) ResetDailyUsage(ctx context.Context, userKey string) error {
	yesterday := s.today().AddDate(0, 0, -1)
	if err := s.store.Delete(ctx, userKey, yesterday); err != nil {
		return err
	}
	s.logger.Info().
		Str("user_key", userKey).
		Time("day", yesterday).
		Msg("daily usage reset")
	return nil
}

// SweepYesterday deletes yesterday's records for all users. Intended for
// the scheduled maintenance sweeper, not per-request use.
func (s *AccountingService) SweepYesterday(ctx context.Context) error {
	yesterday := s.today().AddDate(0, 0, -1)
	defer s.timeStore("delete")()
	err := s.store.Delete(ctx, "", yesterday)
	if s.metrics != nil {
		if err != nil {
			s.metrics.ResetSweepFails.Inc()
		} else {
			s.metrics.ResetSweeps.Inc()
		}
	}
	if err != nil {
		return err
	}
	s.logger.Info().Time("day", yesterday).Msg("daily usage sweep completed")
	return nil
}

// IsStoreUnavailable reports whether an operation failed because the
// persistence layer was unreachable.
func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ports.ErrStoreUnavailable)
}
