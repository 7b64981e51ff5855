package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/artpar/usagemeter/adapters/clock"
	"github.com/artpar/usagemeter/adapters/idgen"
	"github.com/artpar/usagemeter/adapters/memory"
	"github.com/artpar/usagemeter/app"
	"github.com/rs/zerolog"
)

const testLimit = 1000

func newService(t *testing.T) (*app.AccountingService, *memory.UsageStore, *clock.Fake) {
	t.Helper()

	clk := clock.NewFake(time.Date(2025, time.June, 2, 10, 0, 0, 0, time.UTC))
	store := memory.NewUsageStore(idgen.NewSequential("ev-"), clk)
	svc := app.NewAccountingService(app.Deps{
		Store:  store,
		Clock:  clk,
		Limit:  func() int64 { return testLimit },
		Logger: zerolog.Nop(),
	})
	return svc, store, clk
}

// -----------------------------------------------------------------------------
// Bandwidth Check Tests
// -----------------------------------------------------------------------------

func TestCheckUploadBandwidth(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.LogUpload(ctx, "u-1", "a.bin", 600); err != nil {
		t.Fatalf("log upload: %v", err)
	}

	check, err := svc.CheckUploadBandwidth(ctx, "u-1", 500)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if check.Allowed {
		t.Error("600+500 > 1000 should be denied")
	}
	if check.Message != "Daily bandwidth limit exceeded" {
		t.Errorf("unexpected message: %s", check.Message)
	}

	check, err = svc.CheckUploadBandwidth(ctx, "u-1", 400)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !check.Allowed {
		t.Error("600+400 == 1000 should be allowed")
	}
	if check.Message != "Upload permitted" {
		t.Errorf("unexpected message: %s", check.Message)
	}
}

func TestCheckUploadBandwidth_DoesNotMutateState(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()

	svc.LogUpload(ctx, "u-1", "a.bin", 600)

	for i := 0; i < 5; i++ {
		if _, err := svc.CheckUploadBandwidth(ctx, "u-1", 900); err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
	}

	rec, found, _ := store.Get(ctx, "u-1", time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC))
	if !found {
		t.Fatal("record disappeared")
	}
	if rec.TotalUploadVolume != 600 || rec.UploadCount != 1 {
		t.Errorf("check mutated the record: %+v", rec)
	}
	if store.Len() != 1 {
		t.Errorf("check created extra buckets: %d", store.Len())
	}
}

func TestCheckUploadBandwidth_AbsentUser(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()

	check, err := svc.CheckUploadBandwidth(ctx, "new-user", testLimit)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !check.Allowed {
		t.Error("first upload at exactly the limit should be allowed")
	}
	if store.Len() != 0 {
		t.Error("checking an absent user must not create a record")
	}
}

// -----------------------------------------------------------------------------
// Event Logging Tests
// -----------------------------------------------------------------------------

func TestLogUpload_NeverBlocks(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	// Log far past the quota: enforcement is advisory only.
	rec, err := svc.LogUpload(ctx, "u-1", "huge.bin", 3*testLimit)
	if err != nil {
		t.Fatalf("log upload: %v", err)
	}
	if rec.TotalUploadVolume != 3*testLimit {
		t.Errorf("expected volume %d, got %d", 3*testLimit, rec.TotalUploadVolume)
	}

	rec, err = svc.LogUpload(ctx, "u-1", "more.bin", 100)
	if err != nil {
		t.Fatalf("log upload past limit: %v", err)
	}
	if rec.UploadCount != 2 {
		t.Errorf("expected 2 uploads, got %d", rec.UploadCount)
	}
}

func TestLogDeletion_Confirmation(t *testing.T) {
	svc, _, clk := newService(t)
	ctx := context.Background()

	svc.LogDeletion(ctx, "u-1", "first.bin", 100)
	conf, err := svc.LogDeletion(ctx, "u-1", "old.bin", 250)
	if err != nil {
		t.Fatalf("log deletion: %v", err)
	}

	if conf.UserKey != "u-1" || conf.FileDeleted != "old.bin" || conf.FileSize != 250 {
		t.Errorf("unexpected confirmation: %+v", conf)
	}
	if conf.UpdatedDeletionVolume != 350 {
		t.Errorf("expected UpdatedDeletionVolume=350, got %d", conf.UpdatedDeletionVolume)
	}
	if conf.TotalDeletionCount != 2 {
		t.Errorf("expected TotalDeletionCount=2, got %d", conf.TotalDeletionCount)
	}
	if !conf.Timestamp.Equal(clk.Now().UTC()) {
		t.Errorf("expected timestamp from clock, got %v", conf.Timestamp)
	}
}

func TestLogUpload_BucketsRollOverAtMidnight(t *testing.T) {
	svc, store, clk := newService(t)
	ctx := context.Background()

	svc.LogUpload(ctx, "u-1", "a.bin", 900)

	// Cross midnight: the quota is per calendar day.
	clk.Advance(24 * time.Hour)

	check, err := svc.CheckUploadBandwidth(ctx, "u-1", 900)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !check.Allowed {
		t.Error("a fresh day should start with zero usage")
	}

	svc.LogUpload(ctx, "u-1", "b.bin", 100)
	if store.Len() != 2 {
		t.Errorf("expected 2 day buckets, got %d", store.Len())
	}
}

// -----------------------------------------------------------------------------
// Alert Tests
// -----------------------------------------------------------------------------

func TestCheckUsageAlerts(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	svc.LogUpload(ctx, "u-1", "a.bin", 850)

	report, err := svc.CheckUsageAlerts(ctx, "u-1")
	if err != nil {
		t.Fatalf("alerts: %v", err)
	}
	if !report.State.Approaching {
		t.Error("850/1000 should be approaching")
	}
	if report.State.Exceeded {
		t.Error("850/1000 should not be exceeded")
	}
	if report.TotalUsed != 850 || report.Limit != testLimit {
		t.Errorf("unexpected report: %+v", report)
	}
	if report.PercentUsed != 85 {
		t.Errorf("expected PercentUsed=85, got %f", report.PercentUsed)
	}
}

func TestCheckUsageAlerts_AbsentUser(t *testing.T) {
	svc, store, _ := newService(t)

	report, err := svc.CheckUsageAlerts(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("alerts: %v", err)
	}
	if report.State.Approaching || report.State.Exceeded {
		t.Errorf("absent user should have no alerts: %+v", report.State)
	}
	if store.Len() != 0 {
		t.Error("alert check must not create records")
	}
}

func TestCheckUsageAlerts_MarksStagesOnce(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()
	today := time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC)

	svc.LogUpload(ctx, "u-1", "a.bin", 850)
	svc.CheckUsageAlerts(ctx, "u-1")

	rec, _, _ := store.Get(ctx, "u-1", today)
	if !rec.Alerts.EightyPercentSent {
		t.Error("expected eighty-percent stage marked")
	}
	if rec.Alerts.UploadBlocked {
		t.Error("exceeded stage marked below the limit")
	}

	svc.LogUpload(ctx, "u-1", "b.bin", 200)
	svc.CheckUsageAlerts(ctx, "u-1")

	rec, _, _ = store.Get(ctx, "u-1", today)
	if !rec.Alerts.UploadBlocked {
		t.Error("expected exceeded stage marked at 1050/1000")
	}
}

// -----------------------------------------------------------------------------
// Views and Stats Tests
// -----------------------------------------------------------------------------

func TestGetDailyUsage(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	svc.LogUpload(ctx, "u-1", "a.bin", 600)

	view, err := svc.GetDailyUsage(ctx, "u-1")
	if err != nil {
		t.Fatalf("daily usage: %v", err)
	}
	if view.Remaining != 400 {
		t.Errorf("expected Remaining=400, got %d", view.Remaining)
	}
	if view.PercentageConsumed != 60 {
		t.Errorf("expected PercentageConsumed=60, got %f", view.PercentageConsumed)
	}
}

func TestGetDailyUsage_AbsentUserIsZero(t *testing.T) {
	svc, _, _ := newService(t)

	view, err := svc.GetDailyUsage(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("daily usage: %v", err)
	}
	if view.Record.TotalUploadVolume != 0 {
		t.Errorf("expected zero usage, got %d", view.Record.TotalUploadVolume)
	}
	if view.Remaining != testLimit {
		t.Errorf("expected full limit remaining, got %d", view.Remaining)
	}
	if view.Record.UserKey != "nobody" {
		t.Errorf("expected synthesized record for the caller, got %q", view.Record.UserKey)
	}
}

func TestGetCompleteUsageStats(t *testing.T) {
	svc, _, clk := newService(t)
	ctx := context.Background()

	svc.LogUpload(ctx, "u-1", "a.bin", 200)
	clk.Advance(4 * 24 * time.Hour)
	svc.LogUpload(ctx, "u-1", "b.bin", 300)

	stats, err := svc.GetCompleteUsageStats(ctx, "u-1")
	if err != nil {
		t.Fatalf("complete stats: %v", err)
	}
	if len(stats.Days) != 2 {
		t.Fatalf("expected 2 day views, got %d", len(stats.Days))
	}
	// Most recent first.
	if stats.Days[0].Record.TotalUploadVolume != 300 {
		t.Errorf("expected most recent day first, got %+v", stats.Days[0].Record)
	}
	if stats.Summary.Range.TotalDays != 5 {
		t.Errorf("expected TotalDays=5, got %d", stats.Summary.Range.TotalDays)
	}
	if stats.Summary.Totals.Uploaded != 500 {
		t.Errorf("expected Uploaded=500, got %d", stats.Summary.Totals.Uploaded)
	}
}

func TestGetCompleteUsageStats_Empty(t *testing.T) {
	svc, _, _ := newService(t)

	stats, err := svc.GetCompleteUsageStats(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("complete stats: %v", err)
	}
	if len(stats.Days) != 0 {
		t.Errorf("expected no day views, got %d", len(stats.Days))
	}
	if stats.Summary.Range.TotalDays != 0 {
		t.Errorf("expected empty summary, got %+v", stats.Summary.Range)
	}
}

// -----------------------------------------------------------------------------
// Reset Tests
// -----------------------------------------------------------------------------

func TestResetDailyUsage(t *testing.T) {
	svc, store, clk := newService(t)
	ctx := context.Background()

	svc.LogUpload(ctx, "u-1", "a.bin", 500)
	clk.Advance(24 * time.Hour)
	svc.LogUpload(ctx, "u-1", "b.bin", 100)

	if err := svc.ResetDailyUsage(ctx, "u-1"); err != nil {
		t.Fatalf("reset: %v", err)
	}

	// Yesterday's record is gone, today's survives.
	if _, found, _ := store.Get(ctx, "u-1", time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC)); found {
		t.Error("yesterday's record survived reset")
	}
	if _, found, _ := store.Get(ctx, "u-1", time.Date(2025, time.June, 3, 0, 0, 0, 0, time.UTC)); !found {
		t.Error("reset removed today's record")
	}

	// Idempotent.
	if err := svc.ResetDailyUsage(ctx, "u-1"); err != nil {
		t.Errorf("second reset should be a no-op, got %v", err)
	}
}

func TestSweepYesterday(t *testing.T) {
	svc, store, clk := newService(t)
	ctx := context.Background()

	svc.LogUpload(ctx, "u-1", "a.bin", 100)
	svc.LogUpload(ctx, "u-2", "b.bin", 200)
	clk.Advance(24 * time.Hour)
	svc.LogUpload(ctx, "u-3", "c.bin", 300)

	if err := svc.SweepYesterday(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	if store.Len() != 1 {
		t.Errorf("expected only today's record to survive, got %d", store.Len())
	}
	if _, found, _ := store.Get(ctx, "u-3", time.Date(2025, time.June, 3, 0, 0, 0, 0, time.UTC)); !found {
		t.Error("sweep removed today's record")
	}
}
