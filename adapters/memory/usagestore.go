// Package memory provides in-memory implementations of storage ports,
// used by tests and the no-database development mode.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/artpar/usagemeter/domain/usage"
	"github.com/artpar/usagemeter/ports"
)

type bucketKey struct {
	userKey string
	day     string
}

// UsageStore is an in-memory implementation of ports.UsageStore.
// A single mutex guards the map, so the find-or-create-then-increment of
// Apply is atomic with respect to concurrent writers.
type UsageStore struct {
	mu      sync.RWMutex
	records map[bucketKey]usage.DailyRecord
	ids     ports.IDGenerator
	clk     ports.Clock
}

// NewUsageStore creates a new in-memory usage store.
func NewUsageStore(ids ports.IDGenerator, clk ports.Clock) *UsageStore {
	return &UsageStore{
		records: make(map[bucketKey]usage.DailyRecord),
		ids:     ids,
		clk:     clk,
	}
}

func key(userKey string, day time.Time) bucketKey {
	return bucketKey{userKey: userKey, day: day.UTC().Format("2006-01-02")}
}

// Apply atomically creates the bucket if absent and accumulates the delta.
func (s *UsageStore) Apply(ctx context.Context, userKey string, day time.Time, delta usage.Delta) (usage.DailyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(userKey, day)
	rec, ok := s.records[k]
	if !ok {
		rec = usage.DailyRecord{UserKey: userKey, Day: usage.Day(day)}
	}
	rec = rec.Apply(delta, s.ids.New(), s.clk.Now().UTC())
	s.records[k] = rec
	return rec, nil
}

// Get retrieves one day's record. Absence is reported via the bool.
func (s *UsageStore) Get(ctx context.Context, userKey string, day time.Time) (usage.DailyRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[key(userKey, day)]
	return rec, ok, nil
}

// GetAll returns every record for a user ordered by day descending.
func (s *UsageStore) GetAll(ctx context.Context, userKey string) ([]usage.DailyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []usage.DailyRecord
	for k, rec := range s.records {
		if k.userKey == userKey {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Day.After(records[j].Day)
	})
	return records, nil
}

// Delete removes matching record(s). Empty userKey sweeps all users for
// the day. Deleting an absent record is a no-op.
func (s *UsageStore) Delete(ctx context.Context, userKey string, day time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if userKey == "" {
		dayStr := day.UTC().Format("2006-01-02")
		for k := range s.records {
			if k.day == dayStr {
				delete(s.records, k)
			}
		}
		return nil
	}

	delete(s.records, key(userKey, day))
	return nil
}

// MarkAlertStage sets a reserved alert flag. No-op for absent records.
func (s *UsageStore) MarkAlertStage(ctx context.Context, userKey string, day time.Time, stage ports.AlertStage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(userKey, day)
	rec, ok := s.records[k]
	if !ok {
		return nil
	}
	switch stage {
	case ports.StageUploadBlocked:
		rec.Alerts.UploadBlocked = true
	default:
		rec.Alerts.EightyPercentSent = true
	}
	s.records[k] = rec
	return nil
}

// Len returns the number of stored records (for testing).
func (s *UsageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Ensure interface compliance.
var _ ports.UsageStore = (*UsageStore)(nil)
