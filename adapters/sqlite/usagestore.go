package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/artpar/usagemeter/domain/usage"
	"github.com/artpar/usagemeter/ports"
)

const dayFormat = "2006-01-02"

// UsageStore implements ports.UsageStore using SQLite.
type UsageStore struct {
	db  *DB
	ids ports.IDGenerator
	clk ports.Clock
}

// NewUsageStore creates a new SQLite usage store.
func NewUsageStore(db *DB, ids ports.IDGenerator, clk ports.Clock) *UsageStore {
	return &UsageStore{db: db, ids: ids, clk: clk}
}

// storeErr tags a driver failure with the StoreUnavailable taxonomy so the
// HTTP layer can map it to a 500 without inspecting driver errors.
func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ports.ErrStoreUnavailable, op, err)
}

// Apply atomically creates the (userKey, day) bucket if absent and
// accumulates the delta. The counter upsert is a single INSERT ... ON
// CONFLICT DO UPDATE statement, so concurrent first writers for a brand
// new day converge on one row with both increments applied.
func (s *UsageStore) Apply(ctx context.Context, userKey string, day time.Time, delta usage.Delta) (usage.DailyRecord, error) {
	dayStr := day.UTC().Format(dayFormat)
	now := s.clk.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return usage.DailyRecord{}, storeErr("begin", err)
	}
	defer tx.Rollback()

	var upVol, delVol, upCount, delCount int64
	switch delta.Kind {
	case usage.KindDeletion:
		delVol, delCount = delta.FileSize, 1
	default:
		upVol, upCount = delta.FileSize, 1
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO daily_usage (
			user_key, day, total_upload_volume, total_deletion_volume,
			upload_count, deletion_count
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_key, day) DO UPDATE SET
			total_upload_volume = total_upload_volume + excluded.total_upload_volume,
			total_deletion_volume = total_deletion_volume + excluded.total_deletion_volume,
			upload_count = upload_count + excluded.upload_count,
			deletion_count = deletion_count + excluded.deletion_count
	`, userKey, dayStr, upVol, delVol, upCount, delCount)
	if err != nil {
		return usage.DailyRecord{}, storeErr("upsert bucket", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transfer_events (id, user_key, day, kind, file_name, file_size, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, s.ids.New(), userKey, dayStr, string(delta.Kind), delta.FileName, delta.FileSize, now)
	if err != nil {
		return usage.DailyRecord{}, storeErr("append event", err)
	}

	rec, found, err := s.getTx(ctx, tx, userKey, dayStr)
	if err != nil {
		return usage.DailyRecord{}, err
	}
	if !found {
		return usage.DailyRecord{}, storeErr("reread bucket", sql.ErrNoRows)
	}

	if err := tx.Commit(); err != nil {
		return usage.DailyRecord{}, storeErr("commit", err)
	}
	return rec, nil
}

// Get retrieves one day's record. Absence is reported via the bool.
func (s *UsageStore) Get(ctx context.Context, userKey string, day time.Time) (usage.DailyRecord, bool, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return usage.DailyRecord{}, false, storeErr("begin", err)
	}
	defer tx.Rollback()

	return s.getTx(ctx, tx, userKey, day.UTC().Format(dayFormat))
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *UsageStore) getTx(ctx context.Context, q rowQuerier, userKey, dayStr string) (usage.DailyRecord, bool, error) {
	row := q.QueryRowContext(ctx, `
		SELECT user_key, day, total_upload_volume, total_deletion_volume,
		       upload_count, deletion_count, alert_80_sent, upload_blocked
		FROM daily_usage
		WHERE user_key = ? AND day = ?
	`, userKey, dayStr)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return usage.DailyRecord{}, false, nil
	}
	if err != nil {
		return usage.DailyRecord{}, false, storeErr("get bucket", err)
	}

	if err := s.loadEvents(ctx, q, &rec, dayStr); err != nil {
		return usage.DailyRecord{}, false, err
	}
	return rec, true, nil
}

// GetAll returns every record for a user ordered by day descending.
func (s *UsageStore) GetAll(ctx context.Context, userKey string) ([]usage.DailyRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_key, day, total_upload_volume, total_deletion_volume,
		       upload_count, deletion_count, alert_80_sent, upload_blocked
		FROM daily_usage
		WHERE user_key = ?
		ORDER BY day DESC
	`, userKey)
	if err != nil {
		return nil, storeErr("list buckets", err)
	}
	defer rows.Close()

	var records []usage.DailyRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, storeErr("scan bucket", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list buckets", err)
	}

	for i := range records {
		dayStr := records[i].Day.Format(dayFormat)
		if err := s.loadEvents(ctx, s.db.DB, &records[i], dayStr); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// Delete removes matching record(s) and their transfer logs. An empty
// userKey removes that day's records for all users. Deleting an absent
// record is a no-op.
func (s *UsageStore) Delete(ctx context.Context, userKey string, day time.Time) error {
	dayStr := day.UTC().Format(dayFormat)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin", err)
	}
	defer tx.Rollback()

	if userKey == "" {
		if _, err := tx.ExecContext(ctx, `DELETE FROM daily_usage WHERE day = ?`, dayStr); err != nil {
			return storeErr("delete buckets", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM transfer_events WHERE day = ?`, dayStr); err != nil {
			return storeErr("delete events", err)
		}
	} else {
		if _, err := tx.ExecContext(ctx, `DELETE FROM daily_usage WHERE user_key = ? AND day = ?`, userKey, dayStr); err != nil {
			return storeErr("delete bucket", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM transfer_events WHERE user_key = ? AND day = ?`, userKey, dayStr); err != nil {
			return storeErr("delete events", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storeErr("commit", err)
	}
	return nil
}

// MarkAlertStage sets a reserved alert flag. Idempotent; no-op for an
// absent record.
func (s *UsageStore) MarkAlertStage(ctx context.Context, userKey string, day time.Time, stage ports.AlertStage) error {
	column := "alert_80_sent"
	if stage == ports.StageUploadBlocked {
		column = "upload_blocked"
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE daily_usage SET `+column+` = 1 WHERE user_key = ? AND day = ?
	`, userKey, day.UTC().Format(dayFormat))
	if err != nil {
		return storeErr("mark alert stage", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (usage.DailyRecord, error) {
	var rec usage.DailyRecord
	var dayStr string
	var eighty, blocked int
	err := row.Scan(
		&rec.UserKey, &dayStr, &rec.TotalUploadVolume, &rec.TotalDeletionVolume,
		&rec.UploadCount, &rec.DeletionCount, &eighty, &blocked,
	)
	if err != nil {
		return usage.DailyRecord{}, err
	}
	rec.Day, err = time.ParseInLocation(dayFormat, dayStr, time.UTC)
	if err != nil {
		return usage.DailyRecord{}, err
	}
	rec.Alerts.EightyPercentSent = eighty != 0
	rec.Alerts.UploadBlocked = blocked != 0
	return rec, nil
}

func (s *UsageStore) loadEvents(ctx context.Context, q rowQuerier, rec *usage.DailyRecord, dayStr string) error {
	rows, err := q.QueryContext(ctx, `
		SELECT id, kind, file_name, file_size, timestamp
		FROM transfer_events
		WHERE user_key = ? AND day = ?
		ORDER BY rowid ASC
	`, rec.UserKey, dayStr)
	if err != nil {
		return storeErr("load events", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ev usage.TransferEvent
		var kind string
		if err := rows.Scan(&ev.ID, &kind, &ev.FileName, &ev.FileSize, &ev.Timestamp); err != nil {
			return storeErr("scan event", err)
		}
		if usage.Kind(kind) == usage.KindDeletion {
			rec.Deletions = append(rec.Deletions, ev)
		} else {
			rec.Uploads = append(rec.Uploads, ev)
		}
	}
	return rows.Err()
}

// Ensure interface compliance.
var _ ports.UsageStore = (*UsageStore)(nil)
