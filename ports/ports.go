// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/artpar/usagemeter/domain/usage"
)

// ErrStoreUnavailable is returned when the persistence layer is
// unreachable or times out. A failed upsert leaves prior state untouched.
var ErrStoreUnavailable = errors.New("usage store unavailable")

// ErrIdentityRejected is returned when the identity verifier does not
// recognize a bearer token. Maps to HTTP 401, never retried.
var ErrIdentityRejected = errors.New("identity rejected")

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// AlertStage names one of the reserved set-once alert flags on a record.
type AlertStage string

const (
	StageEightyPercent AlertStage = "eighty_percent"
	StageUploadBlocked AlertStage = "upload_blocked"
)

// UsageStore persists daily accounting records. It exclusively owns record
// lifecycle: records are created implicitly by Apply, mutated only by
// further Apply calls the same day, and removed only by Delete.
type UsageStore interface {
	// Apply atomically creates the (userKey, day) record if absent and
	// accumulates the delta into it. Concurrent first writers for a brand
	// new day must converge on a single record with both effects applied.
	// Returns the post-update record.
	Apply(ctx context.Context, userKey string, day time.Time, delta usage.Delta) (usage.DailyRecord, error)

	// Get retrieves one day's record. Absence is reported via the bool,
	// not an error.
	Get(ctx context.Context, userKey string, day time.Time) (usage.DailyRecord, bool, error)

	// GetAll returns every record for a user ordered by day descending
	// (most recent first).
	GetAll(ctx context.Context, userKey string) ([]usage.DailyRecord, error)

	// Delete removes the record for (userKey, day). An empty userKey
	// removes that day's records for all users. Deleting an absent record
	// is a no-op.
	Delete(ctx context.Context, userKey string, day time.Time) error

	// MarkAlertStage sets one of the reserved alert flags on an existing
	// record. Setting an already-set flag or marking an absent record is
	// a no-op; flags are never cleared except by Delete.
	MarkAlertStage(ctx context.Context, userKey string, day time.Time, stage AlertStage) error
}

// -----------------------------------------------------------------------------
// External Service Ports (collaborators this service calls but does not own)
// -----------------------------------------------------------------------------

// Identity is the resolved caller identity returned by the verifier.
// ID is the canonical user_key used throughout the accounting domain.
type Identity struct {
	ID    string
	Email string
	Name  string
}

// IdentityVerifier resolves a raw bearer token to a user identity by
// calling the external user-profile service. A token the service does not
// recognize yields ErrIdentityRejected.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// StorageStatusClient fetches the opaque storage-status payload from the
// external storage service on behalf of the caller's token.
type StorageStatusClient interface {
	Status(ctx context.Context, token string) (json.RawMessage, error)
}
