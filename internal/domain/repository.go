package domain

import (
	"context"
	"time"
)

// DonorRepository is the record store port. It has no business-rule
// knowledge; the pipeline engine is its only caller.
type DonorRepository interface {
	// GetByKey fetches by canonical organization key. Returns ErrNotFound
	// when no row matches.
	GetByKey(ctx context.Context, key string) (*DonorRecord, error)
	// List returns every record, or ErrStoreUnavailable; never a partial list.
	List(ctx context.Context) ([]DonorRecord, error)
	// Insert creates a new record. Returns ErrAlreadyExists on a key clash.
	Insert(ctx context.Context, rec *DonorRecord) error
	// Update applies the field changes iff the stored token still equals
	// expectedToken, stamping and returning the new token. Returns
	// ErrConcurrentModification when the token moved underneath the caller.
	Update(ctx context.Context, key string, changes FieldChanges, expectedToken, newToken time.Time) (time.Time, error)
}

// ActivityRepository is the append-only audit ledger port.
type ActivityRepository interface {
	Append(ctx context.Context, entry *ActivityRecord) error
	ListRecent(ctx context.Context, limit int) ([]ActivityRecord, error)
	ListForOrganization(ctx context.Context, key string) ([]ActivityRecord, error)
}
