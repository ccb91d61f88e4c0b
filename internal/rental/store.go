// store.go - repository contracts implemented by internal/store/{memory,postgres}.
package rental

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a rental does not exist.
	ErrNotFound = errors.New("rental: not found")
	// ErrActiveRentalExists is returned by InsertIfNoActive when the owner
	// already holds an active rental on the same target.
	ErrActiveRentalExists = errors.New("rental: active rental exists")
	// ErrDuplicateTransaction is returned when transaction_id is already used.
	ErrDuplicateTransaction = errors.New("rental: duplicate transaction id")
)

// Repository persists rentals.
type Repository interface {
	// FindActive returns owner's rentals on target that are active at now.
	FindActive(ctx context.Context, owner Owner, target Target, now time.Time) ([]Rental, error)
	// FindActiveForPacks returns owner's pack rentals, active at now, whose
	// pack is any of packIDs.
	FindActiveForPacks(ctx context.Context, owner Owner, packIDs []string, now time.Time) ([]Rental, error)
	// ListByOwner returns every rental of owner, newest first.
	ListByOwner(ctx context.Context, owner Owner) ([]Rental, error)
	// InsertIfNoActive inserts r unless owner already holds a rental on
	// r.Target active at r.PurchasedAt. The check and the insert are atomic.
	InsertIfNoActive(ctx context.Context, r Rental) error
	// UpdatePackPosition sets current_short_id on a pack rental.
	UpdatePackPosition(ctx context.Context, rentalID, shortID string) error
}

// MigrationResult counts rows moved from an anonymous id to a user.
type MigrationResult struct {
	Rentals       int64 `json:"rentals"`
	WatchProgress int64 `json:"watchProgress"`
}

// Migrator moves guest data to an account.
type Migrator interface {
	// MigrateAnonymous reassigns every rental and watch-progress row owned
	// by anonymousID to userID, nulling the anonymous id.
	MigrateAnonymous(ctx context.Context, anonymousID, userID string) (MigrationResult, error)
}

// Janitor removes data nobody can reach any more.
type Janitor interface {
	// DeleteStaleAnonymous removes anonymous rentals that expired before
	// cutoff and anonymous watch progress untouched since cutoff.
	DeleteStaleAnonymous(ctx context.Context, cutoff time.Time) (MigrationResult, error)
}
