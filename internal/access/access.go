// Package access decides whether a viewer may watch a movie and through
// which rental.
package access

import (
	"context"
	"time"

	"github.com/foozao/lao-cinema-sub007/internal/apperr"
	"github.com/foozao/lao-cinema-sub007/internal/catalog"
	"github.com/foozao/lao-cinema-sub007/internal/identity"
	"github.com/foozao/lao-cinema-sub007/internal/metrics"
	"github.com/foozao/lao-cinema-sub007/internal/rental"
)

// Type is how access was granted.
type Type string

const (
	Direct Type = "direct"
	Pack   Type = "pack"
)

// Decision is the outcome of CheckAccess. A denial is a value, not an error.
type Decision struct {
	Granted bool
	Type    Type
	Rental  *rental.Rental
}

// Resolver reads rentals and pack membership. It never writes.
type Resolver struct {
	rentals rental.Repository
	catalog catalog.Store
	now     func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option { return func(r *Resolver) { r.now = now } }

// NewResolver wires a Resolver.
func NewResolver(rentals rental.Repository, cat catalog.Store, opts ...Option) *Resolver {
	r := &Resolver{rentals: rentals, catalog: cat, now: time.Now}
	for _, o := range opts {
		o(r)
	}
	return r
}

// CheckAccess grants access when id holds an active rental on movieID
// directly, or on any pack containing movieID. Direct rentals win over pack
// rentals; among candidates of one kind the most recent purchase wins.
func (res *Resolver) CheckAccess(ctx context.Context, movieID string, id identity.Identity) (Decision, error) {
	owner := rental.OwnerFor(id)
	if owner.IsZero() || movieID == "" {
		metrics.AccessChecks.WithLabelValues("denied").Inc()
		return Decision{}, nil
	}
	now := res.now()

	direct, err := res.rentals.FindActive(ctx, owner, rental.MovieTarget(movieID), now)
	if err != nil {
		return Decision{}, apperr.Internalf(err, "find direct rental")
	}
	if r := rental.MostRecent(direct); r != nil {
		metrics.AccessChecks.WithLabelValues(string(Direct)).Inc()
		return Decision{Granted: true, Type: Direct, Rental: r}, nil
	}

	packIDs, err := res.catalog.PacksContaining(ctx, movieID)
	if err != nil {
		return Decision{}, apperr.Internalf(err, "find packs for movie")
	}
	if len(packIDs) > 0 {
		viaPack, err := res.rentals.FindActiveForPacks(ctx, owner, packIDs, now)
		if err != nil {
			return Decision{}, apperr.Internalf(err, "find pack rental")
		}
		if r := rental.MostRecent(viaPack); r != nil {
			metrics.AccessChecks.WithLabelValues(string(Pack)).Inc()
			return Decision{Granted: true, Type: Pack, Rental: r}, nil
		}
	}

	metrics.AccessChecks.WithLabelValues("denied").Inc()
	return Decision{}, nil
}
