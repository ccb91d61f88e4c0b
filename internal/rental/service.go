// service.go - rental creation, pack bookmarks, guest-data migration.
package rental

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/foozao/lao-cinema-sub007/internal/apperr"
	"github.com/foozao/lao-cinema-sub007/internal/catalog"
	"github.com/foozao/lao-cinema-sub007/internal/metrics"
)

// DefaultDuration is the rental window used when none is configured.
const DefaultDuration = 48 * time.Hour

// Service owns every mutation of rental state.
type Service struct {
	rentals  Repository
	catalog  catalog.Store
	migrator Migrator
	janitor  Janitor
	duration time.Duration
	now      func() time.Time
	newID    func() string
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithJanitor enables CleanupStaleAnonymous.
func WithJanitor(j Janitor) Option { return func(s *Service) { s.janitor = j } }

// NewService wires a Service. duration <= 0 selects DefaultDuration.
func NewService(rentals Repository, cat catalog.Store, migrator Migrator, duration time.Duration, opts ...Option) *Service {
	if duration <= 0 {
		duration = DefaultDuration
	}
	s := &Service{
		rentals:  rentals,
		catalog:  cat,
		migrator: migrator,
		duration: duration,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Duration returns the configured rental window.
func (s *Service) Duration() time.Duration { return s.duration }

// CreateParams describes a confirmed purchase.
type CreateParams struct {
	Owner         Owner
	Target        Target
	TransactionID string
	PaymentMethod string
	Amount        int64
	Currency      string
}

// Created is a new rental plus the target details a client renders.
type Created struct {
	Rental       Rental
	MovieTitle   string
	PackTitle    string
	PackMovieIDs []string
}

// CreateRental persists a rental after payment was confirmed.
//
// A second purchase while an active rental exists for the same owner and
// target fails with RENTAL_EXISTS, including when two purchases race: the
// repository performs the check and the insert atomically. A reused
// transaction id fails with DUPLICATE_TRANSACTION.
func (s *Service) CreateRental(ctx context.Context, p CreateParams) (*Created, error) {
	if p.Owner.IsZero() {
		return nil, apperr.New(apperr.Unauthenticated, apperr.CodeUnauthenticated, "Authentication required")
	}
	if p.Target.IsZero() {
		return nil, apperr.New(apperr.Invalid, apperr.CodeInvalidRequest, "rental target is required")
	}
	if strings.TrimSpace(p.TransactionID) == "" {
		return nil, apperr.New(apperr.Invalid, apperr.CodeInvalidRequest, "transactionId is required")
	}
	if p.Amount < 0 {
		return nil, apperr.New(apperr.Invalid, apperr.CodeInvalidRequest, "amount must not be negative")
	}

	out := &Created{}
	switch {
	case p.Target.IsMovie():
		m, err := s.catalog.FindMovie(ctx, p.Target.MovieID())
		if err != nil {
			return nil, catalogErr(err, "movie")
		}
		if m.PricingTierID == nil && p.Amount != 0 {
			return nil, apperr.New(apperr.Invalid, apperr.CodeNoPricing, "movie is not available for rental")
		}
		out.MovieTitle = m.Title
	case p.Target.IsPack():
		pk, err := s.catalog.FindPack(ctx, p.Target.PackID())
		if err != nil {
			return nil, catalogErr(err, "pack")
		}
		out.PackTitle = pk.Title
		out.PackMovieIDs = pk.MovieIDs
	}

	purchasedAt := s.now().UTC()
	r := Rental{
		ID:            s.newID(),
		Owner:         p.Owner,
		Target:        p.Target,
		PurchasedAt:   purchasedAt,
		ExpiresAt:     purchasedAt.Add(s.duration),
		TransactionID: p.TransactionID,
		Amount:        p.Amount,
		Currency:      p.Currency,
		PaymentMethod: p.PaymentMethod,
	}

	err := s.rentals.InsertIfNoActive(ctx, r)
	switch {
	case errors.Is(err, ErrActiveRentalExists):
		metrics.RentalsCreated.WithLabelValues(p.Target.Kind(), "conflict").Inc()
		return nil, apperr.New(apperr.Conflict, apperr.CodeRentalExists, "You already have an active rental for this title")
	case errors.Is(err, ErrDuplicateTransaction):
		metrics.RentalsCreated.WithLabelValues(p.Target.Kind(), "conflict").Inc()
		return nil, apperr.New(apperr.Conflict, apperr.CodeDuplicateTransaction, "This transaction was already used")
	case err != nil:
		metrics.RentalsCreated.WithLabelValues(p.Target.Kind(), "error").Inc()
		return nil, apperr.Internalf(err, "insert rental")
	}

	metrics.RentalsCreated.WithLabelValues(p.Target.Kind(), "created").Inc()
	out.Rental = r
	return out, nil
}

// ListRentals returns every rental of owner, newest first.
func (s *Service) ListRentals(ctx context.Context, owner Owner) ([]Rental, error) {
	if owner.IsZero() {
		return nil, nil
	}
	rs, err := s.rentals.ListByOwner(ctx, owner)
	if err != nil {
		return nil, apperr.Internalf(err, "list rentals")
	}
	return rs, nil
}

// UpdatePackPosition records which short the owner is watching inside a
// rented pack. shortID must belong to the pack and the owner must hold an
// active rental on it.
func (s *Service) UpdatePackPosition(ctx context.Context, owner Owner, packID, shortID string) (*Rental, error) {
	pk, err := s.catalog.FindPack(ctx, packID)
	if err != nil {
		return nil, catalogErr(err, "pack")
	}
	if !pk.Contains(shortID) {
		return nil, apperr.New(apperr.Invalid, apperr.CodeInvalidRequest, "currentShortId is not part of this pack")
	}

	active, err := s.rentals.FindActive(ctx, owner, PackTarget(packID), s.now())
	if err != nil {
		return nil, apperr.Internalf(err, "find active pack rental")
	}
	r := MostRecent(active)
	if r == nil {
		return nil, apperr.New(apperr.Forbidden, apperr.CodeRentalRequired, "An active rental is required")
	}

	if err := s.rentals.UpdatePackPosition(ctx, r.ID, shortID); err != nil {
		return nil, apperr.Internalf(err, "update pack position")
	}
	r.CurrentShortID = &shortID
	return r, nil
}

// MigrateAnonymousData moves every rental and watch-progress row of
// anonymousID to userID. Running it again is a no-op.
func (s *Service) MigrateAnonymousData(ctx context.Context, anonymousID, userID string) (MigrationResult, error) {
	anonymousID = strings.TrimSpace(anonymousID)
	if anonymousID == "" || userID == "" {
		return MigrationResult{}, apperr.New(apperr.Invalid, apperr.CodeInvalidRequest, "anonymous id and user id are required")
	}
	res, err := s.migrator.MigrateAnonymous(ctx, anonymousID, userID)
	if err != nil {
		return MigrationResult{}, apperr.Internalf(err, "migrate anonymous data")
	}
	return res, nil
}

// CleanupStaleAnonymous deletes anonymous data older than olderThan.
func (s *Service) CleanupStaleAnonymous(ctx context.Context, olderThan time.Duration) (MigrationResult, error) {
	if s.janitor == nil {
		return MigrationResult{}, apperr.Internalf(errors.New("janitor not configured"), "cleanup")
	}
	if olderThan <= 0 {
		return MigrationResult{}, apperr.New(apperr.Invalid, apperr.CodeInvalidRequest, "olderThan must be positive")
	}
	res, err := s.janitor.DeleteStaleAnonymous(ctx, s.now().Add(-olderThan))
	if err != nil {
		return MigrationResult{}, apperr.Internalf(err, "delete stale anonymous data")
	}
	return res, nil
}

func catalogErr(err error, what string) error {
	if errors.Is(err, catalog.ErrNotFound) {
		return apperr.New(apperr.NotFound, apperr.CodeNotFound, what+" not found")
	}
	return apperr.Internalf(err, "find %s", what)
}
