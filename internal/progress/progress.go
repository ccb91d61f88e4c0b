// Package progress stores resume positions per viewer and movie. Rows owned
// by an anonymous device move to the account on first login together with
// the device's rentals.
package progress

import (
	"context"
	"errors"
	"time"

	"github.com/foozao/lao-cinema-sub007/internal/apperr"
	"github.com/foozao/lao-cinema-sub007/internal/catalog"
	"github.com/foozao/lao-cinema-sub007/internal/rental"
)

// ErrNotFound is returned when no progress row exists.
var ErrNotFound = errors.New("progress: not found")

// Progress is a viewer's position in a movie.
type Progress struct {
	Owner           rental.Owner `json:"-"`
	MovieID         string       `json:"movieId"`
	PositionSeconds int          `json:"progressSeconds"`
	DurationSeconds int          `json:"durationSeconds"`
	Completed       bool         `json:"completed"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

// Store persists progress rows, one per (owner, movie).
type Store interface {
	GetProgress(ctx context.Context, owner rental.Owner, movieID string) (*Progress, error)
	// SaveProgress inserts or replaces the row for (p.Owner, p.MovieID).
	SaveProgress(ctx context.Context, p Progress) error
}

// Service reads and writes watch progress.
type Service struct {
	store   Store
	catalog catalog.Store
	now     func() time.Time
}

// NewService wires a Service.
func NewService(store Store, cat catalog.Store) *Service {
	return &Service{store: store, catalog: cat, now: time.Now}
}

// Get returns the owner's progress on movieID, or a zero row when the
// movie was never started.
func (s *Service) Get(ctx context.Context, owner rental.Owner, movieID string) (*Progress, error) {
	p, err := s.store.GetProgress(ctx, owner, movieID)
	if errors.Is(err, ErrNotFound) {
		return &Progress{Owner: owner, MovieID: movieID}, nil
	}
	if err != nil {
		return nil, apperr.Internalf(err, "get progress")
	}
	return p, nil
}

// Save records a position. position must lie within [0, duration] when a
// duration is known.
func (s *Service) Save(ctx context.Context, owner rental.Owner, movieID string, position, duration int, completed bool) (*Progress, error) {
	if owner.IsZero() {
		return nil, apperr.New(apperr.Unauthenticated, apperr.CodeUnauthenticated, "Authentication required")
	}
	if position < 0 || duration < 0 || (duration > 0 && position > duration) {
		return nil, apperr.New(apperr.Invalid, apperr.CodeInvalidRequest, "progressSeconds must be between 0 and durationSeconds")
	}
	if _, err := s.catalog.FindMovie(ctx, movieID); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, apperr.New(apperr.NotFound, apperr.CodeNotFound, "movie not found")
		}
		return nil, apperr.Internalf(err, "find movie")
	}

	p := Progress{
		Owner:           owner,
		MovieID:         movieID,
		PositionSeconds: position,
		DurationSeconds: duration,
		Completed:       completed,
		UpdatedAt:       s.now().UTC(),
	}
	if err := s.store.SaveProgress(ctx, p); err != nil {
		return nil, apperr.Internalf(err, "save progress")
	}
	return &p, nil
}
