// Package catalog holds the read-only view of movies, packs and video sources
// that the rental path consults. Catalog editing lives in the CMS and is not
// part of this module.
package catalog

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a movie, pack or video source does not exist.
var ErrNotFound = errors.New("catalog: not found")

// Movie is a rentable title. A movie without a pricing tier is never rentable.
type Movie struct {
	ID            string
	Title         string
	PricingTierID *string
}

// Pack is a bundle of short films rented as a unit.
type Pack struct {
	ID            string
	Title         string
	PricingTierID *string
	MovieIDs      []string
}

// Contains reports whether movieID is a member of the pack.
func (p *Pack) Contains(movieID string) bool {
	for _, id := range p.MovieIDs {
		if id == movieID {
			return true
		}
	}
	return false
}

// VideoSource is one playable rendition of a movie. Path is relative to the
// video server's root.
type VideoSource struct {
	ID      string
	MovieID string
	Path    string
	Quality string
	Format  string
}

// Store is the catalog repository.
type Store interface {
	FindMovie(ctx context.Context, id string) (*Movie, error)
	FindPack(ctx context.Context, id string) (*Pack, error)
	// PacksContaining returns the ids of every pack that lists movieID.
	PacksContaining(ctx context.Context, movieID string) ([]string, error)
	FindVideoSource(ctx context.Context, id string) (*VideoSource, error)
}
