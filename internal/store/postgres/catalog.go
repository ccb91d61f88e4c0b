package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/foozao/lao-cinema-sub007/internal/catalog"
)

func (s *Store) FindMovie(ctx context.Context, id string) (*catalog.Movie, error) {
	m := catalog.Movie{ID: id}
	var tier sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT title, pricing_tier_id FROM movies WHERE id = $1`, id).Scan(&m.Title, &tier)
	if errors.Is(err, sql.ErrNoRows) || isMalformedID(err) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	m.PricingTierID = stringPtr(tier)
	return &m, nil
}

func (s *Store) FindPack(ctx context.Context, id string) (*catalog.Pack, error) {
	p := catalog.Pack{ID: id}
	var tier sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT title, pricing_tier_id FROM short_packs WHERE id = $1`, id).Scan(&p.Title, &tier)
	if errors.Is(err, sql.ErrNoRows) || isMalformedID(err) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.PricingTierID = stringPtr(tier)

	rows, err := s.db.QueryContext(ctx, `
		SELECT movie_id FROM short_pack_items WHERE pack_id = $1 ORDER BY sort_order, movie_id
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var mid string
		if err := rows.Scan(&mid); err != nil {
			return nil, err
		}
		p.MovieIDs = append(p.MovieIDs, mid)
	}
	return &p, rows.Err()
}

func (s *Store) PacksContaining(ctx context.Context, movieID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pack_id FROM short_pack_items WHERE movie_id = $1 ORDER BY pack_id
	`, movieID)
	if isMalformedID(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) FindVideoSource(ctx context.Context, id string) (*catalog.VideoSource, error) {
	v := catalog.VideoSource{ID: id}
	err := s.db.QueryRowContext(ctx, `
		SELECT movie_id, path, quality, format FROM video_sources WHERE id = $1
	`, id).Scan(&v.MovieID, &v.Path, &v.Quality, &v.Format)
	if errors.Is(err, sql.ErrNoRows) || isMalformedID(err) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}
