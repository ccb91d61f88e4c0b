package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/foozao/lao-cinema-sub007/internal/progress"
	"github.com/foozao/lao-cinema-sub007/internal/rental"
)

func (s *Store) GetProgress(ctx context.Context, owner rental.Owner, movieID string) (*progress.Progress, error) {
	if owner.IsZero() {
		return nil, progress.ErrNotFound
	}
	ownerSQL, ownerArg := ownerPredicate(owner, 1)
	p := progress.Progress{Owner: owner, MovieID: movieID}
	err := s.db.QueryRowContext(ctx, `
		SELECT progress_seconds, duration_seconds, completed, updated_at
		FROM watch_progress WHERE `+ownerSQL+` AND movie_id = $2
	`, ownerArg, movieID).Scan(&p.PositionSeconds, &p.DurationSeconds, &p.Completed, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) || isMalformedID(err) {
		return nil, progress.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) SaveProgress(ctx context.Context, p progress.Progress) error {
	userID, anonymousID := ownerColumns(p.Owner)
	conflict := `(anonymous_id, movie_id) WHERE anonymous_id IS NOT NULL`
	if p.Owner.IsUser() {
		conflict = `(user_id, movie_id) WHERE user_id IS NOT NULL`
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO watch_progress (user_id, anonymous_id, movie_id, progress_seconds, duration_seconds, completed, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT `+conflict+` DO UPDATE SET
			progress_seconds = EXCLUDED.progress_seconds,
			duration_seconds = EXCLUDED.duration_seconds,
			completed        = EXCLUDED.completed,
			updated_at       = EXCLUDED.updated_at
	`, userID, anonymousID, p.MovieID, p.PositionSeconds, p.DurationSeconds, p.Completed, p.UpdatedAt)
	return err
}
