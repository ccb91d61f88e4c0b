package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/foozao/lao-cinema-sub007/internal/rental"
)

const rentalColumns = `id, user_id, anonymous_id, movie_id, short_pack_id, purchased_at, expires_at,
	transaction_id, amount, currency, payment_method, current_short_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRental(sc rowScanner) (rental.Rental, error) {
	var (
		r                   rental.Rental
		userID, anonymousID sql.NullString
		movieID, packID     sql.NullString
		shortID             sql.NullString
	)
	err := sc.Scan(&r.ID, &userID, &anonymousID, &movieID, &packID, &r.PurchasedAt, &r.ExpiresAt,
		&r.TransactionID, &r.Amount, &r.Currency, &r.PaymentMethod, &shortID)
	if err != nil {
		return rental.Rental{}, err
	}
	r.Owner = ownerFromColumns(userID, anonymousID)
	if movieID.Valid {
		r.Target = rental.MovieTarget(movieID.String)
	} else {
		r.Target = rental.PackTarget(packID.String)
	}
	r.CurrentShortID = stringPtr(shortID)
	return r, nil
}

func (s *Store) queryRentals(ctx context.Context, query string, args ...any) ([]rental.Rental, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if isMalformedID(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []rental.Rental
	for rows.Next() {
		r, err := scanRental(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func targetPredicate(t rental.Target, n int) (string, string) {
	if t.IsMovie() {
		return fmt.Sprintf("movie_id = $%d", n), t.MovieID()
	}
	return fmt.Sprintf("short_pack_id = $%d", n), t.PackID()
}

func (s *Store) FindActive(ctx context.Context, owner rental.Owner, target rental.Target, now time.Time) ([]rental.Rental, error) {
	if owner.IsZero() || target.IsZero() {
		return nil, nil
	}
	ownerSQL, ownerArg := ownerPredicate(owner, 1)
	targetSQL, targetArg := targetPredicate(target, 2)
	return s.queryRentals(ctx, `
		SELECT `+rentalColumns+` FROM rentals
		WHERE `+ownerSQL+` AND `+targetSQL+` AND expires_at > $3
		ORDER BY purchased_at DESC, id DESC
	`, ownerArg, targetArg, now)
}

func (s *Store) FindActiveForPacks(ctx context.Context, owner rental.Owner, packIDs []string, now time.Time) ([]rental.Rental, error) {
	if owner.IsZero() || len(packIDs) == 0 {
		return nil, nil
	}
	ownerSQL, ownerArg := ownerPredicate(owner, 1)
	return s.queryRentals(ctx, `
		SELECT `+rentalColumns+` FROM rentals
		WHERE `+ownerSQL+` AND short_pack_id = ANY($2::uuid[]) AND expires_at > $3
		ORDER BY purchased_at DESC, id DESC
	`, ownerArg, pq.Array(packIDs), now)
}

func (s *Store) ListByOwner(ctx context.Context, owner rental.Owner) ([]rental.Rental, error) {
	if owner.IsZero() {
		return nil, nil
	}
	ownerSQL, ownerArg := ownerPredicate(owner, 1)
	return s.queryRentals(ctx, `
		SELECT `+rentalColumns+` FROM rentals
		WHERE `+ownerSQL+`
		ORDER BY purchased_at DESC, id DESC
	`, ownerArg)
}

// InsertIfNoActive serialises purchases of one (owner, target) pair with a
// transaction-scoped advisory lock, so the existence check and the insert
// cannot interleave with another request for the same pair.
func (s *Store) InsertIfNoActive(ctx context.Context, r rental.Rental) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`,
		r.Owner.Key()+"|"+r.Target.Key()); err != nil {
		return fmt.Errorf("advisory lock: %w", err)
	}

	// A reused transaction id wins over an active rental, as in the memory store.
	var used bool
	if err := tx.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM rentals WHERE transaction_id = $1)
	`, r.TransactionID).Scan(&used); err != nil {
		return err
	}
	if used {
		return rental.ErrDuplicateTransaction
	}

	ownerSQL, ownerArg := ownerPredicate(r.Owner, 1)
	targetSQL, targetArg := targetPredicate(r.Target, 2)
	var exists bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM rentals WHERE `+ownerSQL+` AND `+targetSQL+` AND expires_at > $3)
	`, ownerArg, targetArg, r.PurchasedAt).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return rental.ErrActiveRentalExists
	}

	userID, anonymousID := ownerColumns(r.Owner)
	var movieID, packID sql.NullString
	if r.Target.IsMovie() {
		movieID = sql.NullString{String: r.Target.MovieID(), Valid: true}
	} else {
		packID = sql.NullString{String: r.Target.PackID(), Valid: true}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO rentals (id, user_id, anonymous_id, movie_id, short_pack_id, purchased_at, expires_at,
			transaction_id, amount, currency, payment_method)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, r.ID, userID, anonymousID, movieID, packID, r.PurchasedAt, r.ExpiresAt,
		r.TransactionID, r.Amount, r.Currency, r.PaymentMethod)
	// Same id from a purchase of another owner or target racing this one.
	if isUniqueViolation(err) {
		return rental.ErrDuplicateTransaction
	}
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) UpdatePackPosition(ctx context.Context, rentalID, shortID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE rentals SET current_short_id = $2 WHERE id = $1 AND short_pack_id IS NOT NULL
	`, rentalID, shortID)
	if isMalformedID(err) {
		return rental.ErrNotFound
	}
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return rental.ErrNotFound
	}
	return nil
}

// MigrateAnonymous moves rentals and watch progress in one transaction. Where
// both the device and the account have progress on a movie the fresher row
// survives.
func (s *Store) MigrateAnonymous(ctx context.Context, anonymousID, userID string) (rental.MigrationResult, error) {
	var res rental.MigrationResult
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, err
	}
	defer tx.Rollback()

	out, err := tx.ExecContext(ctx, `
		UPDATE rentals SET user_id = $2, anonymous_id = NULL WHERE anonymous_id = $1
	`, anonymousID, userID)
	if err != nil {
		return res, fmt.Errorf("move rentals: %w", err)
	}
	res.Rentals, _ = out.RowsAffected()

	out, err = tx.ExecContext(ctx, `
		DELETE FROM watch_progress a USING watch_progress u
		WHERE a.anonymous_id = $1 AND u.user_id = $2 AND u.movie_id = a.movie_id
		  AND u.updated_at > a.updated_at
	`, anonymousID, userID)
	if err != nil {
		return res, fmt.Errorf("drop stale device progress: %w", err)
	}
	dropped, _ := out.RowsAffected()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM watch_progress u USING watch_progress a
		WHERE u.user_id = $2 AND a.anonymous_id = $1 AND a.movie_id = u.movie_id
	`, anonymousID, userID); err != nil {
		return res, fmt.Errorf("drop stale account progress: %w", err)
	}

	out, err = tx.ExecContext(ctx, `
		UPDATE watch_progress SET user_id = $2, anonymous_id = NULL WHERE anonymous_id = $1
	`, anonymousID, userID)
	if err != nil {
		return res, fmt.Errorf("move progress: %w", err)
	}
	moved, _ := out.RowsAffected()
	res.WatchProgress = moved + dropped

	return res, tx.Commit()
}

func (s *Store) DeleteStaleAnonymous(ctx context.Context, cutoff time.Time) (rental.MigrationResult, error) {
	var res rental.MigrationResult
	out, err := s.db.ExecContext(ctx, `
		DELETE FROM rentals WHERE anonymous_id IS NOT NULL AND expires_at < $1
	`, cutoff)
	if err != nil {
		return res, err
	}
	res.Rentals, _ = out.RowsAffected()

	out, err = s.db.ExecContext(ctx, `
		DELETE FROM watch_progress WHERE anonymous_id IS NOT NULL AND updated_at < $1
	`, cutoff)
	if err != nil {
		return res, err
	}
	res.WatchProgress, _ = out.RowsAffected()
	return res, nil
}
