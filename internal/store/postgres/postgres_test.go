package postgres_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/foozao/lao-cinema-sub007/internal/catalog"
	"github.com/foozao/lao-cinema-sub007/internal/identity"
	"github.com/foozao/lao-cinema-sub007/internal/pricing"
	"github.com/foozao/lao-cinema-sub007/internal/progress"
	"github.com/foozao/lao-cinema-sub007/internal/rental"
	"github.com/foozao/lao-cinema-sub007/internal/store/postgres"
	"github.com/foozao/lao-cinema-sub007/internal/testutil"
)

func newRental(owner rental.Owner, target rental.Target, at time.Time) rental.Rental {
	return rental.Rental{
		ID:            uuid.NewString(),
		Owner:         owner,
		Target:        target,
		PurchasedAt:   at,
		ExpiresAt:     at.Add(48 * time.Hour),
		TransactionID: "tx-" + uuid.NewString(),
		Amount:        50000,
		Currency:      "LAK",
		PaymentMethod: "demo",
	}
}

func TestSessionsAndUsers(t *testing.T) {
	db := testutil.MustOpenDB(t)
	defer db.Close()
	s := postgres.New(db)
	ctx := context.Background()

	uid := testutil.SeedUser(t, db, "editor")
	defer testutil.CleanupUser(db, uid)
	now := time.Now().UTC().Truncate(time.Second)
	hash := identity.HashToken(uuid.NewString())
	testutil.SeedSession(t, db, hash, uid, now.Add(-time.Minute))

	sess, err := s.FindSession(ctx, hash)
	require.NoError(t, err)
	require.Equal(t, uid, sess.UserID)

	u, err := s.FindUser(ctx, uid)
	require.NoError(t, err)
	require.Equal(t, identity.RoleEditor, u.Role)

	_, err = s.FindUser(ctx, "not-a-uuid")
	require.ErrorIs(t, err, identity.ErrNotFound)

	n, err := s.DeleteExpiredSessions(ctx, now)
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, int64(1))
	_, err = s.FindSession(ctx, hash)
	require.ErrorIs(t, err, identity.ErrNotFound)
}

func TestCatalog(t *testing.T) {
	db := testutil.MustOpenDB(t)
	defer db.Close()
	s := postgres.New(db)
	ctx := context.Background()

	tier := testutil.SeedTier(t, db, 50000)
	m1 := testutil.SeedMovie(t, db, "Short A", tier)
	m2 := testutil.SeedMovie(t, db, "Short B", "")
	defer testutil.CleanupMovie(db, m1)
	defer testutil.CleanupMovie(db, m2)
	pack := testutil.SeedPack(t, db, "Shorts", m1, m2)
	src := testutil.SeedVideoSource(t, db, m1, "hls/a/master.m3u8")

	m, err := s.FindMovie(ctx, m1)
	require.NoError(t, err)
	require.Equal(t, tier, *m.PricingTierID)
	m, err = s.FindMovie(ctx, m2)
	require.NoError(t, err)
	require.Nil(t, m.PricingTierID)

	_, err = s.FindMovie(ctx, "bogus")
	require.ErrorIs(t, err, catalog.ErrNotFound)

	p, err := s.FindPack(ctx, pack)
	require.NoError(t, err)
	require.Equal(t, []string{m1, m2}, p.MovieIDs)

	ids, err := s.PacksContaining(ctx, m2)
	require.NoError(t, err)
	require.Contains(t, ids, pack)

	v, err := s.FindVideoSource(ctx, src)
	require.NoError(t, err)
	require.Equal(t, m1, v.MovieID)
}

func TestInsertIfNoActive_Race(t *testing.T) {
	db := testutil.MustOpenDB(t)
	defer db.Close()
	s := postgres.New(db)
	ctx := context.Background()

	movie := testutil.SeedMovie(t, db, "Race", testutil.SeedTier(t, db, 50000))
	defer testutil.CleanupMovie(db, movie)
	owner := rental.AnonymousOwner("dev-" + uuid.NewString())
	now := time.Now().UTC()

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.InsertIfNoActive(ctx, newRental(owner, rental.MovieTarget(movie), now))
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.ErrorIs(t, err, rental.ErrActiveRentalExists)
	}
	require.Equal(t, 1, ok)

	active, err := s.FindActive(ctx, owner, rental.MovieTarget(movie), now)
	require.NoError(t, err)
	require.Len(t, active, 1)
}

func TestInsertIfNoActive_DuplicateTransaction(t *testing.T) {
	db := testutil.MustOpenDB(t)
	defer db.Close()
	s := postgres.New(db)
	ctx := context.Background()

	tier := testutil.SeedTier(t, db, 50000)
	m1 := testutil.SeedMovie(t, db, "A", tier)
	m2 := testutil.SeedMovie(t, db, "B", tier)
	defer testutil.CleanupMovie(db, m1)
	defer testutil.CleanupMovie(db, m2)

	owner := rental.AnonymousOwner("dev-" + uuid.NewString())
	r := newRental(owner, rental.MovieTarget(m1), time.Now().UTC())
	require.NoError(t, s.InsertIfNoActive(ctx, r))

	dup := newRental(owner, rental.MovieTarget(m2), time.Now().UTC())
	dup.TransactionID = r.TransactionID
	err := s.InsertIfNoActive(ctx, dup)
	require.True(t, errors.Is(err, rental.ErrDuplicateTransaction), "got %v", err)

	// Same target, still active: the reused transaction id is reported first.
	again := newRental(owner, rental.MovieTarget(m1), time.Now().UTC())
	again.TransactionID = r.TransactionID
	err = s.InsertIfNoActive(ctx, again)
	require.True(t, errors.Is(err, rental.ErrDuplicateTransaction), "got %v", err)
}

func TestMigrateAnonymous(t *testing.T) {
	db := testutil.MustOpenDB(t)
	defer db.Close()
	s := postgres.New(db)
	ctx := context.Background()

	tier := testutil.SeedTier(t, db, 50000)
	m1 := testutil.SeedMovie(t, db, "A", tier)
	m2 := testutil.SeedMovie(t, db, "B", tier)
	defer testutil.CleanupMovie(db, m1)
	defer testutil.CleanupMovie(db, m2)
	uid := testutil.SeedUser(t, db, "user")
	defer testutil.CleanupUser(db, uid)

	anonID := "dev-" + uuid.NewString()
	anon, user := rental.AnonymousOwner(anonID), rental.UserOwner(uid)
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, s.InsertIfNoActive(ctx, newRental(anon, rental.MovieTarget(m1), now)))
	require.NoError(t, s.SaveProgress(ctx, progress.Progress{Owner: anon, MovieID: m1, PositionSeconds: 10, UpdatedAt: now.Add(-time.Hour)}))
	require.NoError(t, s.SaveProgress(ctx, progress.Progress{Owner: user, MovieID: m1, PositionSeconds: 500, UpdatedAt: now}))
	require.NoError(t, s.SaveProgress(ctx, progress.Progress{Owner: anon, MovieID: m2, PositionSeconds: 20, UpdatedAt: now}))

	res, err := s.MigrateAnonymous(ctx, anonID, uid)
	require.NoError(t, err)
	require.Equal(t, rental.MigrationResult{Rentals: 1, WatchProgress: 2}, res)

	p, err := s.GetProgress(ctx, user, m1)
	require.NoError(t, err)
	require.Equal(t, 500, p.PositionSeconds)
	p, err = s.GetProgress(ctx, user, m2)
	require.NoError(t, err)
	require.Equal(t, 20, p.PositionSeconds)

	rs, err := s.ListByOwner(ctx, user)
	require.NoError(t, err)
	require.Len(t, rs, 1)

	again, err := s.MigrateAnonymous(ctx, anonID, uid)
	require.NoError(t, err)
	require.Equal(t, rental.MigrationResult{}, again)
}

func TestPromoCodes(t *testing.T) {
	db := testutil.MustOpenDB(t)
	defer db.Close()
	s := postgres.New(db)
	ctx := context.Background()

	code := "PG" + uuid.NewString()[:8]
	limit := 1
	p := pricing.PromoCode{
		ID: uuid.NewString(), Code: code, DiscountType: pricing.Percentage, DiscountValue: 20,
		MaxUses: &limit, IsActive: true, CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.CreatePromo(ctx, p))
	defer db.Exec(`DELETE FROM promo_codes WHERE id = $1`, p.ID)

	dup := p
	dup.ID = uuid.NewString()
	require.ErrorIs(t, s.CreatePromo(ctx, dup), pricing.ErrDuplicateCode)

	got, err := s.FindPromoByCode(ctx, " "+code+" ")
	require.NoError(t, err)
	require.Equal(t, p.ID, got.ID)
	require.Equal(t, 1, *got.MaxUses)

	require.NoError(t, s.IncrementPromoUse(ctx, p.ID))
	require.ErrorIs(t, s.IncrementPromoUse(ctx, p.ID), pricing.ErrUseCapReached)
	require.ErrorIs(t, s.IncrementPromoUse(ctx, uuid.NewString()), pricing.ErrNotFound)
}
