package pricing_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/foozao/lao-cinema-sub007/internal/apperr"
	"github.com/foozao/lao-cinema-sub007/internal/catalog"
	"github.com/foozao/lao-cinema-sub007/internal/pricing"
	"github.com/foozao/lao-cinema-sub007/internal/store/memory"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func setup(t *testing.T) (*pricing.Resolver, *memory.Store) {
	t.Helper()
	st := memory.New()
	st.PutTier(pricing.Tier{ID: "standard", NameEN: "Standard", PriceLAK: 50000, IsActive: true})
	st.PutTier(pricing.Tier{ID: "retired", NameEN: "Retired", PriceLAK: 30000})
	st.PutMovie(catalog.Movie{ID: "m1", PricingTierID: ptr("standard")})
	st.PutMovie(catalog.Movie{ID: "m2", PricingTierID: ptr("standard")})
	st.PutMovie(catalog.Movie{ID: "unpriced"})
	st.PutMovie(catalog.Movie{ID: "old", PricingTierID: ptr("retired")})
	st.PutMovie(catalog.Movie{ID: "dangling", PricingTierID: ptr("gone")})
	st.PutPack(catalog.Pack{ID: "p1", PricingTierID: ptr("standard"), MovieIDs: []string{"m2"}})
	st.PutPack(catalog.Pack{ID: "p-unpriced", MovieIDs: []string{"m2"}})

	st.PutPromo(pricing.PromoCode{ID: "pr-20", Code: "launch20", DiscountType: pricing.Percentage, DiscountValue: 20, IsActive: true})
	st.PutPromo(pricing.PromoCode{ID: "pr-fixed", Code: "BIG", DiscountType: pricing.Fixed, DiscountValue: 60000, IsActive: true})
	st.PutPromo(pricing.PromoCode{ID: "pr-free", Code: "FREE", DiscountType: pricing.Free, IsActive: true})
	st.PutPromo(pricing.PromoCode{ID: "pr-off", Code: "OFF", DiscountType: pricing.Free})
	st.PutPromo(pricing.PromoCode{ID: "pr-bad", Code: "BAD", DiscountType: pricing.Percentage, DiscountValue: 150, IsActive: true})
	st.PutPromo(pricing.PromoCode{ID: "pr-soon", Code: "SOON", DiscountType: pricing.Free, IsActive: true, ValidFrom: ptr(now.Add(time.Hour))})
	st.PutPromo(pricing.PromoCode{ID: "pr-past", Code: "PAST", DiscountType: pricing.Free, IsActive: true, ValidTo: ptr(now.Add(-time.Hour))})
	st.PutPromo(pricing.PromoCode{ID: "pr-used", Code: "USED", DiscountType: pricing.Free, IsActive: true, MaxUses: ptr(2), UsesCount: 2})
	st.PutPromo(pricing.PromoCode{ID: "pr-once", Code: "ONCE", DiscountType: pricing.Free, IsActive: true, MaxUses: ptr(1)})
	st.PutPromo(pricing.PromoCode{ID: "pr-m1", Code: "M1ONLY", DiscountType: pricing.Free, IsActive: true, MovieID: ptr("m1")})

	return pricing.NewResolver(st, st, st, pricing.WithClock(func() time.Time { return now })), st
}

func TestResolvePrice(t *testing.T) {
	res, _ := setup(t)
	ctx := context.Background()

	tests := []struct {
		name         string
		movie, promo string
		final        int64
		discount     int64
		applied      bool
	}{
		{"no promo", "m1", "", 50000, 0, false},
		{"percentage", "m1", "launch20", 40000, 10000, true},
		{"fixed larger than price", "m1", "big", 0, 50000, true},
		{"free", "m1", "FREE", 0, 50000, true},
		{"unusable promo ignored", "m1", "expired-or-unknown", 50000, 0, false},
		{"movie restricted promo on its movie", "m1", "M1ONLY", 0, 50000, true},
		{"movie restricted promo elsewhere", "m2", "M1ONLY", 50000, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := res.ResolvePrice(ctx, tt.movie, tt.promo)
			require.NoError(t, err)
			require.True(t, q.Available)
			require.Equal(t, int64(50000), q.OriginalAmount)
			require.Equal(t, tt.discount, q.Discount)
			require.Equal(t, tt.final, q.FinalAmount)
			require.Equal(t, tt.applied, q.PromoApplied != nil)
		})
	}
}

func TestResolvePrice_Unavailable(t *testing.T) {
	res, _ := setup(t)
	ctx := context.Background()

	q, err := res.ResolvePrice(ctx, "unpriced", "")
	require.NoError(t, err)
	require.False(t, q.Available)
	require.Equal(t, pricing.UnavailableNoPricing, q.UnavailableReason)

	q, err = res.ResolvePrice(ctx, "dangling", "")
	require.NoError(t, err)
	require.Equal(t, pricing.UnavailableNoPricing, q.UnavailableReason)

	q, err = res.ResolvePrice(ctx, "old", "")
	require.NoError(t, err)
	require.False(t, q.Available)
	require.Equal(t, pricing.UnavailableTierInactive, q.UnavailableReason)

	_, err = res.ResolvePrice(ctx, "nope", "")
	require.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestResolvePackPrice(t *testing.T) {
	res, _ := setup(t)
	ctx := context.Background()

	q, err := res.ResolvePackPrice(ctx, "p1", "LAUNCH20")
	require.NoError(t, err)
	require.Equal(t, int64(40000), q.FinalAmount)

	q, err = res.ResolvePackPrice(ctx, "p1", "M1ONLY")
	require.NoError(t, err)
	require.Nil(t, q.PromoApplied, "movie-restricted codes never apply to packs")

	q, err = res.ResolvePackPrice(ctx, "p-unpriced", "")
	require.NoError(t, err)
	require.False(t, q.Available)

	_, err = res.ResolvePackPrice(ctx, "nope", "")
	require.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestValidatePromoCode_Reasons(t *testing.T) {
	res, _ := setup(t)
	tests := []struct {
		code, movie string
		valid       bool
		reason      pricing.Reason
	}{
		{"launch20", "m1", true, ""},
		{"", "m1", false, pricing.ReasonNotFound},
		{"missing", "m1", false, pricing.ReasonNotFound},
		{"OFF", "m1", false, pricing.ReasonNotFound},
		{"BAD", "m1", false, pricing.ReasonMisconfigured},
		{"SOON", "m1", false, pricing.ReasonNotYetValid},
		{"PAST", "m1", false, pricing.ReasonExpired},
		{"USED", "m1", false, pricing.ReasonUseCapExceeded},
		{"M1ONLY", "m2", false, pricing.ReasonWrongMovie},
		{"M1ONLY", "", false, pricing.ReasonWrongMovie},
		{"m1only", "m1", true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.code+"/"+tt.movie, func(t *testing.T) {
			v, err := res.ValidatePromoCode(context.Background(), tt.code, tt.movie)
			require.NoError(t, err)
			require.Equal(t, tt.valid, v.Valid)
			require.Equal(t, tt.reason, v.Reason)
		})
	}
}

func TestValidatePromoCode_NoSideEffects(t *testing.T) {
	res, st := setup(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		v, err := res.ValidatePromoCode(ctx, "ONCE", "m1")
		require.NoError(t, err)
		require.True(t, v.Valid)
		_, err = res.ResolvePrice(ctx, "m1", "ONCE")
		require.NoError(t, err)
	}
	p, err := st.FindPromoByCode(ctx, "ONCE")
	require.NoError(t, err)
	require.Zero(t, p.UsesCount)
}

func TestRecordUse(t *testing.T) {
	res, st := setup(t)
	ctx := context.Background()

	require.NoError(t, res.RecordUse(ctx, "pr-once"))
	p, err := st.FindPromoByCode(ctx, "once")
	require.NoError(t, err)
	require.Equal(t, 1, p.UsesCount)

	v, err := res.ValidatePromoCode(ctx, "ONCE", "m1")
	require.NoError(t, err)
	require.Equal(t, pricing.ReasonUseCapExceeded, v.Reason)

	err = res.RecordUse(ctx, "pr-once")
	require.Equal(t, apperr.Conflict, apperr.KindOf(err))

	err = res.RecordUse(ctx, "nope")
	require.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestCreatePromo(t *testing.T) {
	res, _ := setup(t)
	ctx := context.Background()

	p, err := res.CreatePromo(ctx, pricing.CreatePromoParams{Code: " summer10 ", DiscountType: pricing.Percentage, DiscountValue: 10})
	require.NoError(t, err)
	require.Equal(t, "SUMMER10", p.Code)
	require.True(t, p.IsActive)

	_, err = res.CreatePromo(ctx, pricing.CreatePromoParams{Code: "Summer10", DiscountType: pricing.Free})
	require.True(t, apperr.Is(err, "PROMO_CODE_EXISTS"), "got %v", err)

	bad := []pricing.CreatePromoParams{
		{Code: "", DiscountType: pricing.Free},
		{Code: "X1", DiscountType: pricing.Percentage, DiscountValue: 0},
		{Code: "X2", DiscountType: pricing.Fixed, DiscountValue: -5},
		{Code: "X3", DiscountType: pricing.Free, MaxUses: ptr(0)},
		{Code: "X4", DiscountType: pricing.Free, ValidFrom: ptr(now), ValidTo: ptr(now)},
	}
	for _, in := range bad {
		_, err := res.CreatePromo(ctx, in)
		require.Equal(t, apperr.Invalid, apperr.KindOf(err), in.Code)
	}

	_, err = res.CreatePromo(ctx, pricing.CreatePromoParams{Code: "GHOST", DiscountType: pricing.Free, MovieID: ptr("nope")})
	require.Equal(t, apperr.NotFound, apperr.KindOf(err))

	all, err := res.ListPromos(ctx)
	require.NoError(t, err)
	require.Len(t, all, 11)
}
