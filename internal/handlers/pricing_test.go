package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/foozao/lao-cinema-sub007/internal/testutil"
)

type quoteJSON struct {
	Available         bool   `json:"available"`
	OriginalAmount    int64  `json:"originalAmount"`
	Discount          int64  `json:"discount"`
	FinalAmount       int64  `json:"finalAmount"`
	UnavailableReason string `json:"unavailableReason"`
	PromoApplied      *struct {
		Code string `json:"code"`
	} `json:"promoApplied"`
}

func TestMovieQuote(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name      string
		path      string
		available bool
		final     int64
		reason    string
		promo     bool
	}{
		{"full price", "/pricing/movies/m-1", true, 50000, "", false},
		{"half off", "/pricing/movies/m-1?promo=half", true, 25000, "", true},
		{"free", "/pricing/movies/m-1?promo=FREE100", true, 0, "", true},
		{"unknown promo ignored", "/pricing/movies/m-1?promo=NOPE", true, 50000, "", false},
		{"no pricing", "/pricing/movies/m-unpriced", false, 0, "no_pricing", false},
		{"pack", "/pricing/packs/p-1?promo=HALF", true, 40000, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := testutil.GetJSON(t, f.h, tt.path, nobody)
			testutil.AssertStatus(t, rr, http.StatusOK)
			var q quoteJSON
			testutil.DecodeJSON(t, rr, &q)
			require.Equal(t, tt.available, q.Available)
			require.Equal(t, tt.final, q.FinalAmount)
			require.Equal(t, tt.reason, q.UnavailableReason)
			require.Equal(t, tt.promo, q.PromoApplied != nil)
			if q.Available {
				require.Equal(t, q.OriginalAmount-q.Discount, q.FinalAmount)
			}
		})
	}

	rr := testutil.GetJSON(t, f.h, "/pricing/movies/m-missing", nobody)
	require.Equal(t, http.StatusNotFound, rr.Code)
	rr = testutil.GetJSON(t, f.h, "/pricing/packs/p-missing", nobody)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestValidatePromoCode(t *testing.T) {
	f := newFixture(t)
	rr := testutil.PostJSON(t, f.h, "/admin/promo-codes", map[string]interface{}{
		"code": "SIGNAL20", "discountType": "percentage", "discountValue": 20, "movieId": "m-1",
	}, admin)
	testutil.AssertStatus(t, rr, http.StatusCreated)

	type result struct {
		Valid         bool   `json:"valid"`
		Reason        string `json:"reason"`
		DiscountType  string `json:"discountType"`
		DiscountValue *int64 `json:"discountValue"`
	}
	tests := []struct {
		name   string
		body   map[string]string
		valid  bool
		reason string
	}{
		{"valid any movie", map[string]string{"code": "half"}, true, ""},
		{"valid for its movie", map[string]string{"code": "SIGNAL20", "movieId": "m-1"}, true, ""},
		{"wrong movie", map[string]string{"code": "SIGNAL20", "movieId": "m-2"}, false, "wrong_movie"},
		{"unknown", map[string]string{"code": "NOPE"}, false, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := testutil.PostJSON(t, f.h, "/promo-codes/validate", tt.body, nobody)
			testutil.AssertStatus(t, rr, http.StatusOK)
			var got result
			testutil.DecodeJSON(t, rr, &got)
			require.Equal(t, tt.valid, got.Valid)
			require.Equal(t, tt.reason, got.Reason)
			if tt.valid {
				require.NotEmpty(t, got.DiscountType)
				require.NotNil(t, got.DiscountValue)
			} else {
				require.Nil(t, got.DiscountValue)
			}
		})
	}

	rr = testutil.PostJSON(t, f.h, "/promo-codes/validate", map[string]string{"code": "bad code!"}, nobody)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "INVALID_REQUEST", testutil.ErrorCode(t, rr))
}

func TestValidatePromoCode_HasNoSideEffects(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		rr := testutil.PostJSON(t, f.h, "/promo-codes/validate", map[string]string{"code": "ONCE"}, nobody)
		testutil.AssertStatus(t, rr, http.StatusOK)
		require.Contains(t, rr.Body.String(), `"valid":true`)
	}
}
