// resolver.go - price quotes and promo validation.
package pricing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/foozao/lao-cinema-sub007/internal/apperr"
	"github.com/foozao/lao-cinema-sub007/internal/catalog"
	"github.com/foozao/lao-cinema-sub007/internal/metrics"
)

// Reason explains why a promo code cannot be used.
type Reason string

const (
	ReasonNotFound       Reason = "not_found"
	ReasonNotYetValid    Reason = "not_yet_valid"
	ReasonExpired        Reason = "expired"
	ReasonWrongMovie     Reason = "wrong_movie"
	ReasonMisconfigured  Reason = "misconfigured"
	ReasonUseCapExceeded Reason = "use_cap_exceeded"
)

// Why a quote is unavailable.
const (
	UnavailableNoPricing    = "no_pricing"
	UnavailableTierInactive = "tier_inactive"
)

// Validation is the outcome of ValidatePromoCode. An unusable code is an
// ordinary result, not an error.
type Validation struct {
	Valid  bool       `json:"valid"`
	Promo  *PromoCode `json:"-"`
	Reason Reason     `json:"error,omitempty"`
}

// AppliedPromo describes the promo folded into a quote.
type AppliedPromo struct {
	ID            string       `json:"id"`
	Code          string       `json:"code"`
	DiscountType  DiscountType `json:"discountType"`
	DiscountValue int64        `json:"discountValue"`
}

// Quote is the price of a rental.
type Quote struct {
	Available         bool          `json:"available"`
	Tier              *Tier         `json:"tier,omitempty"`
	OriginalAmount    int64         `json:"originalAmount"`
	Discount          int64         `json:"discount"`
	FinalAmount       int64         `json:"finalAmount"`
	PromoApplied      *AppliedPromo `json:"promoApplied,omitempty"`
	UnavailableReason string        `json:"unavailableReason,omitempty"`
}

// Resolver computes quotes.
type Resolver struct {
	catalog catalog.Store
	tiers   TierStore
	promos  PromoStore
	now     func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option { return func(r *Resolver) { r.now = now } }

// NewResolver wires a Resolver.
func NewResolver(cat catalog.Store, tiers TierStore, promos PromoStore, opts ...Option) *Resolver {
	r := &Resolver{catalog: cat, tiers: tiers, promos: promos, now: time.Now}
	for _, o := range opts {
		o(r)
	}
	return r
}

// ResolvePrice quotes a single-movie rental. An unusable promo code is
// ignored and the full price is returned; callers that need the reason use
// ValidatePromoCode.
func (res *Resolver) ResolvePrice(ctx context.Context, movieID, promoCode string) (*Quote, error) {
	m, err := res.catalog.FindMovie(ctx, movieID)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, apperr.New(apperr.NotFound, apperr.CodeNotFound, "movie not found")
	}
	if err != nil {
		return nil, apperr.Internalf(err, "find movie")
	}
	return res.quote(ctx, m.PricingTierID, movieID, promoCode)
}

// ResolvePackPrice quotes a pack rental. Movie-restricted promo codes never
// apply to packs.
func (res *Resolver) ResolvePackPrice(ctx context.Context, packID, promoCode string) (*Quote, error) {
	pk, err := res.catalog.FindPack(ctx, packID)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, apperr.New(apperr.NotFound, apperr.CodeNotFound, "pack not found")
	}
	if err != nil {
		return nil, apperr.Internalf(err, "find pack")
	}
	return res.quote(ctx, pk.PricingTierID, "", promoCode)
}

func (res *Resolver) quote(ctx context.Context, tierID *string, movieID, promoCode string) (*Quote, error) {
	if tierID == nil {
		return &Quote{UnavailableReason: UnavailableNoPricing}, nil
	}
	tier, err := res.tiers.FindTier(ctx, *tierID)
	if errors.Is(err, ErrNotFound) {
		return &Quote{UnavailableReason: UnavailableNoPricing}, nil
	}
	if err != nil {
		return nil, apperr.Internalf(err, "find tier")
	}
	if !tier.IsActive {
		return &Quote{Tier: tier, UnavailableReason: UnavailableTierInactive}, nil
	}

	q := &Quote{
		Available:      true,
		Tier:           tier,
		OriginalAmount: tier.PriceLAK,
		FinalAmount:    tier.PriceLAK,
	}
	if promoCode == "" {
		return q, nil
	}

	v, err := res.ValidatePromoCode(ctx, promoCode, movieID)
	if err != nil {
		return nil, err
	}
	if !v.Valid {
		return q, nil
	}
	q.Discount = Discount(q.OriginalAmount, v.Promo.DiscountType, v.Promo.DiscountValue)
	q.FinalAmount = q.OriginalAmount - q.Discount
	q.PromoApplied = &AppliedPromo{
		ID:            v.Promo.ID,
		Code:          v.Promo.Code,
		DiscountType:  v.Promo.DiscountType,
		DiscountValue: v.Promo.DiscountValue,
	}
	return q, nil
}

// ValidatePromoCode checks whether code may be used for movieID (empty for a
// pack). It has no side effects.
func (res *Resolver) ValidatePromoCode(ctx context.Context, code, movieID string) (*Validation, error) {
	v, err := res.validate(ctx, code, movieID)
	if err != nil {
		return nil, err
	}
	label := "valid"
	if !v.Valid {
		label = string(v.Reason)
	}
	metrics.PromoValidations.WithLabelValues(label).Inc()
	return v, nil
}

func (res *Resolver) validate(ctx context.Context, code, movieID string) (*Validation, error) {
	code = NormalizeCode(code)
	if code == "" {
		return &Validation{Reason: ReasonNotFound}, nil
	}
	p, err := res.promos.FindPromoByCode(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return &Validation{Reason: ReasonNotFound}, nil
	}
	if err != nil {
		return nil, apperr.Internalf(err, "find promo code")
	}
	if !p.IsActive {
		return &Validation{Promo: p, Reason: ReasonNotFound}, nil
	}
	if misconfigured(p) {
		return &Validation{Promo: p, Reason: ReasonMisconfigured}, nil
	}

	now := res.now()
	if p.ValidFrom != nil && now.Before(*p.ValidFrom) {
		return &Validation{Promo: p, Reason: ReasonNotYetValid}, nil
	}
	if p.ValidTo != nil && now.After(*p.ValidTo) {
		return &Validation{Promo: p, Reason: ReasonExpired}, nil
	}
	if p.MaxUses != nil && p.UsesCount >= *p.MaxUses {
		return &Validation{Promo: p, Reason: ReasonUseCapExceeded}, nil
	}
	if p.MovieID != nil && *p.MovieID != movieID {
		return &Validation{Promo: p, Reason: ReasonWrongMovie}, nil
	}
	return &Validation{Valid: true, Promo: p}, nil
}

func misconfigured(p *PromoCode) bool {
	switch p.DiscountType {
	case Free:
		return false
	case Percentage:
		return p.DiscountValue <= 0 || p.DiscountValue > 100
	case Fixed:
		return p.DiscountValue <= 0
	default:
		return true
	}
}

// RecordUse counts one use of a promo. Call only after the rental that used
// it has been created.
func (res *Resolver) RecordUse(ctx context.Context, promoID string) error {
	err := res.promos.IncrementPromoUse(ctx, promoID)
	switch {
	case errors.Is(err, ErrUseCapReached):
		return apperr.Wrap(err, apperr.Conflict, "PROMO_EXHAUSTED", "promo code has reached its use limit")
	case errors.Is(err, ErrNotFound):
		return apperr.Wrap(err, apperr.NotFound, apperr.CodeNotFound, "promo code not found")
	case err != nil:
		return apperr.Internalf(err, "record promo use")
	}
	return nil
}

// CreatePromoParams is the admin input for a new code.
type CreatePromoParams struct {
	Code          string
	DiscountType  DiscountType
	DiscountValue int64
	MovieID       *string
	ValidFrom     *time.Time
	ValidTo       *time.Time
	MaxUses       *int
}

// CreatePromo stores a new active promo code.
func (res *Resolver) CreatePromo(ctx context.Context, in CreatePromoParams) (*PromoCode, error) {
	p := PromoCode{
		ID:            uuid.NewString(),
		Code:          NormalizeCode(in.Code),
		DiscountType:  in.DiscountType,
		DiscountValue: in.DiscountValue,
		MovieID:       in.MovieID,
		ValidFrom:     in.ValidFrom,
		ValidTo:       in.ValidTo,
		MaxUses:       in.MaxUses,
		IsActive:      true,
		CreatedAt:     res.now().UTC(),
	}
	if p.Code == "" {
		return nil, apperr.New(apperr.Invalid, apperr.CodeInvalidRequest, "code is required")
	}
	if misconfigured(&p) {
		return nil, apperr.New(apperr.Invalid, apperr.CodeInvalidRequest, "discount type and value do not match")
	}
	if p.ValidFrom != nil && p.ValidTo != nil && !p.ValidTo.After(*p.ValidFrom) {
		return nil, apperr.New(apperr.Invalid, apperr.CodeInvalidRequest, "validTo must be after validFrom")
	}
	if p.MaxUses != nil && *p.MaxUses <= 0 {
		return nil, apperr.New(apperr.Invalid, apperr.CodeInvalidRequest, "maxUses must be positive")
	}
	if p.MovieID != nil {
		if _, err := res.catalog.FindMovie(ctx, *p.MovieID); err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return nil, apperr.New(apperr.NotFound, apperr.CodeNotFound, "movie not found")
			}
			return nil, apperr.Internalf(err, "find movie")
		}
	}

	err := res.promos.CreatePromo(ctx, p)
	if errors.Is(err, ErrDuplicateCode) {
		return nil, apperr.New(apperr.Conflict, "PROMO_CODE_EXISTS", "promo code already exists")
	}
	if err != nil {
		return nil, apperr.Internalf(err, "create promo")
	}
	return &p, nil
}

// ListPromos returns every promo code.
func (res *Resolver) ListPromos(ctx context.Context) ([]PromoCode, error) {
	ps, err := res.promos.ListPromos(ctx)
	if err != nil {
		return nil, apperr.Internalf(err, "list promos")
	}
	return ps, nil
}
