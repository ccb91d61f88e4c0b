// Package pricing computes what a rental costs: the movie's (or pack's) tier
// price minus an optional promo-code discount.
//
// Validation and usage are two separate calls. ResolvePrice and
// ValidatePromoCode never change state, so price previews never consume a
// promo use; RecordUse is called once, after the rental exists.
package pricing

import (
	"context"
	"errors"
	"strings"
	"time"
)

// DiscountType selects how DiscountValue is interpreted.
type DiscountType string

const (
	// Free discounts the whole amount; DiscountValue is ignored.
	Free DiscountType = "free"
	// Percentage discounts DiscountValue percent (1–100).
	Percentage DiscountType = "percentage"
	// Fixed discounts DiscountValue LAK, capped at the original amount.
	Fixed DiscountType = "fixed"
)

// Tier is a named price point.
type Tier struct {
	ID        string `json:"id"`
	NameEN    string `json:"nameEn"`
	NameLO    string `json:"nameLo"`
	PriceLAK  int64  `json:"priceLak"`
	IsActive  bool   `json:"isActive"`
	SortOrder int    `json:"sortOrder"`
}

// PromoCode is a discount code. Code is unique case-insensitively and stored
// upper-case.
type PromoCode struct {
	ID            string       `json:"id"`
	Code          string       `json:"code"`
	DiscountType  DiscountType `json:"discountType"`
	DiscountValue int64        `json:"discountValue"`
	MovieID       *string      `json:"movieId,omitempty"`
	ValidFrom     *time.Time   `json:"validFrom,omitempty"`
	ValidTo       *time.Time   `json:"validTo,omitempty"`
	MaxUses       *int         `json:"maxUses,omitempty"`
	UsesCount     int          `json:"usesCount"`
	IsActive      bool         `json:"isActive"`
	CreatedAt     time.Time    `json:"createdAt"`
}

// NormalizeCode is the canonical form used for storage and lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

var (
	// ErrNotFound is returned by stores for an unknown tier or promo code.
	ErrNotFound = errors.New("pricing: not found")
	// ErrUseCapReached is returned by IncrementPromoUse when uses_count
	// already equals max_uses.
	ErrUseCapReached = errors.New("pricing: promo use cap reached")
	// ErrDuplicateCode is returned by CreatePromo for an existing code.
	ErrDuplicateCode = errors.New("pricing: promo code exists")
)

// TierStore reads pricing tiers.
type TierStore interface {
	FindTier(ctx context.Context, id string) (*Tier, error)
}

// PromoStore reads and updates promo codes.
type PromoStore interface {
	// FindPromoByCode looks a code up case-insensitively.
	FindPromoByCode(ctx context.Context, code string) (*PromoCode, error)
	// IncrementPromoUse adds one use, never exceeding max_uses.
	IncrementPromoUse(ctx context.Context, id string) error
	ListPromos(ctx context.Context) ([]PromoCode, error)
	CreatePromo(ctx context.Context, p PromoCode) error
}

// Discount returns the amount taken off original by promo. The result is
// never negative and never larger than original.
func Discount(original int64, promoType DiscountType, value int64) int64 {
	if original <= 0 {
		return 0
	}
	var d int64
	switch promoType {
	case Free:
		d = original
	case Percentage:
		// round half away from zero; both operands are non-negative here
		d = (original*value + 50) / 100
	case Fixed:
		d = value
	}
	if d < 0 {
		return 0
	}
	if d > original {
		return original
	}
	return d
}
