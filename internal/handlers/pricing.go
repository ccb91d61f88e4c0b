package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/foozao/lao-cinema-sub007/internal/apperr"
	"github.com/foozao/lao-cinema-sub007/internal/pricing"
	"github.com/foozao/lao-cinema-sub007/internal/respond"
)

// promoParam returns ?promo=. Values too long to be a code are dropped;
// an unusable code prices at full amount anyway.
func promoParam(r *http.Request) string {
	code := strings.TrimSpace(r.URL.Query().Get("promo"))
	if len(code) > 64 {
		return ""
	}
	return code
}

// GET /pricing/movies/{movieId}?promo=
func (s *Server) movieQuote(w http.ResponseWriter, r *http.Request) {
	movieID, err := pathID(r, "movieId")
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	q, err := s.Pricing.ResolvePrice(r.Context(), movieID, promoParam(r))
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, q)
}

// GET /pricing/packs/{packId}?promo=
func (s *Server) packQuote(w http.ResponseWriter, r *http.Request) {
	packID, err := pathID(r, "packId")
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	q, err := s.Pricing.ResolvePackPrice(r.Context(), packID, promoParam(r))
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, q)
}

type validatePromoRequest struct {
	Code    string `json:"code" validate:"required,promocode"`
	MovieID string `json:"movieId" validate:"omitempty,resourceid"`
}

type validatePromoResponse struct {
	Valid         bool                 `json:"valid"`
	Reason        pricing.Reason       `json:"reason,omitempty"`
	Code          string               `json:"code,omitempty"`
	DiscountType  pricing.DiscountType `json:"discountType,omitempty"`
	DiscountValue *int64               `json:"discountValue,omitempty"`
}

// POST /promo-codes/validate
func (s *Server) validatePromoCode(w http.ResponseWriter, r *http.Request) {
	var req validatePromoRequest
	if err := decodeBody(r, &req); err != nil {
		respond.Err(w, r, err)
		return
	}
	v, err := s.Pricing.ValidatePromoCode(r.Context(), req.Code, req.MovieID)
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	out := validatePromoResponse{Valid: v.Valid, Reason: v.Reason}
	if v.Valid {
		out.Code = v.Promo.Code
		out.DiscountType = v.Promo.DiscountType
		value := v.Promo.DiscountValue
		out.DiscountValue = &value
	}
	respond.JSON(w, http.StatusOK, out)
}

// GET /admin/promo-codes
func (s *Server) listPromoCodes(w http.ResponseWriter, r *http.Request) {
	ps, err := s.Pricing.ListPromos(r.Context())
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	if ps == nil {
		ps = []pricing.PromoCode{}
	}
	respond.JSON(w, http.StatusOK, map[string]interface{}{"promoCodes": ps})
}

type createPromoRequest struct {
	Code          string     `json:"code" validate:"required,promocode"`
	DiscountType  string     `json:"discountType" validate:"required,oneof=free percentage fixed"`
	DiscountValue int64      `json:"discountValue" validate:"gte=0"`
	MovieID       *string    `json:"movieId" validate:"omitempty,resourceid"`
	ValidFrom     *time.Time `json:"validFrom"`
	ValidTo       *time.Time `json:"validTo"`
	MaxUses       *int       `json:"maxUses" validate:"omitempty,gt=0"`
}

// POST /admin/promo-codes
func (s *Server) createPromoCode(w http.ResponseWriter, r *http.Request) {
	var req createPromoRequest
	if err := decodeBody(r, &req); err != nil {
		respond.Err(w, r, err)
		return
	}
	if req.DiscountType != string(pricing.Free) && req.DiscountValue == 0 {
		respond.Error(w, http.StatusBadRequest, apperr.CodeInvalidRequest, "discountValue is required")
		return
	}
	p, err := s.Pricing.CreatePromo(r.Context(), pricing.CreatePromoParams{
		Code:          req.Code,
		DiscountType:  pricing.DiscountType(req.DiscountType),
		DiscountValue: req.DiscountValue,
		MovieID:       req.MovieID,
		ValidFrom:     req.ValidFrom,
		ValidTo:       req.ValidTo,
		MaxUses:       req.MaxUses,
	})
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	s.record(r, "promo_code.create", "promo_code", p.ID, map[string]interface{}{
		"code":         p.Code,
		"discountType": p.DiscountType,
	})
	respond.JSON(w, http.StatusCreated, p)
}
