package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/foozao/lao-cinema-sub007/internal/access"
	"github.com/foozao/lao-cinema-sub007/internal/apperr"
	"github.com/foozao/lao-cinema-sub007/internal/identity"
	"github.com/foozao/lao-cinema-sub007/internal/logger"
	"github.com/foozao/lao-cinema-sub007/internal/payment"
	"github.com/foozao/lao-cinema-sub007/internal/pricing"
	"github.com/foozao/lao-cinema-sub007/internal/rental"
	"github.com/foozao/lao-cinema-sub007/internal/respond"
	"github.com/foozao/lao-cinema-sub007/internal/validate"
)

// paymentMethodFree marks rentals whose final price was zero. No provider
// is consulted for them.
const paymentMethodFree = "free"

type accessResponse struct {
	HasAccess  bool        `json:"hasAccess"`
	AccessType access.Type `json:"accessType,omitempty"`
	Rental     *rentalView `json:"rental,omitempty"`
}

// GET /rentals/access/{movieId}
func (s *Server) checkAccess(w http.ResponseWriter, r *http.Request) {
	movieID, err := pathID(r, "movieId")
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	d, err := s.Access.CheckAccess(r.Context(), movieID, identity.FromContext(r.Context()))
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, accessResponse{
		HasAccess:  d.Granted,
		AccessType: d.Type,
		Rental:     newRentalView(d.Rental),
	})
}

// GET /rentals
func (s *Server) listRentals(w http.ResponseWriter, r *http.Request) {
	owner := rental.OwnerFor(identity.FromContext(r.Context()))
	rs, err := s.Rentals.ListRentals(r.Context(), owner)
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]interface{}{"rentals": newRentalViews(rs)})
}

type purchaseRequest struct {
	TransactionID string `json:"transactionId" validate:"required,max=255"`
	PromoCode     string `json:"promoCode" validate:"omitempty,promocode"`
	// Amount, when sent, is the price the client showed the viewer. A
	// mismatch with the server-side quote rejects the purchase.
	Amount *int64 `json:"amount" validate:"omitempty,gte=0"`
}

type purchaseResponse struct {
	Rental       *rentalView           `json:"rental"`
	MovieTitle   string                `json:"movieTitle,omitempty"`
	PackTitle    string                `json:"packTitle,omitempty"`
	PackMovieIDs []string              `json:"packMovieIds,omitempty"`
	PromoApplied *pricing.AppliedPromo `json:"promoApplied,omitempty"`
}

// POST /rentals/movies/{movieId}
func (s *Server) rentMovie(w http.ResponseWriter, r *http.Request) {
	movieID, err := pathID(r, "movieId")
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	s.purchase(w, r, rental.MovieTarget(movieID), func(ctx context.Context, promo string) (*pricing.Quote, error) {
		return s.Pricing.ResolvePrice(ctx, movieID, promo)
	})
}

// POST /rentals/packs/{packId}
func (s *Server) rentPack(w http.ResponseWriter, r *http.Request) {
	packID, err := pathID(r, "packId")
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	s.purchase(w, r, rental.PackTarget(packID), func(ctx context.Context, promo string) (*pricing.Quote, error) {
		return s.Pricing.ResolvePackPrice(ctx, packID, promo)
	})
}

// purchase runs price → payment confirmation → rental creation → promo use.
// The promo use is counted only once the rental exists.
func (s *Server) purchase(w http.ResponseWriter, r *http.Request, target rental.Target, quote func(context.Context, string) (*pricing.Quote, error)) {
	var req purchaseRequest
	if err := decodeBody(r, &req); err != nil {
		respond.Err(w, r, err)
		return
	}
	ctx := r.Context()
	log := logger.FromContext(ctx)
	owner := rental.OwnerFor(identity.FromContext(ctx))

	q, err := quote(ctx, req.PromoCode)
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	if !q.Available {
		respond.Error(w, http.StatusBadRequest, apperr.CodeNoPricing, "This title is not available for rental")
		return
	}
	if req.Amount != nil && *req.Amount != q.FinalAmount {
		respond.Error(w, http.StatusBadRequest, apperr.CodeInvalidRequest, "The price has changed, please review and try again")
		return
	}

	method := paymentMethodFree
	if q.FinalAmount > 0 {
		err := s.Payments.Confirm(ctx, req.TransactionID, q.FinalAmount, s.Currency)
		if errors.Is(err, payment.ErrNotConfirmed) {
			respond.Error(w, http.StatusBadRequest, apperr.CodePaymentNotConfirmed, "Payment could not be confirmed")
			return
		}
		if err != nil {
			respond.Err(w, r, apperr.Internalf(err, "confirm payment"))
			return
		}
		method = s.Payments.Name()
	}

	created, err := s.Rentals.CreateRental(ctx, rental.CreateParams{
		Owner:         owner,
		Target:        target,
		TransactionID: req.TransactionID,
		PaymentMethod: method,
		Amount:        q.FinalAmount,
		Currency:      s.Currency,
	})
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	if q.PromoApplied != nil {
		// The rental stands even if the cap was hit by a concurrent purchase.
		if err := s.Pricing.RecordUse(ctx, q.PromoApplied.ID); err != nil {
			log.Warn("promo use not recorded",
				"promo_id", q.PromoApplied.ID,
				"rental_id", created.Rental.ID,
				"error", err,
			)
		}
	}

	log.Info("rental created",
		"rental_id", created.Rental.ID,
		"target", target.Key(),
		"amount", q.FinalAmount,
		"payment_method", method,
	)
	details := map[string]interface{}{
		"target":        target.Key(),
		"amount":        q.FinalAmount,
		"paymentMethod": method,
		"transactionId": req.TransactionID,
	}
	if q.PromoApplied != nil {
		details["promoCode"] = q.PromoApplied.Code
	}
	s.record(r, "rental.create", "rental", created.Rental.ID, details)
	respond.JSON(w, http.StatusCreated, purchaseResponse{
		Rental:       newRentalView(&created.Rental),
		MovieTitle:   created.MovieTitle,
		PackTitle:    created.PackTitle,
		PackMovieIDs: created.PackMovieIDs,
		PromoApplied: q.PromoApplied,
	})
}

type packPositionRequest struct {
	CurrentShortID string `json:"currentShortId" validate:"required,resourceid"`
}

// PATCH /rentals/packs/{packId}/position
func (s *Server) updatePackPosition(w http.ResponseWriter, r *http.Request) {
	packID, err := pathID(r, "packId")
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	var req packPositionRequest
	if err := decodeBody(r, &req); err != nil {
		respond.Err(w, r, err)
		return
	}
	owner := rental.OwnerFor(identity.FromContext(r.Context()))
	updated, err := s.Rentals.UpdatePackPosition(r.Context(), owner, packID, req.CurrentShortID)
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]interface{}{"rental": newRentalView(updated)})
}

// POST /rentals/migrate
//
// Moves the rentals and watch progress of the device named by
// X-Anonymous-Id to the signed-in user.
func (s *Server) migrateAnonymous(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	anonymousID := identity.AnonymousIDFromContext(ctx)
	// Same rule as the resolver: any non-empty device id may own rentals.
	if err := validate.NonEmptyString(identity.AnonymousHeader, anonymousID); err != nil {
		respond.Error(w, http.StatusBadRequest, apperr.CodeInvalidRequest, "X-Anonymous-Id header is required")
		return
	}
	userID := identity.FromContext(ctx).UserID()

	res, err := s.Rentals.MigrateAnonymousData(ctx, anonymousID, userID)
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	logger.FromContext(ctx).Info("anonymous data migrated",
		"user_id", userID,
		"rentals", res.Rentals,
		"watch_progress", res.WatchProgress,
	)
	s.record(r, "rental.migrate_anonymous", "user", userID, map[string]interface{}{
		"anonymousId":   anonymousID,
		"rentals":       res.Rentals,
		"watchProgress": res.WatchProgress,
	})
	respond.JSON(w, http.StatusOK, res)
}
