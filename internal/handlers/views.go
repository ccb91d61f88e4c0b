package handlers

import (
	"time"

	"github.com/foozao/lao-cinema-sub007/internal/rental"
)

// rentalView is the wire form of a rental. Exactly one of movieId and
// shortPackId is set.
type rentalView struct {
	ID             string    `json:"id"`
	MovieID        *string   `json:"movieId"`
	ShortPackID    *string   `json:"shortPackId"`
	PurchasedAt    time.Time `json:"purchasedAt"`
	ExpiresAt      time.Time `json:"expiresAt"`
	TransactionID  string    `json:"transactionId"`
	Amount         int64     `json:"amount"`
	Currency       string    `json:"currency"`
	PaymentMethod  string    `json:"paymentMethod"`
	CurrentShortID *string   `json:"currentShortId,omitempty"`
}

func newRentalView(r *rental.Rental) *rentalView {
	if r == nil {
		return nil
	}
	v := &rentalView{
		ID:             r.ID,
		PurchasedAt:    r.PurchasedAt,
		ExpiresAt:      r.ExpiresAt,
		TransactionID:  r.TransactionID,
		Amount:         r.Amount,
		Currency:       r.Currency,
		PaymentMethod:  r.PaymentMethod,
		CurrentShortID: r.CurrentShortID,
	}
	if r.Target.IsMovie() {
		id := r.Target.MovieID()
		v.MovieID = &id
	} else {
		id := r.Target.PackID()
		v.ShortPackID = &id
	}
	return v
}

func newRentalViews(rs []rental.Rental) []*rentalView {
	out := make([]*rentalView, 0, len(rs))
	for i := range rs {
		out = append(out, newRentalView(&rs[i]))
	}
	return out
}
