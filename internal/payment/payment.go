// Package payment confirms that a client-reported transaction was actually
// paid before a rental is created.
package payment

import (
	"context"
	"errors"
	"strings"
)

// ErrNotConfirmed means the provider does not know the transaction or it was
// not paid in full.
var ErrNotConfirmed = errors.New("payment: not confirmed")

// Provider checks one transaction.
type Provider interface {
	// Name is stored as the rental's payment method.
	Name() string
	// Confirm returns nil when transactionID was paid for amount in
	// currency, ErrNotConfirmed when it was not, and any other error when the
	// provider could not be asked.
	Confirm(ctx context.Context, transactionID string, amount int64, currency string) error
}

// Demo accepts any transaction id carrying its prefix. It stands in for a
// real gateway in development and tests.
type Demo struct {
	Prefix string
}

// DemoPrefix is the default Demo prefix.
const DemoPrefix = "demo_"

// NewDemo returns a Demo provider with DemoPrefix.
func NewDemo() *Demo { return &Demo{Prefix: DemoPrefix} }

func (d *Demo) Name() string { return "demo" }

func (d *Demo) Confirm(_ context.Context, transactionID string, amount int64, _ string) error {
	if amount < 0 || !strings.HasPrefix(transactionID, d.Prefix) || len(transactionID) == len(d.Prefix) {
		return ErrNotConfirmed
	}
	return nil
}
