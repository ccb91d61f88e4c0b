// stripe.go - PaymentIntent confirmation through stripe-go.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// Stripe confirms PaymentIntents. The transaction id is the PaymentIntent id.
type Stripe struct {
	sc  *client.API
	key string
}

// StripeOption configures a Stripe provider.
type StripeOption func(*stripeConfig)

type stripeConfig struct {
	backendURL string
}

// WithBackendURL points the client at another API base URL (tests).
func WithBackendURL(url string) StripeOption {
	return func(c *stripeConfig) { c.backendURL = url }
}

// NewStripe initializes a client for the secret key.
func NewStripe(key string, opts ...StripeOption) (*Stripe, error) {
	if key == "" {
		return nil, fmt.Errorf("stripe not configured: set STRIPE_SECRET_KEY")
	}
	var cfg stripeConfig
	for _, o := range opts {
		o(&cfg)
	}

	var backends *stripe.Backends
	if cfg.backendURL != "" {
		api := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			URL:               stripe.String(cfg.backendURL),
			MaxNetworkRetries: stripe.Int64(0),
			LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
		})
		backends = &stripe.Backends{API: api, Connect: api, Uploads: api}
	}
	sc := &client.API{}
	sc.Init(key, backends)
	return &Stripe{sc: sc, key: key}, nil
}

func (s *Stripe) Name() string { return "stripe" }

// IsTestMode reports whether the key is a Stripe test key.
func (s *Stripe) IsTestMode() bool { return strings.HasPrefix(s.key, "sk_test") }

// KeyPrefix returns the first 12 characters of the key for logging.
func (s *Stripe) KeyPrefix() string {
	if len(s.key) < 12 {
		return "***"
	}
	return s.key[:12]
}

func (s *Stripe) Confirm(ctx context.Context, transactionID string, amount int64, currency string) error {
	if !strings.HasPrefix(transactionID, "pi_") {
		return ErrNotConfirmed
	}
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := s.sc.PaymentIntents.Get(transactionID, params)
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) && se.Code == stripe.ErrorCodeResourceMissing {
			return ErrNotConfirmed
		}
		return fmt.Errorf("stripe: get payment intent: %w", err)
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return ErrNotConfirmed
	}
	if pi.Amount != stripeAmount(amount, currency) || !strings.EqualFold(string(pi.Currency), currency) {
		return ErrNotConfirmed
	}
	return nil
}

// zeroDecimal lists the currencies Stripe charges in whole units.
// https://docs.stripe.com/currencies#zero-decimal
var zeroDecimal = map[string]bool{
	"BIF": true, "CLP": true, "DJF": true, "GNF": true, "JPY": true, "KMF": true,
	"KRW": true, "MGA": true, "PYG": true, "RWF": true, "UGX": true, "VND": true,
	"VUV": true, "XAF": true, "XOF": true, "XPF": true,
}

// stripeAmount converts a whole-unit price into the smallest unit Stripe
// expects for currency. LAK is not zero-decimal: 50 000 LAK is 5 000 000.
func stripeAmount(amount int64, currency string) int64 {
	if zeroDecimal[strings.ToUpper(currency)] {
		return amount
	}
	return amount * 100
}
