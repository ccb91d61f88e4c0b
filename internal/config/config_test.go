package config

import (
	"strings"
	"testing"
	"time"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("VIDEO_TOKEN_SECRET", secret)
	c, err := load()
	if err != nil {
		t.Fatal(err)
	}
	if c.RentalDuration != 48*time.Hour {
		t.Errorf("RentalDuration = %v", c.RentalDuration)
	}
	if c.VideoTokenTTL != 15*time.Minute {
		t.Errorf("VideoTokenTTL = %v", c.VideoTokenTTL)
	}
	if c.Currency != "LAK" || c.PaymentProvider != "demo" || c.Store != StorePostgres {
		t.Errorf("unexpected defaults: %+v", c)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("VIDEO_TOKEN_SECRET", secret)
	t.Setenv("RENTAL_DURATION_MS", "3600000")
	t.Setenv("VIDEO_TOKEN_TTL", "5m")
	t.Setenv("VIDEO_SERVER_URL", "https://video.example.com/")
	t.Setenv("STORE", "MEMORY")
	c, err := load()
	if err != nil {
		t.Fatal(err)
	}
	if c.RentalDuration != time.Hour {
		t.Errorf("RentalDuration = %v", c.RentalDuration)
	}
	if c.VideoTokenTTL != 5*time.Minute {
		t.Errorf("VideoTokenTTL = %v", c.VideoTokenTTL)
	}
	if c.VideoServerURL != "https://video.example.com" {
		t.Errorf("VideoServerURL = %q", c.VideoServerURL)
	}
	if c.Store != StoreMemory {
		t.Errorf("Store = %q", c.Store)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing secret", map[string]string{}, "VIDEO_TOKEN_SECRET is required"},
		{"short secret", map[string]string{"VIDEO_TOKEN_SECRET": "short"}, "at least 32"},
		{"bad duration", map[string]string{"VIDEO_TOKEN_SECRET": secret, "RENTAL_DURATION_MS": "two days"}, "RENTAL_DURATION_MS"},
		{"zero duration", map[string]string{"VIDEO_TOKEN_SECRET": secret, "RENTAL_DURATION_MS": "0"}, "RENTAL_DURATION_MS"},
		{"bad ttl", map[string]string{"VIDEO_TOKEN_SECRET": secret, "VIDEO_TOKEN_TTL": "-1m"}, "VIDEO_TOKEN_TTL"},
		{"stripe without key", map[string]string{"VIDEO_TOKEN_SECRET": secret, "PAYMENT_PROVIDER": "stripe"}, "STRIPE_SECRET_KEY"},
		{"demo in production", map[string]string{"VIDEO_TOKEN_SECRET": secret, "APP_ENV": "production"}, "not allowed in production"},
		{"unknown provider", map[string]string{"VIDEO_TOKEN_SECRET": secret, "PAYMENT_PROVIDER": "paypal"}, "PAYMENT_PROVIDER"},
		{"unknown store", map[string]string{"VIDEO_TOKEN_SECRET": secret, "STORE": "sqlite"}, "STORE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("VIDEO_TOKEN_SECRET", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := load()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}
