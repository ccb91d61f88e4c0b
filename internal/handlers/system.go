// Package handlers is the HTTP surface of the rental and playback API.
package handlers

import (
	"net/http"

	"github.com/foozao/lao-cinema-sub007/internal/respond"
)

// SystemInfo is the response body for GET /system/info.
type SystemInfo struct {
	Version         string          `json:"version"`
	Environment     string          `json:"environment"`
	PaymentProvider string          `json:"paymentProvider"`
	Features        map[string]bool `json:"features"`
}

// HandleSystemInfo reports build and feature availability so operators can
// tell which optional backends a running instance picked up.
//
//	{"version":"1.4.0","environment":"production","paymentProvider":"stripe",
//	 "features":{"rate_limiting":true,"token_revocation":true}}
func (s *Server) HandleSystemInfo(w http.ResponseWriter, _ *http.Request) {
	info := SystemInfo{
		Version:     s.Version,
		Environment: s.Environment,
		Features: map[string]bool{
			"rate_limiting":    s.Limiter.Enabled(),
			"token_revocation": s.Tokens.RevocationEnabled(),
		},
	}
	if s.Payments != nil {
		info.PaymentProvider = s.Payments.Name()
	}
	respond.JSON(w, http.StatusOK, info)
}
