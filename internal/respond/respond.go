// respond.go - shared JSON response helpers for the API and its middleware.
package respond

import (
	"encoding/json"
	"net/http"

	"github.com/foozao/lao-cinema-sub007/internal/apperr"
	"github.com/foozao/lao-cinema-sub007/internal/logger"
	"github.com/foozao/lao-cinema-sub007/pkg/telemetry"
)

// ErrorResponse is the standard error envelope for every endpoint.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes a JSON error envelope.
func Error(w http.ResponseWriter, status int, code, msg string) {
	JSON(w, status, ErrorResponse{Error: code, Message: msg})
}

// Err maps a classified error to its status and envelope. Internal errors are
// logged with their cause and reported to Sentry; the caller only sees a
// generic message.
func Err(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	code := apperr.CodeOf(err)
	if status == http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		telemetry.CaptureError(err, map[string]string{
			"operation": r.Method + " " + r.URL.Path,
		})
		code = apperr.CodeInternal
	}
	Error(w, status, code, apperr.PublicMessage(err))
}
