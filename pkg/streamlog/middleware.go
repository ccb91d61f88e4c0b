// middleware.go - request logging for stream endpoints using only the
// allowlisted fields.
//
//	r.With(streamlog.Middleware(sl, "/video-tokens/validate")).Get(...)
package streamlog

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// Middleware logs each request with status, method, path prefix and
// duration. prefix overrides the derived path prefix when non-empty.
func Middleware(sl *SafeLogger, prefix string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := middleware.GetReqID(r.Context())
			if reqID == "" {
				reqID = uuid.NewString()
			}

			rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			p := prefix
			if p == "" {
				p = safePathPrefix(r.URL.Path)
			}
			sl.Log(Fields{
				"request_id":  reqID,
				"status":      rec.status,
				"method":      r.Method,
				"path_prefix": p,
				"duration_ms": time.Since(start).Milliseconds(),
			})
		})
	}
}

type responseRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *responseRecorder) WriteHeader(status int) {
	if r.wroteHeader {
		return
	}
	r.status = status
	r.wroteHeader = true
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.ResponseWriter.Write(b)
}

// safePathPrefix keeps the first two segments:
// "/video-tokens/validate/eyJ..." → "/video-tokens/validate/".
func safePathPrefix(path string) string {
	parts := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 3)
	switch len(parts) {
	case 0, 1:
		return "/" + parts[0]
	default:
		return "/" + parts[0] + "/" + parts[1] + "/"
	}
}
