// health.go - liveness and readiness probes.
//
//	GET /health - liveness. Always 200 while the process runs.
//	GET /ready  - readiness. Pings Postgres and Redis; 503 when any is down.
//
// Both are mounted before any identity middleware.
package handlers

import (
	"context"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/foozao/lao-cinema-sub007/internal/respond"
)

type healthResponse struct {
	Status string            `json:"status"`           // "ok" | "degraded"
	Checks map[string]string `json:"checks,omitempty"` // only for /ready
}

// Liveness is the GET /health handler.
func Liveness(w http.ResponseWriter, _ *http.Request) {
	respond.JSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// Pinger checks one dependency. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RedisPinger adapts a go-redis client to Pinger.
type RedisPinger struct {
	Client goredis.Cmdable
}

func (p RedisPinger) PingContext(ctx context.Context) error {
	return p.Client.Ping(ctx).Err()
}

// Check is a named dependency for Readiness.
type Check struct {
	Name   string
	Pinger Pinger
}

// Readiness returns the GET /ready handler. With no checks it always
// reports ok (memory store, no Redis).
func Readiness(checks ...Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		results := make(map[string]string, len(checks))
		degraded := false
		for _, c := range checks {
			if err := c.Pinger.PingContext(ctx); err != nil {
				results[c.Name] = "error: " + err.Error()
				degraded = true
				continue
			}
			results[c.Name] = "ok"
		}

		status, code := "ok", http.StatusOK
		if degraded {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		respond.JSON(w, code, healthResponse{Status: status, Checks: results})
	}
}
