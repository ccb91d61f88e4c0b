package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/foozao/lao-cinema-sub007/internal/access"
	"github.com/foozao/lao-cinema-sub007/internal/apperr"
	"github.com/foozao/lao-cinema-sub007/internal/catalog"
	"github.com/foozao/lao-cinema-sub007/internal/identity"
	"github.com/foozao/lao-cinema-sub007/internal/logger"
	"github.com/foozao/lao-cinema-sub007/internal/metrics"
	"github.com/foozao/lao-cinema-sub007/internal/payment"
	"github.com/foozao/lao-cinema-sub007/internal/pricing"
	"github.com/foozao/lao-cinema-sub007/internal/progress"
	"github.com/foozao/lao-cinema-sub007/internal/ratelimit"
	"github.com/foozao/lao-cinema-sub007/internal/rental"
	"github.com/foozao/lao-cinema-sub007/internal/validate"
	"github.com/foozao/lao-cinema-sub007/internal/videotoken"
	"github.com/foozao/lao-cinema-sub007/pkg/audit"
	"github.com/foozao/lao-cinema-sub007/pkg/streamlog"
	"github.com/foozao/lao-cinema-sub007/pkg/telemetry"
)

const maxBodyBytes = 1 << 20

// Server holds the dependencies of every route. Build it in main and mount
// Routes().
type Server struct {
	Logger   *slog.Logger
	Identity *identity.Resolver
	Catalog  catalog.Store
	Rentals  *rental.Service
	Access   *access.Resolver
	Pricing  *pricing.Resolver
	Progress *progress.Service
	Tokens   *videotoken.Service
	Payments payment.Provider
	// Limiter may be nil (rate limiting disabled).
	Limiter   *ratelimit.Limiter
	StreamLog *streamlog.SafeLogger
	// Audit may be nil (no audit trail).
	Audit audit.Recorder
	// ReadyChecks are pinged by GET /ready.
	ReadyChecks []Check

	VideoServerURL    string
	Currency          string
	TokenRateLimit    int
	PurchaseRateLimit int
	RequestTimeout    time.Duration
	Version           string
	Environment       string
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	timeout := s.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if s.StreamLog == nil {
		s.StreamLog = streamlog.New("video-token-validate")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.Middleware(s.Logger))
	r.Use(telemetry.PanicRecoveryMiddleware("api"))
	r.Use(metrics.Middleware)
	r.Use(middleware.Timeout(timeout))

	r.Get("/health", Liveness)
	r.Get("/ready", Readiness(s.ReadyChecks...))
	r.Get("/system/info", s.HandleSystemInfo)
	r.Handle("/metrics", metrics.Handler())

	tokens := s.Limiter.Middleware(ratelimit.Policy{Name: "video_tokens", Rate: s.TokenRateLimit, Window: time.Minute})
	purchases := s.Limiter.Middleware(ratelimit.Policy{Name: "purchases", Rate: s.PurchaseRateLimit, Window: time.Minute})

	r.Route("/video-tokens", func(r chi.Router) {
		r.With(s.Identity.RequireAuthOrAnonymous(), tokens).Post("/", s.createVideoToken)
		r.Group(func(r chi.Router) {
			r.Use(streamlog.Middleware(s.StreamLog, "/video-tokens/validate/"))
			r.Get("/validate", s.validateVideoToken)
			r.Get("/validate/{token}", s.validateVideoToken)
		})
	})

	r.Route("/rentals", func(r chi.Router) {
		r.With(s.Identity.Optional()).Get("/access/{movieId}", s.checkAccess)
		r.With(s.Identity.RequireAuth()).Post("/migrate", s.migrateAnonymous)
		r.Group(func(r chi.Router) {
			r.Use(s.Identity.RequireAuthOrAnonymous())
			r.Get("/", s.listRentals)
			r.With(purchases).Post("/movies/{movieId}", s.rentMovie)
			r.With(purchases).Post("/packs/{packId}", s.rentPack)
			r.Patch("/packs/{packId}/position", s.updatePackPosition)
		})
	})

	r.Get("/pricing/movies/{movieId}", s.movieQuote)
	r.Get("/pricing/packs/{packId}", s.packQuote)
	r.Post("/promo-codes/validate", s.validatePromoCode)

	r.Group(func(r chi.Router) {
		r.Use(s.Identity.RequireAuthOrAnonymous())
		r.Get("/watch-progress/{movieId}", s.getProgress)
		r.Put("/watch-progress/{movieId}", s.saveProgress)
	})

	r.Route("/admin", func(r chi.Router) {
		r.With(s.Identity.RequireEditorOrAdmin()).Get("/promo-codes", s.listPromoCodes)
		r.Group(func(r chi.Router) {
			r.Use(s.Identity.RequireAdmin())
			r.Post("/promo-codes", s.createPromoCode)
			r.Post("/video-tokens/revoke", s.revokeVideoToken)
			r.Post("/maintenance/anonymous-cleanup", s.cleanupAnonymous)
			r.Get("/audit-log", s.listAuditLog)
		})
	})

	return r
}

// decodeBody reads a JSON body into v and runs its validate tags.
func decodeBody(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return apperr.New(apperr.Invalid, apperr.CodeInvalidRequest, "could not read request body")
	}
	if len(body) == 0 {
		body = []byte("{}")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return apperr.New(apperr.Invalid, apperr.CodeInvalidRequest, "request body must be valid JSON")
	}
	if err := validate.Struct(v); err != nil {
		return apperr.Wrap(err, apperr.Invalid, apperr.CodeInvalidRequest, err.Error())
	}
	return nil
}

// pathID returns a validated id path parameter.
func pathID(r *http.Request, name string) (string, error) {
	id := chi.URLParam(r, name)
	if err := validate.ResourceID(name, id); err != nil {
		return "", apperr.Wrap(err, apperr.Invalid, apperr.CodeInvalidRequest, err.Error())
	}
	return id, nil
}
