// main.go - lao-cinema API.
// Rentals, pricing, promo codes, watch progress and signed video tokens.
// Port: 3001 (env: PORT).
//
// Storage is PostgreSQL (STORE=postgres, default) or in-process
// (STORE=memory, local runs only). REDIS_URL, when set, backs rate limiting
// and video token revocation; without it both are disabled.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/foozao/lao-cinema-sub007/internal/access"
	"github.com/foozao/lao-cinema-sub007/internal/catalog"
	"github.com/foozao/lao-cinema-sub007/internal/config"
	"github.com/foozao/lao-cinema-sub007/internal/handlers"
	"github.com/foozao/lao-cinema-sub007/internal/identity"
	"github.com/foozao/lao-cinema-sub007/internal/logger"
	"github.com/foozao/lao-cinema-sub007/internal/payment"
	"github.com/foozao/lao-cinema-sub007/internal/pricing"
	"github.com/foozao/lao-cinema-sub007/internal/progress"
	"github.com/foozao/lao-cinema-sub007/internal/ratelimit"
	"github.com/foozao/lao-cinema-sub007/internal/rental"
	"github.com/foozao/lao-cinema-sub007/internal/shutdown"
	"github.com/foozao/lao-cinema-sub007/internal/store/memory"
	"github.com/foozao/lao-cinema-sub007/internal/store/postgres"
	"github.com/foozao/lao-cinema-sub007/internal/videotoken"
	"github.com/foozao/lao-cinema-sub007/pkg/audit"
	"github.com/foozao/lao-cinema-sub007/pkg/logging"
	"github.com/foozao/lao-cinema-sub007/pkg/streamlog"
	"github.com/foozao/lao-cinema-sub007/pkg/telemetry"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// backend is everything the services need from storage. Both the postgres
// and the memory store satisfy it.
type backend interface {
	catalog.Store
	identity.SessionStore
	identity.UserStore
	rental.Repository
	rental.Migrator
	rental.Janitor
	pricing.TierStore
	pricing.PromoStore
	progress.Store
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "api:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := logger.New(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(log)

	if err := telemetry.InitSentry(cfg.SentryDSN, "api", cfg.Environment, version); err != nil {
		log.Warn("sentry disabled", "error", err)
	}

	var hooks []shutdown.Hook
	var ready []handlers.Check

	var st backend
	var auditLog audit.Recorder
	switch cfg.Store {
	case config.StoreMemory:
		log.Warn("using in-memory store; data is lost on restart")
		st = memory.New()
		auditLog = audit.NewMemoryRecorder()
	default:
		db, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("postgres %s: %w", logging.RedactDSN(cfg.DatabaseURL), err)
		}
		st = postgres.New(db)
		auditLog = audit.NewSQLRecorder(db)
		ready = append(ready, handlers.Check{Name: "postgres", Pinger: db})
		hooks = append(hooks, closeHook("postgres", db))
	}

	limiter := ratelimit.New(nil)
	tokenOpts := []videotoken.Option{videotoken.WithTTL(cfg.VideoTokenTTL)}
	if cfg.RedisURL != "" {
		opts, err := goredis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("REDIS_URL: %w", err)
		}
		rdb := goredis.NewClient(opts)
		limiter = ratelimit.New(ratelimit.NewRedisStore(rdb))
		tokenOpts = append(tokenOpts, videotoken.WithBlocklist(videotoken.NewRedisBlocklist(rdb)))
		ready = append(ready, handlers.Check{Name: "redis", Pinger: handlers.RedisPinger{Client: rdb}})
		hooks = append(hooks, shutdown.Hook{Name: "redis", Close: func(context.Context) error { return rdb.Close() }})
	} else {
		log.Info("REDIS_URL not set; rate limiting and token revocation disabled")
	}

	tokens, err := videotoken.New(cfg.VideoTokenSecret, tokenOpts...)
	if err != nil {
		return err
	}

	payments, err := newPaymentProvider(cfg, log)
	if err != nil {
		return err
	}
	log.Info("payment provider ready", "provider", payments.Name())

	srv := &handlers.Server{
		Logger:            log,
		Identity:          identity.NewResolver(st, st, identity.WithCookieName(cfg.SessionCookieName)),
		Catalog:           st,
		Rentals:           rental.NewService(st, st, st, cfg.RentalDuration, rental.WithJanitor(st)),
		Access:            access.NewResolver(st, st),
		Pricing:           pricing.NewResolver(st, st, st),
		Progress:          progress.NewService(st, st),
		Tokens:            tokens,
		Payments:          payments,
		Limiter:           limiter,
		StreamLog:         streamlog.New("video-token-validate"),
		Audit:             auditLog,
		ReadyChecks:       ready,
		VideoServerURL:    cfg.VideoServerURL,
		Currency:          cfg.Currency,
		TokenRateLimit:    cfg.TokenRateLimit,
		PurchaseRateLimit: cfg.PurchaseRateLimit,
		Version:           version,
		Environment:       cfg.Environment,
	}

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	hooks = append(hooks, shutdown.Hook{Name: "sentry", Close: func(context.Context) error {
		telemetry.Flush()
		return nil
	}})

	log.Info("lao-cinema api starting", "port", cfg.Port, "env", cfg.Environment, "store", cfg.Store, "version", version)
	return shutdown.GracefulServe(httpSrv, 15*time.Second, log, hooks...)
}

func newPaymentProvider(cfg *config.Config, log *slog.Logger) (payment.Provider, error) {
	if cfg.PaymentProvider != "stripe" {
		return payment.NewDemo(), nil
	}
	sp, err := payment.NewStripe(cfg.StripeSecretKey)
	if err != nil {
		return nil, err
	}
	log.Info("stripe configured", "key_prefix", sp.KeyPrefix(), "test_mode", sp.IsTestMode())
	if cfg.IsProduction() && sp.IsTestMode() {
		log.Warn("stripe test key in production")
	}
	return sp, nil
}

func closeHook(name string, db *sql.DB) shutdown.Hook {
	return shutdown.Hook{Name: name, Close: func(context.Context) error { return db.Close() }}
}
