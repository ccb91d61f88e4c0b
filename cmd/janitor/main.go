// main.go - lao-cinema maintenance CLI.
//
// Usage:
//
//	janitor sessions                     - delete expired sessions
//	janitor anonymous --older-than 90d   - delete stale guest rentals and progress
//	janitor all                          - both, concurrently
//
// Connects to DATABASE_URL. Intended for a nightly cron job.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/foozao/lao-cinema-sub007/internal/rental"
	"github.com/foozao/lao-cinema-sub007/internal/store/postgres"
	"github.com/foozao/lao-cinema-sub007/pkg/logging"
)

// Backend is the storage the janitor cleans.
type Backend interface {
	rental.Janitor
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

type janitor struct {
	store Backend
	log   *logrus.Entry
	now   func() time.Time
}

func (j *janitor) sessions(ctx context.Context) error {
	n, err := j.store.DeleteExpiredSessions(ctx, j.now())
	if err != nil {
		return fmt.Errorf("delete expired sessions: %w", err)
	}
	j.log.WithField("deleted", n).Info("expired sessions removed")
	return nil
}

func (j *janitor) anonymous(ctx context.Context, olderThan time.Duration) error {
	res, err := j.store.DeleteStaleAnonymous(ctx, j.now().Add(-olderThan))
	if err != nil {
		return fmt.Errorf("delete stale anonymous data: %w", err)
	}
	j.log.WithFields(logrus.Fields{
		"rentals":        res.Rentals,
		"watch_progress": res.WatchProgress,
		"older_than":     olderThan.String(),
	}).Info("stale anonymous data removed")
	return nil
}

func (j *janitor) all(ctx context.Context, olderThan time.Duration) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return j.sessions(ctx) })
	g.Go(func() error { return j.anonymous(ctx, olderThan) })
	return g.Wait()
}

// parseAge accepts Go durations plus a day suffix ("90d").
func parseAge(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 1 {
			return 0, fmt.Errorf("invalid age %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid age %q", s)
	}
	return d, nil
}

// opener connects to storage. The returned func releases it.
type opener func(dsn string) (Backend, func() error, error)

func openPostgres(dsn string) (Backend, func() error, error) {
	db, err := postgres.Open(dsn)
	if err != nil {
		return nil, nil, err
	}
	return postgres.New(db), db.Close, nil
}

func newRootCmd(log *logrus.Entry, open opener) *cobra.Command {
	var (
		dsn       string
		olderThan string
		j         = &janitor{log: log, now: time.Now}
		release   func() error
	)

	root := &cobra.Command{
		Use:           "janitor",
		Short:         "Clean up expired lao-cinema data",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log.WithField("database", logging.RedactDSN(dsn)).Debug("connecting")
			st, closeFn, err := open(dsn)
			if err != nil {
				return fmt.Errorf("connect %s: %w", logging.RedactDSN(dsn), err)
			}
			j.store, release = st, closeFn
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if release == nil {
				return nil
			}
			return release()
		},
	}
	root.PersistentFlags().StringVar(&dsn, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection URL")

	ageFlag := func(c *cobra.Command) {
		c.Flags().StringVar(&olderThan, "older-than", "90d", "minimum age of anonymous data to delete (e.g. 90d, 720h)")
	}

	sessions := &cobra.Command{
		Use:   "sessions",
		Short: "Delete expired sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return j.sessions(cmd.Context())
		},
	}

	anonymous := &cobra.Command{
		Use:   "anonymous",
		Short: "Delete anonymous rentals and watch progress older than --older-than",
		RunE: func(cmd *cobra.Command, args []string) error {
			age, err := parseAge(olderThan)
			if err != nil {
				return err
			}
			return j.anonymous(cmd.Context(), age)
		},
	}
	ageFlag(anonymous)

	all := &cobra.Command{
		Use:   "all",
		Short: "Run every cleanup task",
		RunE: func(cmd *cobra.Command, args []string) error {
			age, err := parseAge(olderThan)
			if err != nil {
				return err
			}
			return j.all(cmd.Context(), age)
		},
	}
	ageFlag(all)

	root.AddCommand(sessions, anonymous, all)
	return root
}

func main() {
	_ = godotenv.Load()
	log := logging.NewLogger("janitor")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(log, openPostgres).ExecuteContext(ctx); err != nil {
		log.WithError(err).Error("janitor failed")
		stop()
		os.Exit(1)
	}
}

var _ Backend = (*postgres.Store)(nil)
