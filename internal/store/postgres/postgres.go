// Package postgres implements the repositories on PostgreSQL through
// database/sql and lib/pq. Schema lives in db/migrations.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"

	"github.com/foozao/lao-cinema-sub007/internal/rental"
)

// Store is backed by a *sql.DB pool.
type Store struct {
	db *sql.DB
}

// New wraps an open pool.
func New(db *sql.DB) *Store { return &Store{db: db} }

// DB exposes the pool for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Open connects and pings with a 5s budget.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

func pgCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func isUniqueViolation(err error) bool { return pgCode(err) == pgerrcode.UniqueViolation }

// isMalformedID reports a uuid column compared against a non-uuid string.
// Lookups treat that as "no such row".
func isMalformedID(err error) bool { return pgCode(err) == pgerrcode.InvalidTextRepresentation }

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func nullTime(p *time.Time) sql.NullTime {
	if p == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *p, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	v := nt.Time
	return &v
}

// ownerColumns splits an owner into the (user_id, anonymous_id) pair.
func ownerColumns(o rental.Owner) (userID, anonymousID sql.NullString) {
	if o.IsUser() {
		return sql.NullString{String: o.UserID(), Valid: true}, sql.NullString{}
	}
	return sql.NullString{}, sql.NullString{String: o.AnonymousID(), Valid: true}
}

// ownerPredicate returns "user_id = $n" or "anonymous_id = $n" and the value
// to bind at $n.
func ownerPredicate(o rental.Owner, n int) (string, string) {
	if o.IsUser() {
		return fmt.Sprintf("user_id = $%d", n), o.UserID()
	}
	return fmt.Sprintf("anonymous_id = $%d", n), o.AnonymousID()
}

func ownerFromColumns(userID, anonymousID sql.NullString) rental.Owner {
	if userID.Valid {
		return rental.UserOwner(userID.String)
	}
	return rental.AnonymousOwner(anonymousID.String)
}
