// fixtures.go - seed helpers for Postgres integration tests.
package testutil

import (
	"database/sql"
	"fmt"
	"testing"
	"time"
)

// SeedUser inserts a user with role and returns its id.
func SeedUser(t *testing.T, db *sql.DB, role string) string {
	t.Helper()
	var id string
	err := db.QueryRow(`
		INSERT INTO users (email, role) VALUES ($1, $2) RETURNING id
	`, fmt.Sprintf("test-%d@example.com", time.Now().UnixNano()), role).Scan(&id)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return id
}

// SeedSession stores the hash of a session token for userID.
func SeedSession(t *testing.T, db *sql.DB, tokenHash, userID string, expiresAt time.Time) {
	t.Helper()
	if _, err := db.Exec(`
		INSERT INTO user_sessions (token_hash, user_id, expires_at) VALUES ($1, $2, $3)
	`, tokenHash, userID, expiresAt); err != nil {
		t.Fatalf("seed session: %v", err)
	}
}

// SeedTier inserts an active pricing tier and returns its id.
func SeedTier(t *testing.T, db *sql.DB, priceLAK int64) string {
	t.Helper()
	var id string
	err := db.QueryRow(`
		INSERT INTO pricing_tiers (name_en, price_lak) VALUES ($1, $2) RETURNING id
	`, fmt.Sprintf("Tier %d", priceLAK), priceLAK).Scan(&id)
	if err != nil {
		t.Fatalf("seed tier: %v", err)
	}
	return id
}

// SeedMovie inserts a movie. tierID may be empty for an unpriced movie.
func SeedMovie(t *testing.T, db *sql.DB, title, tierID string) string {
	t.Helper()
	var tier sql.NullString
	if tierID != "" {
		tier = sql.NullString{String: tierID, Valid: true}
	}
	var id string
	if err := db.QueryRow(`
		INSERT INTO movies (title, pricing_tier_id) VALUES ($1, $2) RETURNING id
	`, title, tier).Scan(&id); err != nil {
		t.Fatalf("seed movie: %v", err)
	}
	return id
}

// SeedPack inserts a pack holding movieIDs in order.
func SeedPack(t *testing.T, db *sql.DB, title string, movieIDs ...string) string {
	t.Helper()
	var id string
	if err := db.QueryRow(`INSERT INTO short_packs (title) VALUES ($1) RETURNING id`, title).Scan(&id); err != nil {
		t.Fatalf("seed pack: %v", err)
	}
	for i, m := range movieIDs {
		if _, err := db.Exec(`
			INSERT INTO short_pack_items (pack_id, movie_id, sort_order) VALUES ($1, $2, $3)
		`, id, m, i); err != nil {
			t.Fatalf("seed pack item: %v", err)
		}
	}
	return id
}

// SeedVideoSource inserts a playable source for movieID.
func SeedVideoSource(t *testing.T, db *sql.DB, movieID, path string) string {
	t.Helper()
	var id string
	if err := db.QueryRow(`
		INSERT INTO video_sources (movie_id, path, quality) VALUES ($1, $2, '1080p') RETURNING id
	`, movieID, path).Scan(&id); err != nil {
		t.Fatalf("seed video source: %v", err)
	}
	return id
}

// CleanupMovie removes a movie and, by cascade, its rentals and progress.
func CleanupMovie(db *sql.DB, movieID string) {
	_, _ = db.Exec(`DELETE FROM movies WHERE id = $1`, movieID)
}

// CleanupUser removes a user and everything cascading from it.
func CleanupUser(db *sql.DB, userID string) {
	_, _ = db.Exec(`DELETE FROM users WHERE id = $1`, userID)
}
