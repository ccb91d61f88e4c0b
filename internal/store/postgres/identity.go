package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/foozao/lao-cinema-sub007/internal/identity"
)

func (s *Store) FindSession(ctx context.Context, tokenHash string) (*identity.Session, error) {
	sess := identity.Session{TokenHash: tokenHash}
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, expires_at FROM user_sessions WHERE token_hash = $1
	`, tokenHash).Scan(&sess.UserID, &sess.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, identity.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *Store) DeleteSession(ctx context.Context, tokenHash string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM user_sessions WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return identity.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM user_sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) FindUser(ctx context.Context, id string) (*identity.User, error) {
	u := identity.User{ID: id}
	var role string
	err := s.db.QueryRowContext(ctx, `SELECT email, role FROM users WHERE id = $1`, id).Scan(&u.Email, &role)
	if errors.Is(err, sql.ErrNoRows) || isMalformedID(err) {
		return nil, identity.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Role = identity.Role(role)
	return &u, nil
}
