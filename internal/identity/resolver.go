// resolver.go - session / anonymous-id resolution.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// AnonymousHeader carries the client-generated anonymous device id.
const AnonymousHeader = "X-Anonymous-Id"

// DefaultCookieName is the HttpOnly cookie that may carry the session token.
const DefaultCookieName = "session_token"

// SessionStore looks up and deletes sessions by token hash.
type SessionStore interface {
	FindSession(ctx context.Context, tokenHash string) (*Session, error)
	DeleteSession(ctx context.Context, tokenHash string) error
}

// SessionSweeper bulk-deletes expired sessions. Lazy deletion in Resolve only
// catches sessions that are presented again; the maintenance job runs this.
type SessionSweeper interface {
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// UserStore looks up users by id.
type UserStore interface {
	FindUser(ctx context.Context, id string) (*User, error)
}

// Result is the outcome of resolving a request.
type Result struct {
	// Identity drives authorization: the user when a valid session was found,
	// otherwise the anonymous device, otherwise absent.
	Identity Identity
	// AnonymousID is the raw x-anonymous-id header, kept even when a session
	// won so guest data can be migrated after login.
	AnonymousID string
}

// Resolver extracts identities from requests.
type Resolver struct {
	sessions   SessionStore
	users      UserStore
	cookieName string
	now        func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithCookieName overrides the session cookie name.
func WithCookieName(name string) Option {
	return func(r *Resolver) {
		if name != "" {
			r.cookieName = name
		}
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// NewResolver returns a Resolver backed by the given stores.
func NewResolver(sessions SessionStore, users UserStore, opts ...Option) *Resolver {
	r := &Resolver{
		sessions:   sessions,
		users:      users,
		cookieName: DefaultCookieName,
		now:        time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve returns the caller's identity. The only mutation is deleting an
// expired session that was presented.
func (res *Resolver) Resolve(ctx context.Context, r *http.Request) (Result, error) {
	out := Result{AnonymousID: strings.TrimSpace(r.Header.Get(AnonymousHeader))}

	if token := res.sessionToken(r); token != "" {
		user, err := res.userForToken(ctx, token)
		if err != nil {
			return out, err
		}
		if user != nil {
			out.Identity = UserIdentity(user.ID, user.Role)
			return out, nil
		}
	}

	if out.AnonymousID != "" {
		out.Identity = AnonymousIdentity(out.AnonymousID)
	}
	return out, nil
}

// userForToken returns nil without error when the token does not map to a
// live session of an existing user.
func (res *Resolver) userForToken(ctx context.Context, token string) (*User, error) {
	hash := HashToken(token)
	sess, err := res.sessions.FindSession(ctx, hash)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}

	if !res.now().Before(sess.ExpiresAt) {
		if err := res.sessions.DeleteSession(ctx, hash); err != nil && !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("delete expired session: %w", err)
		}
		return nil, nil
	}

	user, err := res.users.FindUser(ctx, sess.UserID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

// sessionToken pulls the token from "Authorization: Bearer <token>" or the
// session cookie.
func (res *Resolver) sessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			if t := strings.TrimSpace(parts[1]); t != "" {
				return t
			}
		}
	}
	if c, err := r.Cookie(res.cookieName); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}
