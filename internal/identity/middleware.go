// middleware.go - route-level access modes.
package identity

import (
	"context"
	"net/http"

	"github.com/foozao/lao-cinema-sub007/internal/apperr"
	"github.com/foozao/lao-cinema-sub007/internal/metrics"
	"github.com/foozao/lao-cinema-sub007/internal/respond"
)

type ctxKey struct{}

type ctxValue struct {
	identity    Identity
	anonymousID string
}

// Mode is a route's identity policy.
type Mode int

const (
	// Optional never blocks; the identity may be absent.
	Optional Mode = iota
	// Required blocks unless a valid session was found.
	Required
	// RequiredOrAnonymous blocks only when neither a session nor an
	// anonymous id is present.
	RequiredOrAnonymous
)

// Middleware resolves the identity and enforces mode.
func (res *Resolver) Middleware(mode Mode) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result, err := res.Resolve(r.Context(), r)
			if err != nil {
				respond.Err(w, r, apperr.Internalf(err, "resolve identity"))
				return
			}
			metrics.IdentityResolutions.WithLabelValues(kindLabel(result.Identity)).Inc()

			switch mode {
			case Required:
				if !result.Identity.IsUser() {
					unauthenticated(w)
					return
				}
			case RequiredOrAnonymous:
				if result.Identity.IsZero() {
					unauthenticated(w)
					return
				}
			}

			ctx := context.WithValue(r.Context(), ctxKey{}, ctxValue{
				identity:    result.Identity,
				anonymousID: result.AnonymousID,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Optional, RequireAuth and RequireAuthOrAnonymous are shorthands for Middleware.
func (res *Resolver) Optional() func(http.Handler) http.Handler { return res.Middleware(Optional) }
func (res *Resolver) RequireAuth() func(http.Handler) http.Handler {
	return res.Middleware(Required)
}
func (res *Resolver) RequireAuthOrAnonymous() func(http.Handler) http.Handler {
	return res.Middleware(RequiredOrAnonymous)
}

// RequireRole requires a valid session whose user holds one of roles.
// No session → 401; wrong role → 403.
func (res *Resolver) RequireRole(roles ...Role) func(http.Handler) http.Handler {
	auth := res.Middleware(Required)
	return func(next http.Handler) http.Handler {
		return auth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !FromContext(r.Context()).HasRole(roles...) {
				respond.Error(w, http.StatusForbidden, apperr.CodeForbidden, "Insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}

func (res *Resolver) RequireEditor() func(http.Handler) http.Handler {
	return res.RequireRole(RoleEditor)
}

func (res *Resolver) RequireAdmin() func(http.Handler) http.Handler {
	return res.RequireRole(RoleAdmin)
}

func (res *Resolver) RequireEditorOrAdmin() func(http.Handler) http.Handler {
	return res.RequireRole(RoleEditor, RoleAdmin)
}

// FromContext returns the identity injected by Middleware, or the absent
// identity.
func FromContext(ctx context.Context) Identity {
	if v, ok := ctx.Value(ctxKey{}).(ctxValue); ok {
		return v.identity
	}
	return Identity{}
}

// AnonymousIDFromContext returns the raw x-anonymous-id seen by Middleware,
// even when a session took precedence.
func AnonymousIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKey{}).(ctxValue); ok {
		return v.anonymousID
	}
	return ""
}

// NewContext returns ctx carrying id. Used by tests and background callers.
func NewContext(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, ctxValue{identity: id, anonymousID: id.AnonymousID()})
}

func unauthenticated(w http.ResponseWriter) {
	respond.Error(w, http.StatusUnauthorized, apperr.CodeUnauthenticated, "Authentication required")
}

func kindLabel(id Identity) string {
	switch id.Kind() {
	case KindUser:
		return "user"
	case KindAnonymous:
		return "anonymous"
	default:
		return "none"
	}
}
