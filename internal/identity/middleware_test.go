package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func serve(t *testing.T, mw func(http.Handler) http.Handler, setup func(*http.Request)) (*httptest.ResponseRecorder, Identity) {
	t.Helper()
	var seen Identity
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if setup != nil {
		setup(req)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr, seen
}

func withBearer(tok string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }
}

func withAnon(id string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set(AnonymousHeader, id) }
}

func setupResolver() *Resolver {
	f := newFakeStore()
	f.users["plain"] = User{ID: "plain", Role: RoleUser}
	f.users["ed"] = User{ID: "ed", Role: RoleEditor}
	f.users["boss"] = User{ID: "boss", Role: RoleAdmin}
	f.addSession("plain-tok", "plain", fixedNow.Add(time.Hour))
	f.addSession("ed-tok", "ed", fixedNow.Add(time.Hour))
	f.addSession("boss-tok", "boss", fixedNow.Add(time.Hour))
	return newTestResolver(f)
}

func TestOptional_NeverBlocks(t *testing.T) {
	res := setupResolver()
	rr, id := serve(t, res.Optional(), nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if !id.IsZero() {
		t.Errorf("expected absent identity, got %v", id)
	}
}

func TestRequireAuth(t *testing.T) {
	res := setupResolver()

	rr, _ := serve(t, res.RequireAuth(), withAnon("device"))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("anonymous caller: expected 401, got %d", rr.Code)
	}

	rr, id := serve(t, res.RequireAuth(), withBearer("plain-tok"))
	if rr.Code != http.StatusNoContent || id.UserID() != "plain" {
		t.Errorf("session caller: got %d %v", rr.Code, id)
	}
}

func TestRequireAuthOrAnonymous(t *testing.T) {
	res := setupResolver()

	rr, _ := serve(t, res.RequireAuthOrAnonymous(), nil)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("no identity: expected 401, got %d", rr.Code)
	}

	rr, id := serve(t, res.RequireAuthOrAnonymous(), withAnon("device"))
	if rr.Code != http.StatusNoContent || id.AnonymousID() != "device" {
		t.Errorf("anonymous: got %d %v", rr.Code, id)
	}
}

func TestRoleGates(t *testing.T) {
	res := setupResolver()
	cases := []struct {
		name string
		mw   func(http.Handler) http.Handler
		tok  string
		want int
	}{
		{"admin/no session", res.RequireAdmin(), "", http.StatusUnauthorized},
		{"admin/plain user", res.RequireAdmin(), "plain-tok", http.StatusForbidden},
		{"admin/editor", res.RequireAdmin(), "ed-tok", http.StatusForbidden},
		{"admin/admin", res.RequireAdmin(), "boss-tok", http.StatusNoContent},
		{"editor/editor", res.RequireEditor(), "ed-tok", http.StatusNoContent},
		{"editor/admin", res.RequireEditor(), "boss-tok", http.StatusForbidden},
		{"either/editor", res.RequireEditorOrAdmin(), "ed-tok", http.StatusNoContent},
		{"either/admin", res.RequireEditorOrAdmin(), "boss-tok", http.StatusNoContent},
		{"either/plain", res.RequireEditorOrAdmin(), "plain-tok", http.StatusForbidden},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var setup func(*http.Request)
			if c.tok != "" {
				setup = withBearer(c.tok)
			}
			rr, _ := serve(t, c.mw, setup)
			if rr.Code != c.want {
				t.Errorf("expected %d, got %d", c.want, rr.Code)
			}
		})
	}
}

func TestMiddleware_StoreFailureIs500(t *testing.T) {
	f := newFakeStore()
	f.failFinds = true
	res := newTestResolver(f)
	rr, _ := serve(t, res.Optional(), withBearer("x"))
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rr.Code)
	}
}
