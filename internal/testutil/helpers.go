// helpers.go - HTTP test helpers for calling handlers.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

// Caller is who a request is made as. Empty fields are not sent.
type Caller struct {
	Token       string
	AnonymousID string
}

// Do sends method/path with an optional JSON body as caller.
func Do(t *testing.T, handler http.Handler, method, path string, body interface{}, as Caller) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if as.Token != "" {
		req.Header.Set("Authorization", "Bearer "+as.Token)
	}
	if as.AnonymousID != "" {
		req.Header.Set("X-Anonymous-Id", as.AnonymousID)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// PostJSON makes a POST request with a JSON body as caller.
func PostJSON(t *testing.T, handler http.Handler, path string, body interface{}, as Caller) *httptest.ResponseRecorder {
	t.Helper()
	return Do(t, handler, http.MethodPost, path, body, as)
}

// GetJSON makes a GET request as caller.
func GetJSON(t *testing.T, handler http.Handler, path string, as Caller) *httptest.ResponseRecorder {
	t.Helper()
	return Do(t, handler, http.MethodGet, path, nil, as)
}

// DecodeJSON decodes the response body into v.
func DecodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	body, err := io.ReadAll(rr.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		t.Fatalf("decode JSON response (status %d, body: %s): %v", rr.Code, string(body), err)
	}
}

// AssertStatus fails the test if the response code does not match expected.
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rr.Code != expected {
		t.Errorf("expected status %d, got %d (body: %s)", expected, rr.Code, rr.Body.String())
	}
}

// ErrorCode decodes the {"error": CODE} envelope.
func ErrorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error envelope (status %d, body: %s): %v", rr.Code, rr.Body.String(), err)
	}
	return env.Error
}
