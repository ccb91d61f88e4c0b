package validate_test

import (
	"errors"
	"testing"

	"github.com/foozao/lao-cinema-sub007/internal/validate"
)

func TestNonEmptyString(t *testing.T) {
	if err := validate.NonEmptyString("code", "hello"); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
	if err := validate.NonEmptyString("code", "   "); err == nil {
		t.Error("expected error for whitespace-only string")
	}
	if err := validate.NonEmptyString("code", ""); err == nil {
		t.Error("expected error for empty string")
	}
}

func TestMaxLength(t *testing.T) {
	if err := validate.MaxLength("code", "hello", 10); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
	if err := validate.MaxLength("code", "hello world!", 5); err == nil {
		t.Error("expected error for too-long string")
	}
}

func TestResourceID(t *testing.T) {
	for _, ok := range []string{"550e8400-e29b-41d4-a716-446655440000", "movie-1", "m1", "short_pack_2"} {
		if err := validate.ResourceID("movieId", ok); err != nil {
			t.Errorf("ResourceID(%q) = %v", ok, err)
		}
	}
	for _, bad := range []string{"", "-leading", "a/b", "a.b", "a b"} {
		if err := validate.ResourceID("movieId", bad); err == nil {
			t.Errorf("ResourceID(%q) accepted", bad)
		}
	}
}

func TestNoPathTraversal(t *testing.T) {
	if err := validate.NoPathTraversal("path", "hls/movie/master.m3u8"); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
	if err := validate.NoPathTraversal("path", "../../../etc/passwd"); err == nil {
		t.Error("expected error for path traversal")
	}
	if err := validate.NoPathTraversal("path", "file\x00name"); err == nil {
		t.Error("expected error for null byte")
	}
}

func TestIntInRange(t *testing.T) {
	if err := validate.IntInRange("percent", 5, 1, 100); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
	if err := validate.IntInRange("percent", 0, 1, 100); err == nil {
		t.Error("expected error for below minimum")
	}
	if err := validate.IntInRange("percent", 101, 1, 100); err == nil {
		t.Error("expected error for above maximum")
	}
}

func TestMultiError(t *testing.T) {
	var me validate.MultiError
	if me.HasErrors() || me.Err() != nil {
		t.Error("expected no errors initially")
	}
	me.Add(validate.NonEmptyString("code", ""))
	me.Add(validate.ResourceID("movieId", "../x"))
	me.Add(nil) // no-op
	me.Add(errors.New("body is not JSON"))
	if len(me.Errors) != 3 {
		t.Errorf("expected 3 errors, got %d", len(me.Errors))
	}
	if me.Errors[2].Field != "request" {
		t.Errorf("plain errors should be filed under request, got %q", me.Errors[2].Field)
	}
}

type purchase struct {
	MovieID       string `json:"movieId" validate:"required,resourceid"`
	TransactionID string `json:"transactionId" validate:"required,max=255"`
	PromoCode     string `json:"promoCode,omitempty" validate:"omitempty,promocode"`
	Percent       int    `json:"percent" validate:"gte=0,lte=100"`
}

func TestStruct(t *testing.T) {
	ok := purchase{MovieID: "m1", TransactionID: "demo_1", PromoCode: "launch20", Percent: 20}
	if err := validate.Struct(ok); err != nil {
		t.Fatalf("valid struct rejected: %v", err)
	}

	err := validate.Struct(purchase{MovieID: "../etc", PromoCode: "no spaces!", Percent: 150})
	var me *validate.MultiError
	if !errors.As(err, &me) {
		t.Fatalf("expected *MultiError, got %T %v", err, err)
	}
	fields := map[string]bool{}
	for _, e := range me.Errors {
		fields[e.Field] = true
	}
	for _, f := range []string{"movieId", "transactionId", "promoCode", "percent"} {
		if !fields[f] {
			t.Errorf("missing error for %s in %v", f, me.Errors)
		}
	}
}
