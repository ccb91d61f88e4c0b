// attack_test.go - adversarial input tests. Every validator that accepts
// free-form text must reject classic attack payloads without panicking.
package validate_test

import (
	"strings"
	"testing"

	"github.com/foozao/lao-cinema-sub007/internal/validate"
)

var attackPayloads = []struct {
	name  string
	value string
}{
	{"sql_injection_classic", "' OR 1=1 --"},
	{"sql_injection_union", "1 UNION SELECT token_hash FROM user_sessions--"},
	{"sql_injection_stacked", "1; DROP TABLE rentals;--"},
	{"xss_script", "<script>alert(1)</script>"},
	{"xss_event", `" onmouseover="alert(1)`},
	{"path_traversal_unix", "../../../etc/passwd"},
	{"path_traversal_win", `..\..\..\\windows\\system32`},
	{"path_traversal_encoded", "..%2F..%2Fetc%2Fpasswd"},
	{"null_byte_middle", "hello\x00world"},
	{"null_byte_start", "\x00admin"},
	{"long_string", strings.Repeat("A", 10001)},
	{"unicode_rtl", "‮ evil text"},
	{"format_string", "%s%s%s%s%s%s%s"},
}

func TestResourceIDAgainstAttacks(t *testing.T) {
	for _, tc := range attackPayloads {
		t.Run(tc.name, func(t *testing.T) {
			if err := validate.ResourceID("movieId", tc.value); err == nil {
				t.Errorf("ResourceID accepted attack payload %q", tc.value[:min(len(tc.value), 50)])
			}
		})
	}
}

func TestPromoCodeTagAgainstAttacks(t *testing.T) {
	type body struct {
		Code string `json:"code" validate:"required,promocode"`
	}
	for _, tc := range attackPayloads {
		t.Run(tc.name, func(t *testing.T) {
			if err := validate.Struct(body{Code: tc.value}); err == nil {
				t.Errorf("promocode tag accepted attack payload %q", tc.value[:min(len(tc.value), 50)])
			}
		})
	}
}

func TestPathTraversalAgainstAttacks(t *testing.T) {
	traversalCases := []string{
		"../../../etc/passwd",
		"hello\x00world",
		"admin\x00",
		"sub/../../secret",
		"./././../secret",
	}
	for _, v := range traversalCases {
		if err := validate.NoPathTraversal("path", v); err == nil {
			t.Errorf("NoPathTraversal accepted traversal payload %q", v)
		}
	}
}

func TestMaxLengthLargeInputs(t *testing.T) {
	if err := validate.MaxLength("field", strings.Repeat("x", 10000), 100); err == nil {
		t.Error("MaxLength should reject 10k-char string with max=100")
	}
	_ = validate.MaxLength("field", strings.Repeat("A", 100000), 200)
}

func TestNoNilPanic(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("validator panicked: %v", r)
		}
	}()

	_ = validate.NonEmptyString("f", "")
	_ = validate.MaxLength("f", "", 10)
	_ = validate.ResourceID("f", "")
	_ = validate.IntInRange("f", 0, 1, 10)
	_ = validate.NoPathTraversal("f", "")
	_ = validate.Struct(struct{}{})
}
