// Package validate checks request input before it reaches the services.
//
// Request structs carry go-playground/validator tags and are checked with
// Struct; the field helpers cover values that arrive outside a body (path
// and query parameters).
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// ValidationError describes a single field validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// MultiError collects multiple validation errors for a single request.
type MultiError struct {
	Errors []ValidationError
}

// Add appends a validation error. If err is nil, Add is a no-op.
func (m *MultiError) Add(err error) {
	if err == nil {
		return
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		m.Errors = append(m.Errors, *ve)
	} else {
		m.Errors = append(m.Errors, ValidationError{Field: "request", Message: err.Error()})
	}
}

// HasErrors reports whether any errors have been collected.
func (m *MultiError) HasErrors() bool { return len(m.Errors) > 0 }

// Err returns m when it holds errors, else nil.
func (m *MultiError) Err() error {
	if !m.HasErrors() {
		return nil
	}
	return m
}

// Error returns a pipe-delimited summary of all errors.
func (m *MultiError) Error() string {
	parts := make([]string, len(m.Errors))
	for i, e := range m.Errors {
		parts[i] = e.Error()
	}
	return strings.Join(parts, " | ")
}

var (
	resourceIDRE = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_\-]{0,63}$`)
	promoCodeRE  = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_\-]{1,31}$`)
)

var (
	once sync.Once
	v    *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		v = validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("resourceid", func(fl validator.FieldLevel) bool {
			return resourceIDRE.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("promocode", func(fl validator.FieldLevel) bool {
			return promoCodeRE.MatchString(strings.TrimSpace(fl.Field().String()))
		})
	})
	return v
}

// Struct validates s against its `validate` tags. Failures come back as a
// *MultiError keyed by JSON field name.
func Struct(s interface{}) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	me := &MultiError{}
	for _, fe := range fieldErrs {
		me.Errors = append(me.Errors, ValidationError{Field: fe.Field(), Message: message(fe)})
	}
	return me
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "resourceid":
		return "must be a valid id"
	case "promocode":
		return "must be 2-32 letters, digits, hyphens or underscores"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gtfield":
		return "must be after " + fe.Param()
	default:
		return "is invalid"
	}
}

// NonEmptyString validates that value is not empty or whitespace-only.
func NonEmptyString(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Message: "must not be empty"}
	}
	return nil
}

// MaxLength validates that value does not exceed max rune count.
func MaxLength(field, value string, max int) error {
	if utf8.RuneCountInString(value) > max {
		return &ValidationError{Field: field, Message: fmt.Sprintf("must not exceed %d characters", max)}
	}
	return nil
}

// ResourceID validates a movie, pack or video-source id taken from a path.
// UUIDs and slugs pass; anything with separators, dots or control bytes
// does not.
func ResourceID(field, value string) error {
	if !resourceIDRE.MatchString(value) {
		return &ValidationError{Field: field, Message: "must be a valid id"}
	}
	return nil
}

// IntInRange validates that value is within [min, max] inclusive.
func IntInRange(field string, value, min, max int) error {
	if value < min || value > max {
		return &ValidationError{Field: field, Message: fmt.Sprintf("must be between %d and %d", min, max)}
	}
	return nil
}

// NoPathTraversal validates that value contains no path traversal sequences or null bytes.
func NoPathTraversal(field, value string) error {
	if strings.Contains(value, "..") || strings.ContainsRune(value, 0) {
		return &ValidationError{Field: field, Message: "must not contain path traversal sequences or null bytes"}
	}
	return nil
}
