package domain

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// FieldError represents a single field's validation error.
type FieldError struct {
	Field string `json:"field"`
	Msg   string `json:"message"`
}

func (e FieldError) Error() string { return fmt.Sprintf("%s: %s", e.Field, e.Msg) }

// ValidationError carries every failing field of one operation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, fe := range e.Fields {
		parts = append(parts, fe.Error())
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Invalid wraps field errors into a ValidationError, or returns nil when
// there are none.
func Invalid(errs []FieldError) error {
	if len(errs) == 0 {
		return nil
	}
	return &ValidationError{Fields: errs}
}

// Validate checks the invariants every stored event must satisfy.
func (e *Event) Validate() []FieldError {
	var errs []FieldError

	if strings.TrimSpace(e.Title) == "" {
		errs = append(errs, FieldError{"title", "required"})
	} else if len(e.Title) > MaxTitleLen {
		errs = append(errs, FieldError{"title", fmt.Sprintf("max length %d", MaxTitleLen)})
	}
	if len(e.Location) > MaxLocationLen {
		errs = append(errs, FieldError{"location", fmt.Sprintf("max length %d", MaxLocationLen)})
	}

	if e.Start.IsZero() {
		errs = append(errs, FieldError{"start", "required"})
	}
	if e.End.IsZero() {
		errs = append(errs, FieldError{"end", "required"})
	}
	if !e.Start.IsZero() && !e.End.IsZero() && !e.Start.Before(e.End) {
		errs = append(errs, FieldError{"end", "must be after start"})
	}

	if e.HostID == nil && e.ParentOrgID == nil {
		errs = append(errs, FieldError{"host", "either host or parentOrg is required"})
	}
	if (e.Lat == nil) != (e.Long == nil) {
		errs = append(errs, FieldError{"lat", "lat and long must be given together"})
	}
	if len(e.Tags) > MaxTagsCount {
		errs = append(errs, FieldError{"tags", fmt.Sprintf("max %d items", MaxTagsCount)})
	}
	return errs
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// structErrors runs the struct-tag validation and converts failures to
// FieldErrors keyed by JSON field path.
func structErrors(v any) []FieldError {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{"body", err.Error()}}
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fieldPath(fe), Msg: describe(fe)})
	}
	return out
}

// fieldPath strips the struct name from the validator namespace,
// e.g. "CreateEventInput.tags[2]" -> "tags[2]".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "max":
		return "max length " + fe.Param()
	case "email":
		return "must be a valid email"
	case "gte", "min":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	default:
		return "failed " + fe.Tag() + " check"
	}
}

// parseTime coerces an RFC 3339 timestamp into UTC.
func parseTime(field, s string) (time.Time, *FieldError) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, &FieldError{field, "invalid datetime format, expected RFC 3339"}
	}
	return t.UTC(), nil
}
