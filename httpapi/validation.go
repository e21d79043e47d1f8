package httpapi

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/ingestion"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterValidation("source_kind", func(fl validator.FieldLevel) bool {
		return core.SourceKind(fl.Field().String()).IsValid()
	})
	v.RegisterValidation("notblank_text", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// check validates body and wraps failures in ingestion.ErrInvalidInput.
// Messages name fields and rules, never values.
func (s *Server) check(body any) error {
	err := s.validate.Struct(body)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("%w: %s", ingestion.ErrInvalidInput, "request failed validation")
	}
	msgs := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		msgs = append(msgs, formatFieldError(e))
	}
	return fmt.Errorf("%w: %s", ingestion.ErrInvalidInput, strings.Join(msgs, "; "))
}

func formatFieldError(e validator.FieldError) string {
	field := e.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	switch e.Tag() {
	case "required", "notblank_text":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, e.Param())
	case "url":
		return fmt.Sprintf("%s must be an absolute URL", field)
	case "source_kind":
		return fmt.Sprintf("%s must be one of manual, webpage, file, api", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
