// Package validation checks request contracts declared with struct tags.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	svcErr "github.com/IdrisKulubi/strath-mobile-sub004/internal/errors"
)

// Global validator instance; it caches struct metadata and is goroutine safe.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report json names so violations match what clients send
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Struct validates s and returns a *errors.ValidationError listing every
// violated field, or nil.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate request: %w", err)
	}

	vErr := &svcErr.ValidationError{}
	for _, fe := range fieldErrs {
		vErr.Fields = append(vErr.Fields, svcErr.FieldViolation{
			Field:   fe.Field(),
			Rule:    fe.Tag(),
			Message: formatFieldError(fe),
		})
	}
	return vErr
}

// formatFieldError converts validator errors to human-readable messages.
func formatFieldError(fe validator.FieldError) string {
	field := fe.Field()

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "uuid", "uuid4":
		return fmt.Sprintf("%s must be a valid id", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
