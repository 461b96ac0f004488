package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"marketplace/internal/domain"
)

// EntityValidator checks entities against their `validate` struct tags and
// reports violations with field names as they appear in JSON.
type EntityValidator struct {
	validate *validator.Validate
}

func NewEntityValidator() *EntityValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return &EntityValidator{validate: v}
}

func (v *EntityValidator) Validate(entity interface{}) []domain.Violation {
	err := v.validate.Struct(entity)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []domain.Violation{{Message: err.Error()}}
	}

	violations := make([]domain.Violation, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		violations = append(violations, domain.Violation{
			Field:   fe.Field(),
			Message: message(fe),
		})
	}
	return violations
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The field %s is required.", fe.Field())
	case "max":
		return fmt.Sprintf("The field %s may not be longer than %s characters.", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("The field %s must be greater than %s.", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("The field %s must be at least %s.", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("The field %s must be one of: %s.", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("The field %s is not valid.", fe.Field())
	}
}
