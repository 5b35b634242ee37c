// Package validate checks request structs with validator tags and
// reports failures as validation errors.
package validate

import (
	"errors"
	"fmt"
	"strings"

	"ms-boxoffice/internal/apperr"

	"github.com/go-playground/validator/v10"
)

var v = validator.New()

// Struct validates s and returns an *apperr.Error naming every failing field.
func Struct(s interface{}) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperr.Wrap(apperr.KindValidation, apperr.CodeInvalidInput, "invalid request", err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}
	code := apperr.CodeInvalidInput
	if len(fieldErrs) == 1 && fieldErrs[0].Field() == "Quantity" {
		code = apperr.CodeInvalidQuantity
	}
	return apperr.Validation(code, strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}
