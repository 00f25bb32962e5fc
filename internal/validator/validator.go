// Package validator wraps go-playground/validator with the tags and error
// messages used by request DTOs.
package validator

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const (
	ErrFieldRequired      = "is required"
	ErrFieldExceedsMaxLen = "exceeds maximum length"
	ErrFieldBelowMinLen   = "is below minimum length"
	ErrFieldExceedsMaxVal = "exceeds maximum value"
	ErrFieldBelowMinVal   = "is below minimum value"
	ErrInvalidFormat      = "has an invalid format"
	ErrUnknownValidation  = "is invalid"
)

var global = New()

// New builds a validator that reports fields by their JSON names and
// compares decimal.Decimal values numerically.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
	return v
}

func decimalValue(field reflect.Value) any {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		f, _ := d.Float64()
		return f
	}
	return nil
}

// Validate checks a struct and returns the first failure as a readable error.
func Validate(ctx context.Context, structure any) error {
	return parseValidationErrors(global.StructCtx(ctx, structure))
}

func parseValidationErrors(err error) error {
	if err == nil {
		return nil
	}
	var vErrors validator.ValidationErrors
	if !errors.As(err, &vErrors) || len(vErrors) == 0 {
		return err
	}
	ve := vErrors[0]

	var msg string
	switch ve.Tag() {
	case "required":
		msg = ErrFieldRequired
	case "max":
		msg = maxMessage(ve)
	case "min":
		msg = minMessage(ve)
	case "lt", "lte":
		msg = ErrFieldExceedsMaxVal
	case "gt", "gte":
		msg = ErrFieldBelowMinVal
	case "uuid", "email", "url", "oneof":
		msg = ErrInvalidFormat
	default:
		msg = ErrUnknownValidation
	}
	return fmt.Errorf("%s %s", ve.Field(), msg)
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func maxMessage(ve validator.FieldError) string {
	if isNumeric(ve.Kind()) {
		return fmt.Sprintf("must be at most %s", ve.Param())
	}
	return ErrFieldExceedsMaxLen
}

func minMessage(ve validator.FieldError) string {
	if isNumeric(ve.Kind()) {
		return fmt.Sprintf("must be at least %s", ve.Param())
	}
	return ErrFieldBelowMinLen
}
