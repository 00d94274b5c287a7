package server

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/casapps/casrecipes/src/internal/errors"
)

// EchoValidator wraps go-playground/validator for Echo
type EchoValidator struct {
	validator *validator.Validate
}

// NewEchoValidator creates a new Echo validator. Field errors are reported
// under their JSON names.
func NewEchoValidator() *EchoValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return &EchoValidator{validator: v}
}

// Validate implements echo.Validator interface
func (ev *EchoValidator) Validate(i interface{}) error {
	if err := ev.validator.Struct(i); err != nil {
		return errors.FromValidator(err)
	}
	return nil
}
