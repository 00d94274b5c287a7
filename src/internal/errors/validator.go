package errors

import (
	stderrors "errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator accumulates field errors for rules struct tags cannot express
type Validator struct {
	fields map[string][]string
}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{fields: make(map[string][]string)}
}

// HasErrors returns true if there are validation errors
func (v *Validator) HasErrors() bool {
	return len(v.fields) > 0
}

// AddError adds a validation error
func (v *Validator) AddError(field, message string) *Validator {
	v.fields[field] = append(v.fields[field], message)
	return v
}

// Merge folds the field errors of err into v. Errors that carry no field
// information are filed under "non_field_errors".
func (v *Validator) Merge(err error) *Validator {
	if err == nil {
		return v
	}
	var ce *CustomError
	if stderrors.As(err, &ce) && ce.Fields() != nil {
		for field, messages := range ce.Fields() {
			v.fields[field] = append(v.fields[field], messages...)
		}
		return v
	}
	return v.AddError(NonFieldErrors, err.Error())
}

// Required validates that a string field is not blank
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "This field is required.")
	}
	return v
}

// Email validates email format
func (v *Validator) Email(field, value string) *Validator {
	if value == "" {
		return v
	}
	if _, err := mail.ParseAddress(value); err != nil {
		v.AddError(field, "Enter a valid email address.")
	}
	return v
}

// MaxLength validates maximum string length
func (v *Validator) MaxLength(field, value string, max int) *Validator {
	if len([]rune(value)) > max {
		v.AddError(field, fmt.Sprintf("Ensure this field has no more than %d characters.", max))
	}
	return v
}

// Pattern validates string against regex pattern
func (v *Validator) Pattern(field, value string, pattern *regexp.Regexp, message string) *Validator {
	if value == "" {
		return v
	}
	if !pattern.MatchString(value) {
		v.AddError(field, message)
	}
	return v
}

// NotIn rejects values from a reserved list, case-insensitively
func (v *Validator) NotIn(field, value string, reserved []string) *Validator {
	for _, r := range reserved {
		if strings.EqualFold(value, r) {
			v.AddError(field, fmt.Sprintf("%q is a reserved name.", value))
			break
		}
	}
	return v
}

// CreateValidationError returns nil when no errors were recorded
func (v *Validator) CreateValidationError() error {
	if !v.HasErrors() {
		return nil
	}
	return ValidationErrors(v.fields)
}

// FromValidator translates go-playground validation errors into a field map.
// Other errors are returned unchanged.
func FromValidator(err error) error {
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return err
	}

	v := NewValidator()
	for _, fe := range verrs {
		v.AddError(fieldName(fe), tagMessage(fe))
	}
	return v.CreateValidationError()
}

// fieldName strips the struct name from the namespace: CreateRecipe.ingredients[0].amount
func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "min":
		if fe.Kind().String() == "slice" {
			return fmt.Sprintf("Ensure this field has at least %s elements.", fe.Param())
		}
		return fmt.Sprintf("Ensure this field has at least %s characters.", fe.Param())
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	case "gte":
		return fmt.Sprintf("Ensure this value is greater than or equal to %s.", fe.Param())
	case "lte":
		return fmt.Sprintf("Ensure this value is less than or equal to %s.", fe.Param())
	case "hexcolor":
		return "Enter a valid hex color."
	case "excludesall", "alphanumunicode", "username":
		return "Enter a valid value."
	default:
		return fmt.Sprintf("Failed on the %q rule.", fe.Tag())
	}
}
