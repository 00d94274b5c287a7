package server

import (
	stderrors "errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"

	"github.com/casapps/casrecipes/src/internal/errors"
)

// JSONSerializer implements echo.JSONSerializer with goccy/go-json
type JSONSerializer struct{}

// Serialize encodes i into the response
func (JSONSerializer) Serialize(c echo.Context, i interface{}, indent string) error {
	enc := json.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

// Deserialize decodes the request body into i. Malformed bodies become
// field-level validation errors.
func (JSONSerializer) Deserialize(c echo.Context, i interface{}) error {
	err := json.NewDecoder(c.Request().Body).Decode(i)
	if err == nil {
		return nil
	}

	var typeErr *json.UnmarshalTypeError
	if stderrors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = errors.NonFieldErrors
		}
		return errors.NewValidationError(fmt.Sprintf("Expected a value of type %s.", typeErr.Type), field).WithCause(err)
	}
	var syntaxErr *json.SyntaxError
	if stderrors.As(err, &syntaxErr) {
		return errors.NewValidationError(fmt.Sprintf("JSON parse error at offset %d.", syntaxErr.Offset), errors.NonFieldErrors).WithCause(err)
	}
	return errors.NewValidationError("Malformed request body.", errors.NonFieldErrors).WithCause(err)
}
