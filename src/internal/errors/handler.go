package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/casapps/casrecipes/src/internal/logging"
)

// ErrorHandler renders every error returned by a handler as JSON
type ErrorHandler struct {
	production bool
}

// NewErrorHandler creates a new error handler. In production the message of
// a 500 response is never exposed.
func NewErrorHandler(production bool) *ErrorHandler {
	return &ErrorHandler{production: production}
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error      string                 `json:"error"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	RequestID  string                 `json:"request_id,omitempty"`
	Path       string                 `json:"path,omitempty"`
	Method     string                 `json:"method,omitempty"`
	StatusCode int                    `json:"status_code"`
}

// CustomError represents a custom application error
type CustomError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code"`
	StatusCode int                    `json:"status_code"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
}

// ErrorType represents different types of errors
type ErrorType string

const (
	ErrorTypeValidation     ErrorType = "validation_error"
	ErrorTypeDatabase       ErrorType = "database_error"
	ErrorTypeAuthentication ErrorType = "authentication_error"
	ErrorTypeAuthorization  ErrorType = "authorization_error"
	ErrorTypeNotFound       ErrorType = "not_found_error"
	ErrorTypeConflict       ErrorType = "conflict_error"
	ErrorTypeRateLimit      ErrorType = "rate_limit_error"
	ErrorTypeStorage        ErrorType = "storage_error"
	ErrorTypeServer         ErrorType = "server_error"
)

// Error implements the error interface
func (e *CustomError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *CustomError) Unwrap() error {
	return e.Cause
}

// NewCustomError creates a new custom error
func NewCustomError(errorType ErrorType, message, code string, statusCode int) *CustomError {
	return &CustomError{
		Type:       errorType,
		Message:    message,
		Code:       code,
		StatusCode: statusCode,
		Details:    make(map[string]interface{}),
	}
}

// WithCause adds a cause to the error
func (e *CustomError) WithCause(cause error) *CustomError {
	e.Cause = cause
	return e
}

// WithDetail adds a detail to the error
func (e *CustomError) WithDetail(key string, value interface{}) *CustomError {
	e.Details[key] = value
	return e
}

// Fields returns the field-level messages of a validation or conflict error
func (e *CustomError) Fields() map[string][]string {
	fields, _ := e.Details["fields"].(map[string][]string)
	return fields
}

// Common error constructors

// NewValidationError reports a single invalid field
func NewValidationError(message, field string) *CustomError {
	return ValidationErrors(map[string][]string{field: {message}})
}

// ValidationErrors reports several invalid fields at once
func ValidationErrors(fields map[string][]string) *CustomError {
	return NewCustomError(ErrorTypeValidation, "Validation failed", "VALIDATION_FAILED", http.StatusBadRequest).
		WithDetail("fields", fields)
}

func DatabaseError(message string, cause error) *CustomError {
	return NewCustomError(ErrorTypeDatabase, message, "DATABASE_ERROR", http.StatusInternalServerError).
		WithCause(cause)
}

func InternalError(message string, cause error) *CustomError {
	return NewCustomError(ErrorTypeServer, message, "INTERNAL_ERROR", http.StatusInternalServerError).
		WithCause(cause)
}

func NotFoundError(resource, id string) *CustomError {
	return NewCustomError(ErrorTypeNotFound, fmt.Sprintf("%s not found", resource), "NOT_FOUND", http.StatusNotFound).
		WithDetail("resource", resource).
		WithDetail("id", id)
}

func UnauthorizedError(message string) *CustomError {
	return NewCustomError(ErrorTypeAuthentication, message, "UNAUTHORIZED", http.StatusUnauthorized)
}

func ForbiddenError(message string) *CustomError {
	return NewCustomError(ErrorTypeAuthorization, message, "FORBIDDEN", http.StatusForbidden)
}

// ConflictError is a client error: the request collides with existing state
func ConflictError(message, field string) *CustomError {
	return NewCustomError(ErrorTypeConflict, message, "CONFLICT", http.StatusBadRequest).
		WithDetail("fields", map[string][]string{field: {message}})
}

func RateLimitError() *CustomError {
	return NewCustomError(ErrorTypeRateLimit, "Rate limit exceeded", "RATE_LIMITED", http.StatusTooManyRequests)
}

func StorageError(operation, message string, cause error) *CustomError {
	return NewCustomError(ErrorTypeStorage, message, "STORAGE_ERROR", http.StatusInternalServerError).
		WithDetail("operation", operation).
		WithCause(cause)
}

// IsNotFound reports whether err is a not found error
func IsNotFound(err error) bool {
	var ce *CustomError
	if stderrors.As(err, &ce) {
		return ce.Type == ErrorTypeNotFound
	}
	return stderrors.Is(err, gorm.ErrRecordNotFound)
}

// IsUniqueViolation reports whether a driver error is a unique-key violation
// on SQLite, PostgreSQL or MySQL.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "SQLSTATE 23505") ||
		strings.Contains(msg, "Duplicate entry")
}

// IsCheckViolation reports whether a driver error is a CHECK constraint failure
func IsCheckViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "CHECK constraint failed") ||
		strings.Contains(msg, "violates check constraint") ||
		strings.Contains(msg, "SQLSTATE 23514") ||
		strings.Contains(msg, "Check constraint")
}

// NonFieldErrors is the field key for errors that belong to no single field
const NonFieldErrors = "non_field_errors"

// uniqueField names the column a unique-key violation collided on. Keys that
// span several columns, or messages it cannot read, map to NonFieldErrors.
//
// SQLite lists the columns ("UNIQUE constraint failed: tags.slug"). PostgreSQL
// and MySQL name the index instead, which gorm calls idx_<table>_<column>.
func uniqueField(msg, resource string) string {
	const sqlitePrefix = "UNIQUE constraint failed: "
	if i := strings.Index(msg, sqlitePrefix); i >= 0 {
		cols := msg[i+len(sqlitePrefix):]
		if j := strings.Index(cols, " ("); j >= 0 {
			cols = cols[:j]
		}
		if strings.Contains(cols, ",") {
			return NonFieldErrors
		}
		if j := strings.LastIndex(cols, "."); j >= 0 {
			cols = cols[j+1:]
		}
		if cols = strings.TrimSpace(cols); cols != "" {
			return cols
		}
		return NonFieldErrors
	}

	index := quoted(msg, `unique constraint "`, `"`)
	if index == "" {
		index = quoted(msg, "for key '", "'")
		if j := strings.LastIndex(index, "."); j >= 0 {
			index = index[j+1:]
		}
	}
	table := strings.ToLower(resource) + "s"
	for _, prefix := range []string{"idx_" + table + "_", "uni_" + table + "_"} {
		if column := strings.TrimPrefix(index, prefix); column != index && column != "" {
			return column
		}
	}
	return NonFieldErrors
}

// quoted returns the text between start and the next end after it
func quoted(msg, start, end string) string {
	i := strings.Index(msg, start)
	if i < 0 {
		return ""
	}
	rest := msg[i+len(start):]
	j := strings.Index(rest, end)
	if j < 0 {
		return ""
	}
	return rest[:j]
}

// FromDB maps a gorm error onto the error the client should see
func FromDB(err error, resource string) error {
	if err == nil {
		return nil
	}

	var ce *CustomError
	if stderrors.As(err, &ce) {
		return ce
	}

	switch {
	case stderrors.Is(err, gorm.ErrRecordNotFound):
		return NotFoundError(resource, "")
	case IsUniqueViolation(err):
		field := uniqueField(err.Error(), resource)
		if field == NonFieldErrors {
			return ConflictError(fmt.Sprintf("%s already exists.", resource), field).WithCause(err)
		}
		return ConflictError(fmt.Sprintf("%s with this %s already exists.", resource, field), field).WithCause(err)
	case IsCheckViolation(err):
		return NewValidationError("value violates a constraint", strings.ToLower(resource)).WithCause(err)
	case strings.Contains(err.Error(), "FOREIGN KEY constraint failed"),
		strings.Contains(err.Error(), "violates foreign key constraint"):
		return NewValidationError("referenced resource does not exist", strings.ToLower(resource)).WithCause(err)
	}

	return DatabaseError(fmt.Sprintf("%s operation failed", strings.ToLower(resource)), err)
}

// HTTPErrorHandler handles HTTP errors for Echo
func (h *ErrorHandler) HTTPErrorHandler(err error, c echo.Context) {
	var (
		code    = http.StatusInternalServerError
		message = "Internal server error"
		details = make(map[string]interface{})
		errCode = "INTERNAL_ERROR"
	)

	requestID := c.Response().Header().Get(echo.HeaderXRequestID)
	if requestID == "" {
		requestID = c.Request().Header.Get(echo.HeaderXRequestID)
	}

	path := c.Request().URL.Path
	method := c.Request().Method

	var (
		ce      *CustomError
		he      *echo.HTTPError
		syntax  *json.SyntaxError
		typeErr *json.UnmarshalTypeError
	)
	switch {
	case stderrors.As(err, &ce):
		code = ce.StatusCode
		message = ce.Message
		errCode = ce.Code
		details = ce.Details

	case stderrors.As(err, &he):
		code = he.Code
		message = fmt.Sprintf("%v", he.Message)

		switch code {
		case http.StatusNotFound:
			errCode = "NOT_FOUND"
			message = "Resource not found"
		case http.StatusMethodNotAllowed:
			errCode = "METHOD_NOT_ALLOWED"
			message = "Method not allowed"
		case http.StatusBadRequest:
			errCode = "BAD_REQUEST"
		case http.StatusUnauthorized:
			errCode = "UNAUTHORIZED"
			message = "Authentication required"
		case http.StatusForbidden:
			errCode = "FORBIDDEN"
			message = "Access denied"
		case http.StatusRequestEntityTooLarge:
			errCode = "PAYLOAD_TOO_LARGE"
		}

	case stderrors.As(err, &syntax):
		code = http.StatusBadRequest
		message = "Invalid JSON format"
		errCode = "INVALID_JSON"
		details["offset"] = syntax.Offset

	case stderrors.As(err, &typeErr):
		code = http.StatusBadRequest
		message = "Invalid JSON value"
		errCode = "INVALID_JSON"
		details["fields"] = map[string][]string{typeErr.Field: {fmt.Sprintf("expected %s", typeErr.Type)}}
	}

	if code >= http.StatusInternalServerError {
		logging.Ctx(c.Request().Context()).Error().
			Err(err).
			Str("path", path).
			Str("method", method).
			Int("status", code).
			Msg("request failed")

		if h.production {
			message = "Internal server error"
			details = map[string]interface{}{"error_id": requestID}
		}
	}

	errorResponse := ErrorResponse{
		Error:      message,
		Message:    message,
		Code:       errCode,
		Details:    details,
		Timestamp:  time.Now().UTC(),
		RequestID:  requestID,
		Path:       path,
		Method:     method,
		StatusCode: code,
	}

	if !c.Response().Committed {
		if method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, errorResponse)
		}
		if err != nil {
			logging.Ctx(c.Request().Context()).Error().Err(err).Msg("failed to send error response")
		}
	}
}
