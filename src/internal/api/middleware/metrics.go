package middleware

import (
	stderrors "errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/casapps/casrecipes/src/internal/errors"
	"github.com/casapps/casrecipes/src/internal/metrics"
)

// Metrics creates middleware for collecting HTTP metrics. Requests are
// labelled by route pattern, never by raw path.
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			metrics.HTTPRequestsInFlight.Inc()
			defer metrics.HTTPRequestsInFlight.Dec()

			start := time.Now()
			err := next(c)

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			metrics.RecordHTTPRequest(c.Request().Method, route, responseStatus(c, err), time.Since(start))
			return err
		}
	}
}

// responseStatus is the status the error handler will write for err
func responseStatus(c echo.Context, err error) int {
	if err == nil {
		return c.Response().Status
	}
	var customErr *errors.CustomError
	if stderrors.As(err, &customErr) {
		return customErr.StatusCode
	}
	var httpErr *echo.HTTPError
	if stderrors.As(err, &httpErr) {
		return httpErr.Code
	}
	return http.StatusInternalServerError
}
