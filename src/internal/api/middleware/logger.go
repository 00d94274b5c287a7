package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/casapps/casrecipes/src/internal/logging"
)

// RequestID reuses the client's X-Request-ID or generates one, echoes it on
// the response and stores it in the request context for logging.Ctx.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			id := req.Header.Get(echo.HeaderXRequestID)
			if id == "" || len(id) > 128 {
				id = logging.NewRequestID()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, id)
			c.SetRequest(req.WithContext(logging.ContextWithRequestID(req.Context(), id)))
			return next(c)
		}
	}
}

// RequestLogger logs one structured line per request
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := responseStatus(c, err)
			req := c.Request()
			event := logging.Ctx(req.Context()).Info()
			if status >= 500 {
				event = logging.Ctx(req.Context()).Error().Err(err)
			}
			event.
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Str("route", c.Path()).
				Int("status", status).
				Dur("latency", time.Since(start)).
				Str("remote_ip", c.RealIP()).
				Msg("request")
			return err
		}
	}
}
