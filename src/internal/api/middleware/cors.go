package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/spf13/viper"
)

// CORS returns a CORS middleware configured from settings
func CORS(cfg *viper.Viper) echo.MiddlewareFunc {
	allowedOrigins := cfg.GetStringSlice("cors.allowed_origins")
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	methods := cfg.GetString("cors.allowed_methods")
	headers := cfg.GetString("cors.allowed_headers")
	exposed := cfg.GetString("cors.exposed_headers")
	maxAge := strconv.Itoa(cfg.GetInt("cors.max_age"))

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			res := c.Response()
			origin := req.Header.Get(echo.HeaderOrigin)

			// Skip CORS for same-origin requests
			if origin == "" {
				return next(c)
			}

			if !originAllowed(allowedOrigins, origin) {
				return echo.NewHTTPError(http.StatusForbidden, "CORS: origin not allowed")
			}

			res.Header().Add(echo.HeaderVary, echo.HeaderOrigin)
			res.Header().Set(echo.HeaderAccessControlAllowOrigin, origin)
			res.Header().Set(echo.HeaderAccessControlAllowMethods, methods)
			res.Header().Set(echo.HeaderAccessControlAllowHeaders, headers)
			if exposed != "" {
				res.Header().Set(echo.HeaderAccessControlExposeHeaders, exposed)
			}
			res.Header().Set(echo.HeaderAccessControlMaxAge, maxAge)

			// Handle preflight requests
			if req.Method == http.MethodOptions {
				return c.NoContent(http.StatusNoContent)
			}

			return next(c)
		}
	}
}

func originAllowed(allowedOrigins []string, origin string) bool {
	for _, allowedOrigin := range allowedOrigins {
		if allowedOrigin == "*" || allowedOrigin == origin {
			return true
		}

		// Support wildcard subdomains
		if strings.HasPrefix(allowedOrigin, "*.") {
			domain := strings.TrimPrefix(allowedOrigin, "*")
			if strings.HasSuffix(origin, domain) {
				return true
			}
		}
	}
	return false
}
