package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/spf13/viper"
)

// Security returns security headers middleware. The API serves JSON and
// file downloads only, so the content security policy forbids everything.
func Security(cfg *viper.Viper) echo.MiddlewareFunc {
	hsts := cfg.GetBool("security.hsts")

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			res := c.Response()

			res.Header().Set("Content-Security-Policy", "default-src 'none'; img-src 'self'; frame-ancestors 'none'")
			res.Header().Set(echo.HeaderXContentTypeOptions, "nosniff")
			res.Header().Set(echo.HeaderXFrameOptions, "DENY")
			res.Header().Set(echo.HeaderReferrerPolicy, "strict-origin-when-cross-origin")

			// HSTS for HTTPS
			if hsts && (c.Request().TLS != nil || c.Request().Header.Get(echo.HeaderXForwardedProto) == "https") {
				res.Header().Set(echo.HeaderStrictTransportSecurity, "max-age=31536000; includeSubDomains")
			}

			return next(c)
		}
	}
}
