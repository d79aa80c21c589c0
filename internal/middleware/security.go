package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"webrtc-relay/internal/model"
)

// StripHopByHop removes connection-scoped headers from every inbound request
// before any handler sees them.
func StripHopByHop() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			model.RemoveHopByHop(c.Request().Header)
			return next(c)
		}
	}
}

// SecurityHeaders returns an Echo middleware that adds security headers to
// responses the relay produces itself. Requests matched by skipper are left
// alone so relayed backend responses go out unchanged.
func SecurityHeaders(skipper echomw.Skipper) echo.MiddlewareFunc {
	if skipper == nil {
		skipper = echomw.DefaultSkipper
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipper(c) {
				return next(c)
			}

			// Set before next: static files and relayed bodies commit headers
			// on first write.
			c.Response().Header().Set("X-Content-Type-Options", "nosniff")
			c.Response().Header().Set("X-Frame-Options", "DENY")

			return next(c)
		}
	}
}

// PathPrefixSkipper skips requests whose path is prefix or lies below it.
func PathPrefixSkipper(prefix string) echomw.Skipper {
	return func(c echo.Context) bool {
		p := c.Request().URL.Path
		return p == prefix || strings.HasPrefix(p, prefix+"/")
	}
}
