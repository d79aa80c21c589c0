package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"webrtc-relay/internal/config"
	"webrtc-relay/internal/metrics"
)

// RegisterRoutes wires all route handlers onto the Echo instance.
// m may be nil when metrics are disabled.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, relay *RelayHandler, health *HealthHandler, m *metrics.Metrics) {
	e.GET(config.HealthRoute, health.Health)
	e.GET(config.StatusRoute, health.Status)

	forward := config.NormalizeForwardPath(cfg.Backend.ForwardPath)
	e.Any(forward, relay.Handle)
	e.Any(forward+"/*", relay.Handle)

	if m != nil && cfg.Metrics.Enabled {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}

	// Everything else is the frontend bundle.
	e.Static("/", cfg.Static.Root)
}
