package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"webrtc-relay/internal/config"
	"webrtc-relay/internal/service"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	service *service.RelayService
	cfg     *config.Config
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(svc *service.RelayService, cfg *config.Config, v Version) *HealthHandler {
	return &HealthHandler{service: svc, cfg: cfg, version: v}
}

// Health probes the backend and reports the combined result. It always
// answers 200; an unreachable backend only degrades the payload.
func (h *HealthHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.Health(c.Request().Context()))
}

// Status returns relay status information.
func (h *HealthHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":       "ok",
		"version":      string(h.version),
		"backend_url":  h.service.Target(),
		"forward_path": h.cfg.Backend.ForwardPath,
	})
}
