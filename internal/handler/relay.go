package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"

	humanize "github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"
	"go.uber.org/multierr"

	"webrtc-relay/internal/model"
	"webrtc-relay/internal/service"
)

// backendUnreachableMessage is the fixed error text for failed relays.
const backendUnreachableMessage = "unable to reach backend server"

// RelayHandler forwards requests on the forward path to the backend.
type RelayHandler struct {
	service *service.RelayService
	logger  *slog.Logger
}

// NewRelayHandler creates a RelayHandler.
func NewRelayHandler(svc *service.RelayService, logger *slog.Logger) *RelayHandler {
	return &RelayHandler{
		service: svc,
		logger:  logger.With("component", "relay_handler"),
	}
}

// Handle relays the request to the backend and streams the response back.
func (h *RelayHandler) Handle(c echo.Context) error {
	req := c.Request()

	pr := &model.ProxyRequest{
		Ctx:           req.Context(),
		Method:        req.Method,
		Path:          req.URL.Path,
		RawQuery:      req.URL.RawQuery,
		Header:        req.Header,
		Body:          req.Body,
		ContentLength: req.ContentLength,
	}

	resp, err := h.service.Forward(pr)
	if err != nil {
		return h.mapError(c, err)
	}

	for key, vals := range resp.Header {
		for _, v := range vals {
			c.Response().Header().Add(key, v)
		}
	}

	c.Response().WriteHeader(resp.StatusCode)

	// The status line is already on the wire, so a failure mid-stream can
	// only truncate the body; it is logged, not reported to the caller.
	n, copyErr := io.Copy(c.Response(), resp.Body)
	if err := multierr.Append(copyErr, resp.Body.Close()); err != nil {
		h.logger.Error("streaming response body",
			"err", err,
			"path", req.URL.Path,
			"bytes", n,
		)
		return nil
	}

	h.logger.Debug("relayed response body",
		"path", req.URL.Path,
		"bytes", n,
		"size", humanize.Bytes(uint64(n)),
	)
	return nil
}

func (h *RelayHandler) mapError(c echo.Context, err error) error {
	path := c.Request().URL.Path

	// BodyLimit reports oversized bodies as an *echo.HTTPError from Read. A
	// streamed body is read inside the transport, so the error can arrive
	// wrapped in ErrBackendUnreachable.
	var he *echo.HTTPError
	if errors.As(err, &he) {
		h.logger.Warn("reading request body", "err", err, "path", path, "code", he.Code)
		return he
	}

	if errors.Is(err, service.ErrRequestBody) {
		h.logger.Warn("reading request body", "err", err, "path", path)
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "unable to read request body",
		})
	}

	if !errors.Is(err, service.ErrBackendUnreachable) {
		h.logger.Error("relay error", "err", err, "path", path)
		return echo.ErrNotFound
	}

	h.logger.Error("proxy error",
		"err", err,
		"kind", classify(err),
		"path", path,
	)

	return c.JSON(http.StatusInternalServerError, map[string]string{
		"error":   backendUnreachableMessage,
		"details": strings.TrimPrefix(err.Error(), service.ErrBackendUnreachable.Error()+": "),
	})
}

// classify names the transport failure behind a relay error for logging.
func classify(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "client_canceled"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "dns"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return "connect"
	}

	return "other"
}
