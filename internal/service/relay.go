// Package service implements the core relay logic.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"webrtc-relay/internal/client"
	"webrtc-relay/internal/config"
	"webrtc-relay/internal/metrics"
	"webrtc-relay/internal/model"
)

// ErrBackendUnreachable wraps every failure to obtain a response from the backend.
var ErrBackendUnreachable = errors.New("backend unreachable")

// healthMessage is reported on every health response; the relay answering
// means it is running.
const healthMessage = "relay server running"

// RelayService forwards requests to the backend and probes its health.
type RelayService struct {
	client     *client.BackendClient
	cfg        *config.Config
	logger     *slog.Logger
	metrics    *metrics.Metrics
	baseURL    *url.URL
	healthURL  string
	forwardRef string
}

// NewRelayService creates a RelayService. The metrics parameter is optional.
func NewRelayService(c *client.BackendClient, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*RelayService, error) {
	u, err := url.Parse(cfg.Backend.BaseURL())
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("backend url %q has no host", cfg.Backend.BaseURL())
	}

	forward := config.NormalizeForwardPath(cfg.Backend.ForwardPath)
	if forward == "" {
		return nil, fmt.Errorf("forward path %q must name a path below '/'", cfg.Backend.ForwardPath)
	}

	health := *u
	health.Path = cfg.Backend.HealthPath

	return &RelayService{
		client:     c,
		cfg:        cfg,
		logger:     logger.With("component", "relay_service"),
		metrics:    m,
		baseURL:    u,
		healthURL:  health.String(),
		forwardRef: forward,
	}, nil
}

// Target returns the backend origin requests are relayed to.
func (s *RelayService) Target() string {
	return s.baseURL.String()
}

// Forward sends a ProxyRequest to the backend and returns the response.
// The caller is responsible for closing the response body.
//
// Exactly one backend attempt is made. Any transport failure is returned
// wrapped in ErrBackendUnreachable.
func (s *RelayService) Forward(pr *model.ProxyRequest) (*model.ProxyResponse, error) {
	if !s.matchesForwardPath(pr.Path) {
		return nil, fmt.Errorf("path %q is outside forward path %q", pr.Path, s.forwardRef)
	}

	header := s.filterRequestHeaders(pr.Header)
	body, err := PrepareBody(header, pr.Body, pr.ContentLength)
	if err != nil {
		return nil, err
	}

	target := s.buildBackendURL(pr.Path, pr.RawQuery)

	s.logger.Info("proxy request",
		"method", pr.Method,
		"path", pr.Path,
		"target", target,
		"body_bytes", body.Length,
		"body_reencoded", body.Reencoded,
	)
	s.logger.Debug("proxy request headers", "headers", header)

	resp, err := s.client.DoStream(pr.Ctx, pr.Method, target, header, body.Reader, body.Length)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackendUnreachable, err)
	}

	s.logger.Info("proxy response",
		"method", pr.Method,
		"path", pr.Path,
		"target", target,
		"status_code", resp.StatusCode,
		"status", resp.Status,
	)
	s.logger.Debug("proxy response headers", "headers", resp.Header)

	resp.Header = s.filterResponseHeaders(resp.Header)
	return resp, nil
}

// Health probes the backend's health endpoint. It never fails: transport
// errors and timeouts only mark the backend unreachable.
func (s *RelayService) Health(ctx context.Context) model.HealthResult {
	result := model.HealthResult{
		Status:  "ok",
		Message: healthMessage,
	}

	code, body, err := s.client.Probe(ctx, s.healthURL)
	if err != nil {
		result.ErrorDetail = err.Error()
		s.logger.Warn("backend health probe failed",
			"target", s.healthURL,
			"err", err,
		)
	} else {
		result.BackendReachable = true
		result.BackendStatusCode = code
		result.BackendBody = &body
		s.logger.Info("backend health probe",
			"target", s.healthURL,
			"status_code", code,
		)
	}

	if s.metrics != nil {
		s.metrics.HealthProbes.WithLabelValues(strconv.FormatBool(result.BackendReachable)).Inc()
	}
	return result
}

// matchesForwardPath reports whether path is the forward path or below it.
func (s *RelayService) matchesForwardPath(path string) bool {
	return path == s.forwardRef || strings.HasPrefix(path, s.forwardRef+"/")
}

// buildBackendURL keeps rawQuery byte-for-byte: key order, bare flags and
// encoding are the caller's.
func (s *RelayService) buildBackendURL(path, rawQuery string) string {
	u := *s.baseURL
	u.Path = path
	u.RawQuery = rawQuery
	return u.String()
}

// filterRequestHeaders copies src without hop-by-hop headers, including any
// named in the Connection header.
func (s *RelayService) filterRequestHeaders(src http.Header) http.Header {
	dst := src.Clone()
	if dst == nil {
		dst = make(http.Header)
	}
	model.RemoveHopByHop(dst)
	return dst
}

func (s *RelayService) filterResponseHeaders(src http.Header) http.Header {
	dst := src.Clone()
	if dst == nil {
		dst = make(http.Header)
	}
	model.RemoveHopByHop(dst)
	return dst
}
