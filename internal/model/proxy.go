// Package model defines shared types for the relay.
package model

import (
	"context"
	"io"
	"net/http"
	"strings"
)

// ProxyRequest represents a client request to be forwarded to the backend.
type ProxyRequest struct {
	Ctx    context.Context
	Method string
	Path   string
	// RawQuery is the inbound query string without '?', relayed unchanged.
	RawQuery string
	Header   http.Header
	Body     io.ReadCloser
	// ContentLength mirrors http.Request.ContentLength; -1 means unknown.
	ContentLength int64
}

// ProxyResponse represents the backend response to be streamed back.
type ProxyResponse struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       io.ReadCloser
}

// HealthResult is the composite answer served on the relay's health route.
// Status is always "ok": the relay could run the probe. Only the backend
// fields degrade. BackendBody is set whenever the backend answered, even
// with an empty body.
type HealthResult struct {
	Status            string  `json:"status"`
	Message           string  `json:"message"`
	BackendReachable  bool    `json:"backendReachable"`
	BackendStatusCode int     `json:"backendStatusCode,omitempty"`
	BackendBody       *string `json:"backendBody,omitempty"`
	ErrorDetail       string  `json:"errorDetail,omitempty"`
}

// HopByHopHeaders are connection-scoped headers that a relay must not forward.
var HopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"TE",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// RemoveHopByHop deletes hop-by-hop headers from h, including any named in
// its Connection header.
func RemoveHopByHop(h http.Header) {
	for _, v := range h.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				h.Del(name)
			}
		}
	}
	for _, name := range HopByHopHeaders {
		h.Del(name)
	}
}
