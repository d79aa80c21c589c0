package model

import (
	"net/http"
	"testing"
)

func TestRemoveHopByHop(t *testing.T) {
	h := http.Header{}
	h.Set("Connection", "keep-alive, X-Session-Hint")
	h.Set("Keep-Alive", "timeout=5")
	h.Set("Transfer-Encoding", "chunked")
	h.Set("Upgrade", "websocket")
	h.Set("Proxy-Connection", "keep-alive")
	h.Set("X-Session-Hint", "abc")
	h.Set("Content-Type", "application/json")
	h.Set("Access-Control-Allow-Origin", "*")

	RemoveHopByHop(h)

	for _, name := range []string{"Connection", "Keep-Alive", "Transfer-Encoding", "Upgrade", "Proxy-Connection", "X-Session-Hint"} {
		if v := h.Get(name); v != "" {
			t.Errorf("%s = %q, want stripped", name, v)
		}
	}
	if v := h.Get("Content-Type"); v != "application/json" {
		t.Errorf("Content-Type = %q, want %q", v, "application/json")
	}
	if v := h.Get("Access-Control-Allow-Origin"); v != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", v, "*")
	}
}

func TestRemoveHopByHop_Empty(t *testing.T) {
	h := http.Header{}
	RemoveHopByHop(h)
	if len(h) != 0 {
		t.Errorf("len(h) = %d, want 0", len(h))
	}
}
