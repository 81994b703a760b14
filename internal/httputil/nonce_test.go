package httputil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewNonce(t *testing.T) {
	a, err := NewNonce()
	if err != nil {
		t.Fatalf("NewNonce: %v", err)
	}
	b, _ := NewNonce()

	if len(a) != 22 {
		t.Errorf("expected 22-character nonce, got %d: %q", len(a), a)
	}
	if a == b {
		t.Errorf("expected unique nonces, got %q twice", a)
	}
}

func TestWithNonce(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/embed/tok123", nil)

	r, nonce, err := WithNonce(r)
	if err != nil {
		t.Fatalf("WithNonce: %v", err)
	}
	if got := NonceFromContext(r.Context()); got == "" || got != nonce {
		t.Errorf("expected context nonce %q, got %q", nonce, got)
	}
}

func TestNonceFromContext_EmptyWhenMissing(t *testing.T) {
	if got := NonceFromContext(context.Background()); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}
