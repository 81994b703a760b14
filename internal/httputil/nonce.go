package httputil

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
)

type nonceKey struct{}

// nonceBytes gives a 22 character base64url nonce.
const nonceBytes = 16

func NewNonce() (string, error) {
	b := make([]byte, nonceBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate CSP nonce: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// WithNonce attaches a fresh nonce to the request for inline scripts and
// styles rendered by the embed page.
func WithNonce(r *http.Request) (*http.Request, string, error) {
	nonce, err := NewNonce()
	if err != nil {
		return r, "", err
	}
	return r.WithContext(context.WithValue(r.Context(), nonceKey{}, nonce)), nonce, nil
}

func NonceFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(nonceKey{}).(string); ok {
		return v
	}
	return ""
}
