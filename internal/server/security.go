package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sendrec/ivplayer/internal/httputil"
)

type SecurityConfig struct {
	BaseURL         string
	StorageEndpoint string
	// EmbedAncestors may frame /embed pages; empty allows any site.
	EmbedAncestors []string
}

func securityHeaders(cfg SecurityConfig) func(http.Handler) http.Handler {
	strictTransport := strings.HasPrefix(cfg.BaseURL, "https://")

	storageSuffix := ""
	if cfg.StorageEndpoint != "" {
		storageSuffix = " " + cfg.StorageEndpoint
	}

	embedAncestors := "*"
	if len(cfg.EmbedAncestors) > 0 {
		embedAncestors = strings.Join(cfg.EmbedAncestors, " ")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r, nonce, err := httputil.WithNonce(r)
			if err != nil {
				slog.Error("security: nonce unavailable", "error", err)
				httputil.WriteError(w, http.StatusInternalServerError, "internal error")
				return
			}

			embed := strings.HasPrefix(r.URL.Path, "/embed/")
			frameAncestors := "'self'"
			if embed {
				frameAncestors = embedAncestors
			} else {
				w.Header().Set("X-Frame-Options", "SAMEORIGIN")
			}

			w.Header().Set("Referrer-Policy", "no-referrer")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=(), fullscreen=(self)")

			csp := fmt.Sprintf(
				"default-src 'self'; img-src 'self' data:%s; media-src 'self' blob:%s; script-src 'self' 'nonce-%s'; style-src 'self' 'nonce-%s'; connect-src 'self'%s; frame-ancestors %s;",
				storageSuffix, storageSuffix, nonce, nonce, storageSuffix, frameAncestors,
			)
			w.Header().Set("Content-Security-Policy", csp)

			if strictTransport {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}
