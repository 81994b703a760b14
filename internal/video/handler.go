// Package video stores authored videos and their interaction lists, and
// serves them to viewers through share tokens.
package video

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sendrec/ivplayer/internal/database"
	"github.com/sendrec/ivplayer/internal/geoip"
)

var ErrNotFound = errors.New("video not found")

type ObjectStorage interface {
	UploadURL(ctx context.Context, key, contentType string, contentLength int64, expiry time.Duration) (string, error)
	PlaybackURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	DeleteObject(ctx context.Context, key string) error
	HeadObject(ctx context.Context, key string) (int64, string, error)
}

// Locator resolves a viewer address for view statistics.
type Locator interface {
	Lookup(ip string) geoip.Location
}

type Handler struct {
	db             database.DBTX
	storage        ObjectStorage
	locator        Locator
	baseURL        string
	maxUploadBytes int64
}

func NewHandler(db database.DBTX, s ObjectStorage, baseURL string, maxUploadBytes int64) *Handler {
	return &Handler{
		db:             db,
		storage:        s,
		baseURL:        baseURL,
		maxUploadBytes: maxUploadBytes,
	}
}

func (h *Handler) SetLocator(l Locator) {
	h.locator = l
}

func generateShareToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func viewerHash(ip, userAgent string) string {
	h := sha256.Sum256([]byte(ip + "|" + userAgent))
	return fmt.Sprintf("%x", h[:8])
}

func (h *Handler) embedURL(shareToken string) string {
	return h.baseURL + "/embed/" + shareToken
}

func deleteWithRetry(ctx context.Context, storage ObjectStorage, key string, maxAttempts int) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
		lastErr = storage.DeleteObject(ctx, key)
		if lastErr == nil {
			return nil
		}
		slog.Error("storage: delete attempt failed", "attempt", attempt+1, "max_attempts", maxAttempts, "key", key, "error", lastErr)
	}
	return fmt.Errorf("all %d delete attempts failed for %s: %w", maxAttempts, key, lastErr)
}
