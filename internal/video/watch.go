package video

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/sendrec/ivplayer/internal/controls"
	"github.com/sendrec/ivplayer/internal/database"
	"github.com/sendrec/ivplayer/internal/httputil"
	"github.com/sendrec/ivplayer/internal/interaction"
)

const playbackURLExpiry = time.Hour

// Watch is everything a viewer needs to play a shared video.
type Watch struct {
	VideoID      string
	Title        string
	ShareToken   string
	FileKey      string
	ContentType  string
	Duration     float64
	Interactions []interaction.Def
}

type controlsConfig struct {
	Volume bool          `json:"volume"`
	L10n   controls.L10n `json:"l10n"`
}

type watchResponse struct {
	Title        string            `json:"title"`
	VideoURL     string            `json:"videoUrl"`
	ContentType  string            `json:"contentType"`
	Duration     float64           `json:"duration"`
	Interactions []interaction.Def `json:"interactions"`
	Controls     controlsConfig    `json:"controls"`
	SessionsURL  string            `json:"sessionsUrl"`
}

// LoadWatch resolves a share token to a ready video and its interactions.
func LoadWatch(ctx context.Context, db database.DBTX, shareToken string) (*Watch, error) {
	w := &Watch{ShareToken: shareToken}
	err := db.QueryRow(ctx,
		`SELECT id, title, file_key, content_type, duration_seconds
		 FROM videos WHERE share_token = $1 AND status = 'ready'`,
		shareToken,
	).Scan(&w.VideoID, &w.Title, &w.FileKey, &w.ContentType, &w.Duration)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load video: %w", err)
	}

	defs, err := LoadInteractions(ctx, db, w.VideoID)
	if err != nil {
		return nil, err
	}
	w.Interactions = defs
	return w, nil
}

func (h *Handler) Lookup(ctx context.Context, shareToken string) (*Watch, error) {
	return LoadWatch(ctx, h.db, shareToken)
}

// RecordView stores one playback session start with the viewer's location.
func (h *Handler) RecordView(ctx context.Context, videoID, sessionID, ip, userAgent string) error {
	var country, city string
	if h.locator != nil {
		loc := h.locator.Lookup(ip)
		country, city = loc.Country, loc.City
	}
	if _, err := h.db.Exec(ctx,
		`INSERT INTO video_views (video_id, session_id, viewer_hash, country, city) VALUES ($1, $2, $3, $4, $5)`,
		videoID, sessionID, viewerHash(ip, userAgent), country, city,
	); err != nil {
		return fmt.Errorf("record view: %w", err)
	}
	return nil
}

func (h *Handler) Watch(w http.ResponseWriter, r *http.Request) {
	shareToken := chi.URLParam(r, "shareToken")

	watch, err := h.Lookup(r.Context(), shareToken)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "video not found")
			return
		}
		slog.Error("video: watch lookup failed", "share_token", shareToken, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load video")
		return
	}

	videoURL, err := h.storage.PlaybackURL(r.Context(), watch.FileKey, playbackURLExpiry)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to generate video URL")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, watchResponse{
		Title:        watch.Title,
		VideoURL:     videoURL,
		ContentType:  watch.ContentType,
		Duration:     watch.Duration,
		Interactions: watch.Interactions,
		Controls: controlsConfig{
			Volume: controls.VolumeSupported(r.UserAgent()),
			L10n:   controls.DefaultL10n(),
		},
		SessionsURL: h.baseURL + "/api/watch/" + shareToken + "/sessions",
	})
}
