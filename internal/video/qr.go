package video

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sendrec/ivplayer/internal/auth"
	"github.com/sendrec/ivplayer/internal/httputil"
	qrcode "github.com/skip2/go-qrcode"
)

const (
	defaultQRSize = 256
	minQRSize     = 64
	maxQRSize     = 1024
)

// QRCode returns a PNG linking to the video's embed page.
func (h *Handler) QRCode(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	size := defaultQRSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < minQRSize || n > maxQRSize {
			httputil.WriteError(w, http.StatusBadRequest, "size must be between 64 and 1024")
			return
		}
		size = n
	}

	var shareToken string
	if err := h.db.QueryRow(r.Context(),
		`SELECT share_token FROM videos WHERE id = $1 AND user_id = $2`,
		chi.URLParam(r, "id"), userID,
	).Scan(&shareToken); err != nil {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}

	png, err := qrcode.Encode(h.embedURL(shareToken), qrcode.Medium, size)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to generate QR code")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
