package video

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/sendrec/ivplayer/internal/auth"
	"github.com/sendrec/ivplayer/internal/httputil"
	"github.com/sendrec/ivplayer/internal/storage"
	"github.com/sendrec/ivplayer/internal/validate"
)

const uploadURLExpiry = 30 * time.Minute

type createRequest struct {
	Title       string  `json:"title"`
	Duration    float64 `json:"duration"`
	FileSize    int64   `json:"fileSize"`
	ContentType string  `json:"contentType"`
}

type createResponse struct {
	ID         string `json:"id"`
	UploadURL  string `json:"uploadUrl"`
	ShareToken string `json:"shareToken"`
	EmbedURL   string `json:"embedUrl"`
}

type updateRequest struct {
	Title  *string `json:"title"`
	Status *string `json:"status"`
}

type uploadURLRequest struct {
	FileSize int64 `json:"fileSize"`
}

type videoItem struct {
	ID               string  `json:"id"`
	Title            string  `json:"title"`
	Status           string  `json:"status"`
	Duration         float64 `json:"duration"`
	ContentType      string  `json:"contentType"`
	ShareToken       string  `json:"shareToken"`
	EmbedURL         string  `json:"embedUrl"`
	InteractionCount int     `json:"interactionCount"`
	ViewCount        int64   `json:"viewCount"`
	CreatedAt        string  `json:"createdAt"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.FileSize <= 0 {
		httputil.WriteError(w, http.StatusBadRequest, "fileSize must be positive")
		return
	}
	if h.maxUploadBytes > 0 && req.FileSize > h.maxUploadBytes {
		httputil.WriteError(w, http.StatusBadRequest, "file too large")
		return
	}
	if msg := validate.VideoDuration(req.Duration); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "Untitled video"
	}
	if msg := validate.Title(title); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = "video/mp4"
	}
	if _, err := storage.Extension(contentType); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "only video/mp4, video/webm and video/ogg are supported")
		return
	}

	shareToken, err := generateShareToken()
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to generate share token")
		return
	}
	fileKey, _ := storage.VideoKey(userID, shareToken, contentType)

	var videoID string
	err = h.db.QueryRow(r.Context(),
		`INSERT INTO videos (user_id, title, file_key, content_type, duration_seconds, share_token, status)
		 VALUES ($1, $2, $3, $4, $5, $6, 'uploading') RETURNING id`,
		userID, title, fileKey, contentType, req.Duration, shareToken,
	).Scan(&videoID)
	if err != nil {
		slog.Error("video: create failed", "user_id", userID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to create video")
		return
	}

	uploadURL, err := h.storage.UploadURL(r.Context(), fileKey, contentType, req.FileSize, uploadURLExpiry)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to generate upload URL")
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, createResponse{
		ID:         videoID,
		UploadURL:  uploadURL,
		ShareToken: shareToken,
		EmbedURL:   h.embedURL(shareToken),
	})
}

const videoColumns = `v.id, v.title, v.status, v.duration_seconds, v.content_type, v.share_token, v.created_at,
	(SELECT COUNT(*) FROM interactions i WHERE i.video_id = v.id),
	(SELECT COUNT(*) FROM video_views vv WHERE vv.video_id = v.id)`

func (h *Handler) scanVideo(row pgx.Row) (videoItem, error) {
	var item videoItem
	var createdAt time.Time
	if err := row.Scan(&item.ID, &item.Title, &item.Status, &item.Duration, &item.ContentType,
		&item.ShareToken, &createdAt, &item.InteractionCount, &item.ViewCount); err != nil {
		return videoItem{}, err
	}
	item.CreatedAt = createdAt.Format(time.RFC3339)
	item.EmbedURL = h.embedURL(item.ShareToken)
	return item, nil
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	rows, err := h.db.Query(r.Context(),
		`SELECT `+videoColumns+` FROM videos v WHERE v.user_id = $1 ORDER BY v.created_at DESC`,
		userID,
	)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list videos")
		return
	}
	defer rows.Close()

	items := make([]videoItem, 0)
	for rows.Next() {
		item, err := h.scanVideo(rows)
		if err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, "failed to scan video")
			return
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list videos")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, items)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	item, err := h.scanVideo(h.db.QueryRow(r.Context(),
		`SELECT `+videoColumns+` FROM videos v WHERE v.id = $1 AND v.user_id = $2`,
		chi.URLParam(r, "id"), userID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httputil.WriteError(w, http.StatusNotFound, "video not found")
			return
		}
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load video")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, item)
}

// Update renames a video or marks its upload complete.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	videoID := chi.URLParam(r, "id")

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == nil && req.Status == nil {
		httputil.WriteError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	var fileKey, status string
	err := h.db.QueryRow(r.Context(),
		`SELECT file_key, status FROM videos WHERE id = $1 AND user_id = $2`,
		videoID, userID,
	).Scan(&fileKey, &status)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}

	title := ""
	if req.Title != nil {
		title = strings.TrimSpace(*req.Title)
		if title == "" {
			httputil.WriteError(w, http.StatusBadRequest, "title must not be empty")
			return
		}
		if msg := validate.Title(title); msg != "" {
			httputil.WriteError(w, http.StatusBadRequest, msg)
			return
		}
	}

	if req.Status != nil {
		if *req.Status != "ready" {
			httputil.WriteError(w, http.StatusBadRequest, "status can only be set to ready")
			return
		}
		size, _, err := h.storage.HeadObject(r.Context(), fileKey)
		if err != nil || size == 0 {
			httputil.WriteError(w, http.StatusConflict, "video file has not been uploaded")
			return
		}
		status = "ready"
	}

	if _, err := h.db.Exec(r.Context(),
		`UPDATE videos SET title = COALESCE(NULLIF($1, ''), title), status = $2, updated_at = now()
		 WHERE id = $3 AND user_id = $4`,
		title, status, videoID, userID,
	); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to update video")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var fileKey string
	err := h.db.QueryRow(r.Context(),
		`DELETE FROM videos WHERE id = $1 AND user_id = $2 RETURNING file_key`,
		chi.URLParam(r, "id"), userID,
	).Scan(&fileKey)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := deleteWithRetry(ctx, h.storage, fileKey, 3); err != nil {
			slog.Error("video: failed to delete file", "key", fileKey, "error", err)
		}
	}()

	w.WriteHeader(http.StatusNoContent)
}

// UploadURL re-issues a presigned upload URL, e.g. after the first expired.
func (h *Handler) UploadURL(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req uploadURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.FileSize <= 0 {
		httputil.WriteError(w, http.StatusBadRequest, "fileSize must be positive")
		return
	}

	var fileKey, contentType string
	err := h.db.QueryRow(r.Context(),
		`SELECT file_key, content_type FROM videos WHERE id = $1 AND user_id = $2`,
		chi.URLParam(r, "id"), userID,
	).Scan(&fileKey, &contentType)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}

	uploadURL, err := h.storage.UploadURL(r.Context(), fileKey, contentType, req.FileSize, uploadURLExpiry)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			httputil.WriteError(w, http.StatusBadRequest, "file too large")
			return
		}
		httputil.WriteError(w, http.StatusInternalServerError, "failed to generate upload URL")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"uploadUrl": uploadURL})
}
