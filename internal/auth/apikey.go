package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/sendrec/ivplayer/internal/database"
	"github.com/sendrec/ivplayer/internal/httputil"
	"github.com/sendrec/ivplayer/internal/validate"
)

const (
	apiKeyPrefix    = "iv_"
	apiKeyRandBytes = 32
	maxAPIKeys      = 10
)

var errAPIKeyNotFound = errors.New("API key not found")

type createAPIKeyRequest struct {
	Name string `json:"name"`
}

type apiKeyResponse struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Key        string  `json:"key,omitempty"`
	CreatedAt  string  `json:"createdAt"`
	LastUsedAt *string `json:"lastUsedAt,omitempty"`
}

func newAPIKey() (string, error) {
	b := make([]byte, apiKeyRandBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate random bytes: %w", err)
	}
	return apiKeyPrefix + hex.EncodeToString(b), nil
}

func HashAPIKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}

func IsAPIKey(token string) bool {
	return strings.HasPrefix(token, apiKeyPrefix)
}

func (h *Handler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	var req createAPIKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		httputil.WriteError(w, http.StatusBadRequest, "name is required")
		return
	}
	if msg := validate.APIKeyName(req.Name); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	var count int
	if err := h.db.QueryRow(r.Context(),
		"SELECT COUNT(*) FROM api_keys WHERE user_id = $1", userID,
	).Scan(&count); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to check key count")
		return
	}
	if count >= maxAPIKeys {
		httputil.WriteError(w, http.StatusBadRequest, "maximum number of API keys reached")
		return
	}

	plaintext, err := newAPIKey()
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to generate API key")
		return
	}

	var id string
	var createdAt time.Time
	if err := h.db.QueryRow(r.Context(),
		"INSERT INTO api_keys (user_id, key_hash, name) VALUES ($1, $2, $3) RETURNING id, created_at",
		userID, HashAPIKey(plaintext), req.Name,
	).Scan(&id, &createdAt); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to create API key")
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, apiKeyResponse{
		ID:        id,
		Name:      req.Name,
		Key:       plaintext,
		CreatedAt: createdAt.Format(time.RFC3339),
	})
}

func (h *Handler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	rows, err := h.db.Query(r.Context(),
		"SELECT id, name, created_at, last_used_at FROM api_keys WHERE user_id = $1 ORDER BY created_at DESC",
		userID,
	)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list API keys")
		return
	}
	defer rows.Close()

	items := make([]apiKeyResponse, 0)
	for rows.Next() {
		var item apiKeyResponse
		var createdAt time.Time
		var lastUsedAt *time.Time
		if err := rows.Scan(&item.ID, &item.Name, &createdAt, &lastUsedAt); err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, "failed to scan API key")
			return
		}
		item.CreatedAt = createdAt.Format(time.RFC3339)
		if lastUsedAt != nil {
			s := lastUsedAt.Format(time.RFC3339)
			item.LastUsedAt = &s
		}
		items = append(items, item)
	}

	httputil.WriteJSON(w, http.StatusOK, items)
}

func (h *Handler) DeleteAPIKey(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	tag, err := h.db.Exec(r.Context(),
		"DELETE FROM api_keys WHERE id = $1 AND user_id = $2",
		chi.URLParam(r, "id"), userID,
	)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to delete API key")
		return
	}
	if tag.RowsAffected() == 0 {
		httputil.WriteError(w, http.StatusNotFound, "API key not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LookupAPIKey resolves a plaintext key to its owner and stamps last use.
func LookupAPIKey(ctx context.Context, db database.DBTX, token string) (string, error) {
	if !IsAPIKey(token) {
		return "", errAPIKeyNotFound
	}
	keyHash := HashAPIKey(token)

	var userID string
	err := db.QueryRow(ctx, "SELECT user_id FROM api_keys WHERE key_hash = $1", keyHash).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", errAPIKeyNotFound
		}
		return "", fmt.Errorf("lookup API key: %w", err)
	}

	if _, err := db.Exec(ctx, "UPDATE api_keys SET last_used_at = now() WHERE key_hash = $1", keyHash); err != nil {
		slog.Warn("auth: failed to update API key last_used_at", "error", err)
	}
	return userID, nil
}
