package video

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/sendrec/ivplayer/internal/auth"
	"github.com/sendrec/ivplayer/internal/database"
	"github.com/sendrec/ivplayer/internal/httputil"
	"github.com/sendrec/ivplayer/internal/interaction"
	"github.com/sendrec/ivplayer/internal/validate"
)

const maxInteractionsBody = interaction.MaxInteractions * (validate.MaxParamsBytes / 16)

// LoadInteractions returns a video's interactions ordered by id.
func LoadInteractions(ctx context.Context, db database.DBTX, videoID string) ([]interaction.Def, error) {
	rows, err := db.Query(ctx,
		`SELECT interaction, from_second, to_second, x, y, pause_on_show, library, params, label
		 FROM interactions WHERE video_id = $1 ORDER BY interaction`,
		videoID,
	)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer rows.Close()

	defs := make([]interaction.Def, 0)
	for rows.Next() {
		var d interaction.Def
		var params []byte
		if err := rows.Scan(&d.ID, &d.From, &d.To, &d.Position.X, &d.Position.Y,
			&d.PauseOnShow, &d.Library, &params, &d.Label); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		if len(params) > 0 {
			d.Params = json.RawMessage(params)
		}
		defs = append(defs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read interactions: %w", err)
	}
	return defs, nil
}

// ReplaceInteractions swaps a video's whole interaction list in one
// transaction.
func ReplaceInteractions(ctx context.Context, db database.DBTX, videoID string, defs []interaction.Def) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := writeInteractions(ctx, tx, videoID, defs); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func writeInteractions(ctx context.Context, tx pgx.Tx, videoID string, defs []interaction.Def) error {
	if _, err := tx.Exec(ctx, `DELETE FROM interactions WHERE video_id = $1`, videoID); err != nil {
		return fmt.Errorf("clear interactions: %w", err)
	}
	for _, d := range defs {
		var params []byte
		if len(d.Params) > 0 {
			params = d.Params
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO interactions (video_id, interaction, from_second, to_second, x, y, pause_on_show, library, params, label)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			videoID, d.ID, d.From, d.To, d.Position.X, d.Position.Y, d.PauseOnShow, d.Library, params, d.Label,
		); err != nil {
			return fmt.Errorf("insert interaction %d: %w", d.ID, err)
		}
	}
	if _, err := tx.Exec(ctx, `UPDATE videos SET updated_at = now() WHERE id = $1`, videoID); err != nil {
		return fmt.Errorf("touch video: %w", err)
	}
	return nil
}

// checkInteractions returns every problem with defs as user-facing messages.
func checkInteractions(defs []interaction.Def, duration float64) []string {
	msgs := interaction.Messages(interaction.Validate(defs))
	for i, d := range defs {
		for _, msg := range []string{
			validate.Library(d.Library),
			validate.InteractionLabel(d.Label),
			validate.Params(d.Params),
		} {
			if msg != "" {
				msgs = append(msgs, fmt.Sprintf("interaction %d: %s", i, msg))
			}
		}
		if duration > 0 && d.From > duration {
			msgs = append(msgs, fmt.Sprintf("interaction %d: from is past the end of the video", i))
		}
	}
	return msgs
}

func (h *Handler) ownedDuration(ctx context.Context, videoID, userID string) (float64, error) {
	var duration float64
	err := h.db.QueryRow(ctx,
		`SELECT duration_seconds FROM videos WHERE id = $1 AND user_id = $2`,
		videoID, userID,
	).Scan(&duration)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return duration, err
}

func (h *Handler) GetInteractions(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	videoID := chi.URLParam(r, "id")

	if _, err := h.ownedDuration(r.Context(), videoID, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "video not found")
			return
		}
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load video")
		return
	}

	defs, err := LoadInteractions(r.Context(), h.db, videoID)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load interactions")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, defs)
}

// PutInteractions replaces the whole ordered list. With ?number=true ids are
// reassigned by position.
func (h *Handler) PutInteractions(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	videoID := chi.URLParam(r, "id")

	var defs []interaction.Def
	if err := httputil.DecodeJSON(w, r, maxInteractionsBody, &defs); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if r.URL.Query().Get("number") == "true" {
		defs = interaction.Number(defs)
	}

	duration, err := h.ownedDuration(r.Context(), videoID, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "video not found")
			return
		}
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load video")
		return
	}

	if msgs := checkInteractions(defs, duration); len(msgs) > 0 {
		httputil.WriteValidationError(w, "invalid interactions", msgs)
		return
	}

	if err := ReplaceInteractions(r.Context(), h.db, videoID, defs); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to save interactions")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, defs)
}
