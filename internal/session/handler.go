package session

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sendrec/ivplayer/internal/httputil"
	"github.com/sendrec/ivplayer/internal/playback"
	"github.com/sendrec/ivplayer/internal/player"
	"github.com/sendrec/ivplayer/internal/video"
)

const maxControlBody = 1 << 10

type Handler struct {
	manager *Manager
}

func NewHandler(m *Manager) *Handler {
	return &Handler{manager: m}
}

type sessionResponse struct {
	ID         string          `json:"id"`
	VideoID    string          `json:"videoId"`
	ShareToken string          `json:"shareToken"`
	Title      string          `json:"title"`
	State      player.Snapshot `json:"state"`
}

type seekRequest struct {
	Seconds float64 `json:"seconds"`
	// Drag is "begin", "move" or "end" while the slider is held; empty for a
	// plain seek.
	Drag string `json:"drag,omitempty"`
}

type clickRequest struct {
	IID *int `json:"iid"`
}

func writeSession(w http.ResponseWriter, status int, s *Session) {
	httputil.WriteJSON(w, status, sessionResponse{
		ID:         s.ID,
		VideoID:    s.VideoID,
		ShareToken: s.ShareToken,
		Title:      s.Title,
		State:      s.Player.Snapshot(),
	})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	s, err := h.manager.Create(r.Context(), chi.URLParam(r, "shareToken"), r.UserAgent(), httputil.ClientIP(r))
	if err != nil {
		switch {
		case errors.Is(err, video.ErrNotFound):
			httputil.WriteError(w, http.StatusNotFound, "video not found")
		case errors.Is(err, ErrTooManySessions):
			w.Header().Set("Retry-After", "60")
			httputil.WriteError(w, http.StatusServiceUnavailable, "too many active sessions")
		default:
			slog.Error("session: create failed", "error", err)
			httputil.WriteError(w, http.StatusInternalServerError, "failed to create session")
		}
		return
	}
	writeSession(w, http.StatusCreated, s)
}

// session loads the {id} session or writes a 404.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	s, err := h.manager.Get(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return s, true
}

func writeControlError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, playback.ErrClosed):
		httputil.WriteError(w, http.StatusGone, "session closed")
	case errors.Is(err, player.ErrNotMounted):
		httputil.WriteError(w, http.StatusConflict, "interaction is not visible")
	default:
		slog.Error("session: control failed", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "playback control failed")
	}
}

// control runs op against the session player and answers with its new state.
func (h *Handler) control(op func(p *player.Player) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := h.session(w, r)
		if !ok {
			return
		}
		if err := op(s.Player); err != nil {
			writeControlError(w, err)
			return
		}
		writeSession(w, http.StatusOK, s)
	}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.session(w, r); ok {
		writeSession(w, http.StatusOK, s)
	}
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Delete(chi.URLParam(r, "id")); err != nil {
		httputil.WriteError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Play() http.HandlerFunc {
	return h.control(func(p *player.Player) error { return p.Play() })
}

func (h *Handler) Pause() http.HandlerFunc {
	return h.control(func(p *player.Player) error { return p.Pause() })
}

func (h *Handler) Mute() http.HandlerFunc {
	return h.control(func(p *player.Player) error { return p.SetMuted(true) })
}

func (h *Handler) Unmute() http.HandlerFunc {
	return h.control(func(p *player.Player) error { return p.SetMuted(false) })
}

func (h *Handler) Fullscreen() http.HandlerFunc {
	return h.control(func(p *player.Player) error {
		p.ToggleFullscreen()
		return nil
	})
}

func (h *Handler) CloseDialog() http.HandlerFunc {
	return h.control(func(p *player.Player) error { return p.CloseDialog() })
}

func (h *Handler) Seek(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req seekRequest
	if err := httputil.DecodeJSON(w, r, maxControlBody, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var err error
	switch req.Drag {
	case "":
		err = s.Player.Seek(req.Seconds)
	case "begin":
		s.Player.BeginSlide()
		s.Player.Slide(req.Seconds)
	case "move":
		s.Player.Slide(req.Seconds)
	case "end":
		err = s.Player.EndSlide(req.Seconds)
	default:
		httputil.WriteError(w, http.StatusBadRequest, "drag must be begin, move or end")
		return
	}
	if err != nil {
		writeControlError(w, err)
		return
	}
	writeSession(w, http.StatusOK, s)
}

func (h *Handler) Click(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req clickRequest
	if err := httputil.DecodeJSON(w, r, maxControlBody, &req); err != nil || req.IID == nil || *req.IID < 0 {
		httputil.WriteError(w, http.StatusBadRequest, "invalid interaction id")
		return
	}
	if err := s.Player.Click(*req.IID); err != nil {
		writeControlError(w, err)
		return
	}
	writeSession(w, http.StatusOK, s)
}
