package video

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"net/http"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
)

const iPadUA = "Mozilla/5.0 (iPad; CPU OS 16_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Mobile/15E148 Safari/604.1"

func expectWatch(mock pgxmock.PgxPoolIface) {
	mock.ExpectQuery(`SELECT id, title, file_key, content_type, duration_seconds`).
		WithArgs("tok123").
		WillReturnRows(pgxmock.NewRows([]string{"id", "title", "file_key", "content_type", "duration_seconds"}).
			AddRow("video-1", "Demo", "videos/u/tok123.mp4", "video/mp4", 60.0))
	mock.ExpectQuery(`SELECT interaction, from_second`).
		WithArgs("video-1").
		WillReturnRows(interactionRows())
}

func TestWatch(t *testing.T) {
	h, mock := newTestHandler(t, &mockStorage{playbackURL: "https://s3/play"})
	expectWatch(mock)

	rec := serve(newTestRouter(h), http.MethodGet, "/api/watch/tok123", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	var resp watchResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.VideoURL != "https://s3/play" || resp.Duration != 60 {
		t.Errorf("unexpected response %+v", resp)
	}
	if len(resp.Interactions) != 2 {
		t.Errorf("expected 2 interactions, got %d", len(resp.Interactions))
	}
	if !resp.Controls.Volume {
		t.Error("expected volume control for a desktop client")
	}
	if resp.SessionsURL != "https://iv.example.com/api/watch/tok123/sessions" {
		t.Errorf("unexpected sessions url %q", resp.SessionsURL)
	}
}

func TestWatch_NoVolumeOnIPad(t *testing.T) {
	h, mock := newTestHandler(t, &mockStorage{playbackURL: "https://s3/play"})
	expectWatch(mock)

	req := newRequest(http.MethodGet, "/api/watch/tok123")
	req.Header.Set("User-Agent", iPadUA)
	rec := record(newTestRouter(h), req)

	var resp watchResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Controls.Volume {
		t.Error("expected no volume control on iPad")
	}
}

func TestWatch_NotFound(t *testing.T) {
	h, mock := newTestHandler(t, nil)
	mock.ExpectQuery(`SELECT id, title, file_key`).
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	rec := serve(newTestRouter(h), http.MethodGet, "/api/watch/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestLoadWatch_NotFound(t *testing.T) {
	h, mock := newTestHandler(t, nil)
	mock.ExpectQuery(`SELECT id, title, file_key`).
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	if _, err := h.Lookup(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEmbedPage(t *testing.T) {
	h, mock := newTestHandler(t, &mockStorage{playbackURL: "https://s3/play?sig=1"})
	expectWatch(mock)

	rec := serve(newTestRouter(h), http.MethodGet, "/embed/tok123", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`<title>Demo</title>`,
		`https://s3/play?sig=1`,
		`"className":"h5p-multichoice"`,
		`"label":"Intro"`,
		`id="mute"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected embed page to contain %q", want)
		}
	}
}

func TestEmbedPage_NotFound(t *testing.T) {
	h, mock := newTestHandler(t, nil)
	mock.ExpectQuery(`SELECT id, title, file_key`).
		WithArgs("gone").
		WillReturnError(pgx.ErrNoRows)

	rec := serve(newTestRouter(h), http.MethodGet, "/embed/gone", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "not available") {
		t.Error("expected not found page")
	}
}

func TestNewEmbedData_DefaultsLabel(t *testing.T) {
	w := &Watch{Duration: 10}
	w.Interactions = append(w.Interactions, interactionDef(3, "H5P.Summary 1.10"))

	data := newEmbedData(w, "")
	if data.Interactions[0].Label != "H5P.Summary" {
		t.Errorf("expected machine name label, got %q", data.Interactions[0].Label)
	}
}

func TestQRCode(t *testing.T) {
	h, mock := newTestHandler(t, nil)
	mock.ExpectQuery(`SELECT share_token FROM videos`).
		WithArgs("video-1", testUserID).
		WillReturnRows(pgxmock.NewRows([]string{"share_token"}).AddRow("tok123"))

	rec := serve(newTestRouter(h), http.MethodGet, "/api/videos/video-1/qr?size=128", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("expected image/png, got %q", ct)
	}
	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if img.Bounds().Dx() != 128 {
		t.Errorf("expected 128px image, got %d", img.Bounds().Dx())
	}
}

func TestQRCode_BadSize(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	rec := serve(newTestRouter(h), http.MethodGet, "/api/videos/video-1/qr?size=5000", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}
