package video

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/sendrec/ivplayer/internal/httputil"
	"github.com/sendrec/ivplayer/internal/interaction"
)

func interactionRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"interaction", "from_second", "to_second", "x", "y", "pause_on_show", "library", "params", "label"}).
		AddRow(0, 2.0, 4.0, 10.0, 20.0, false, "H5P.Text 1.1", []byte(`{"text":"hi"}`), "Intro").
		AddRow(1, 10.0, 12.0, 50.0, 50.0, true, "H5P.MultiChoice 1.0", []byte(nil), "")
}

func TestGetInteractions(t *testing.T) {
	h, mock := newTestHandler(t, nil)

	mock.ExpectQuery(`SELECT duration_seconds FROM videos`).
		WithArgs("video-1", testUserID).
		WillReturnRows(pgxmock.NewRows([]string{"duration_seconds"}).AddRow(60.0))
	mock.ExpectQuery(`SELECT interaction, from_second`).
		WithArgs("video-1").
		WillReturnRows(interactionRows())

	rec := serve(newTestRouter(h), http.MethodGet, "/api/videos/video-1/interactions", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	var defs []interaction.Def
	if err := json.NewDecoder(rec.Body).Decode(&defs); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("expected 2 interactions, got %d", len(defs))
	}
	if string(defs[0].Params) != `{"text":"hi"}` || defs[1].Params != nil {
		t.Errorf("unexpected params %q %q", defs[0].Params, defs[1].Params)
	}
	if !defs[1].PauseOnShow || defs[1].Position.X != 50 {
		t.Errorf("unexpected second def %+v", defs[1])
	}
}

func TestGetInteractions_NotOwner(t *testing.T) {
	h, mock := newTestHandler(t, nil)

	mock.ExpectQuery(`SELECT duration_seconds FROM videos`).
		WithArgs("video-1", testUserID).
		WillReturnError(pgx.ErrNoRows)

	rec := serve(newTestRouter(h), http.MethodGet, "/api/videos/video-1/interactions", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestPutInteractions_ReplacesInTransaction(t *testing.T) {
	h, mock := newTestHandler(t, nil)

	mock.ExpectQuery(`SELECT duration_seconds FROM videos`).
		WithArgs("video-1", testUserID).
		WillReturnRows(pgxmock.NewRows([]string{"duration_seconds"}).AddRow(60.0))
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM interactions`).
		WithArgs("video-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectExec(`INSERT INTO interactions`).
		WithArgs("video-1", 0, 2.0, 4.0, 0.0, 0.0, false, "H5P.Text 1.1", pgxmock.AnyArg(), "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO interactions`).
		WithArgs("video-1", 1, 5.0, 8.0, 25.0, 75.0, true, "H5P.MultiChoice 1.0", pgxmock.AnyArg(), "Quiz").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE videos SET updated_at`).
		WithArgs("video-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	body := `[
		{"from":2,"to":4,"library":"H5P.Text 1.1"},
		{"from":5,"to":8,"position":{"x":25,"y":75},"pauseOnShow":true,"library":"H5P.MultiChoice 1.0","params":{"q":"?"},"label":"Quiz"}
	]`
	rec := serve(newTestRouter(h), http.MethodPut, "/api/videos/video-1/interactions?number=true", body)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet mock expectations: %v", err)
	}
}

func TestPutInteractions_ValidationMessages(t *testing.T) {
	h, mock := newTestHandler(t, nil)

	mock.ExpectQuery(`SELECT duration_seconds FROM videos`).
		WithArgs("video-1", testUserID).
		WillReturnRows(pgxmock.NewRows([]string{"duration_seconds"}).AddRow(30.0))

	body := `[
		{"id":0,"from":5,"to":2,"library":"H5P.Text 1.1"},
		{"id":0,"from":1,"to":2,"library":""},
		{"id":2,"from":40,"to":45,"library":"H5P.Text 1.1"}
	]`
	rec := serve(newTestRouter(h), http.MethodPut, "/api/videos/video-1/interactions", body)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d: %s", http.StatusBadRequest, rec.Code, rec.Body.String())
	}
	var resp httputil.ErrorBody
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Details) != 4 {
		t.Fatalf("expected 4 problems, got %v", resp.Details)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet mock expectations: %v", err)
	}
}

func TestPutInteractions_UnknownField(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	rec := serve(newTestRouter(h), http.MethodPut, "/api/videos/video-1/interactions", `[{"from":1,"to":2,"library":"X","bogus":1}]`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestPutInteractions_RollsBackOnFailure(t *testing.T) {
	h, mock := newTestHandler(t, nil)

	mock.ExpectQuery(`SELECT duration_seconds FROM videos`).
		WithArgs("video-1", testUserID).
		WillReturnRows(pgxmock.NewRows([]string{"duration_seconds"}).AddRow(60.0))
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM interactions`).
		WithArgs("video-1").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	rec := serve(newTestRouter(h), http.MethodPut, "/api/videos/video-1/interactions", `[{"id":0,"from":1,"to":2,"library":"H5P.Text 1.1"}]`)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, rec.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet mock expectations: %v", err)
	}
}
