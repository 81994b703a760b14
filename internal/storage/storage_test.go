package storage_test

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/sendrec/ivplayer/internal/storage"
)

func newTestStorage(t *testing.T, maxBytes int64) *storage.Storage {
	t.Helper()
	s, err := storage.New(context.Background(), storage.Config{
		Endpoint:       "http://minio:9000",
		PublicEndpoint: "https://media.example.com",
		Bucket:         "videos",
		AccessKey:      "test",
		SecretKey:      "test",
		MaxUploadBytes: maxBytes,
	})
	if err != nil {
		t.Fatalf("expected no error creating storage client, got: %v", err)
	}
	return s
}

func TestNew_RequiresBucket(t *testing.T) {
	if _, err := storage.New(context.Background(), storage.Config{Endpoint: "http://localhost:9000"}); err == nil {
		t.Fatal("expected error without bucket")
	}
}

func TestVideoKey(t *testing.T) {
	key, err := storage.VideoKey("u1", "v1", "video/webm")
	if err != nil {
		t.Fatalf("VideoKey: %v", err)
	}
	if key != "videos/u1/v1.webm" {
		t.Errorf("expected videos/u1/v1.webm, got %q", key)
	}
	if _, err := storage.VideoKey("u1", "v1", "image/png"); !errors.Is(err, storage.ErrUnsupportedType) {
		t.Errorf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestUploadURL(t *testing.T) {
	s := newTestStorage(t, 1000)

	raw, err := s.UploadURL(context.Background(), "videos/u1/v1.mp4", "video/mp4", 500, 15*time.Minute)
	if err != nil {
		t.Fatalf("UploadURL: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if u.Host != "media.example.com" {
		t.Errorf("expected public endpoint host, got %q", u.Host)
	}
	if !strings.HasSuffix(u.Path, "/videos/videos/u1/v1.mp4") {
		t.Errorf("unexpected path %q", u.Path)
	}
	if u.Query().Get("X-Amz-Signature") == "" {
		t.Error("expected a signed URL")
	}
}

func TestUploadURL_TooLarge(t *testing.T) {
	s := newTestStorage(t, 1000)

	_, err := s.UploadURL(context.Background(), "videos/u1/v1.mp4", "video/mp4", 1001, time.Minute)
	if !errors.Is(err, storage.ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestPlaybackURL(t *testing.T) {
	s := newTestStorage(t, 0)

	raw, err := s.PlaybackURL(context.Background(), "videos/u1/v1.mp4", time.Hour)
	if err != nil {
		t.Fatalf("PlaybackURL: %v", err)
	}
	if !strings.Contains(raw, "X-Amz-Expires=3600") {
		t.Errorf("expected one hour expiry in %q", raw)
	}
}

func TestNilStorage(t *testing.T) {
	var s *storage.Storage
	if _, err := s.PlaybackURL(context.Background(), "k", time.Minute); !errors.Is(err, storage.ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}
