package main

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func TestGetEnvReturnsValueWhenSet(t *testing.T) {
	const key = "TEST_GETENV_SET"
	const expected = "custom-value"

	t.Setenv(key, expected)

	result := getEnv(key, "fallback")
	if result != expected {
		t.Errorf("expected %q, got %q", expected, result)
	}
}

func TestGetEnvReturnsFallbackWhenEmpty(t *testing.T) {
	const key = "TEST_GETENV_EMPTY"
	const fallback = "default-value"

	t.Setenv(key, "")

	result := getEnv(key, fallback)
	if result != fallback {
		t.Errorf("expected fallback %q for empty env var, got %q", fallback, result)
	}
}

func TestGetEnvInt64(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_INT_BAD", "forty-two")

	if got := getEnvInt64("TEST_INT", 7); got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
	if got := getEnvInt64("TEST_INT_BAD", 7); got != 7 {
		t.Errorf("expected fallback 7, got %d", got)
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("TEST_DURATION", "90s")

	if got := getEnvDuration("TEST_DURATION", time.Minute); got != 90*time.Second {
		t.Errorf("expected 90s, got %s", got)
	}
	if got := getEnvDuration("TEST_DURATION_UNSET", time.Minute); got != time.Minute {
		t.Errorf("expected fallback, got %s", got)
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" https://a.example ,,https://b.example, ")
	want := []string{"https://a.example", "https://b.example"}
	if !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if splitList("") != nil {
		t.Error("expected nil for empty input")
	}
}

func TestSimulateRunsToEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.yaml")
	content := `title: Demo
duration: 3
interactions:
  - id: 0
    library: H5P.Text 1.0
    from: 0
    to: 2
    params:
      text: hello
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	if err := simulate(ctx, []string{"-f", path, "-speed", "20"}); err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if ctx.Err() != nil {
		t.Fatal("simulation did not reach the end before the deadline")
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("expected a sped-up run, took %s", time.Since(start))
	}
}

func TestSimulateResumesAfterPauseOnShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quiz.yaml")
	content := `title: Quiz
duration: 3
interactions:
  - id: 0
    library: H5P.MultiChoice 1.0
    from: 1
    to: 2
    pauseOnShow: true
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := simulate(ctx, []string{"-f", path, "-speed", "10"}); err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if ctx.Err() != nil {
		t.Fatal("simulation stayed paused at the interaction")
	}
}

func TestSimulateHoldStaysPaused(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quiz.yaml")
	content := `title: Quiz
duration: 3
interactions:
  - id: 0
    library: H5P.MultiChoice 1.0
    from: 1
    to: 2
    pauseOnShow: true
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := simulate(ctx, []string{"-f", path, "-speed", "10", "-hold"}); err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if ctx.Err() == nil {
		t.Fatal("expected -hold to keep playback paused until the deadline")
	}
}

func TestSimulateRequiresDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(path, []byte("title: Empty\ninteractions: []\n"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	if err := simulate(context.Background(), []string{"-f", path}); err == nil {
		t.Fatal("expected error without a duration")
	}
}
