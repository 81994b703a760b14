package validate

import "testing"

func TestTitle(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"valid", "My Video", ""},
		{"empty", "", ""},
		{"at limit", string(make([]byte, MaxTitleLength)), ""},
		{"over limit", string(make([]byte, MaxTitleLength+1)), "title must be 500 characters or fewer"},
	}
	for _, tt := range tests {
		if got := Title(tt.input); got != tt.want {
			t.Errorf("Title(%q [len=%d]) = %q, want %q", tt.name, len(tt.input), got, tt.want)
		}
	}
}

func TestInteractionLabel(t *testing.T) {
	if got := InteractionLabel("Quiz"); got != "" {
		t.Errorf("unexpected message %q", got)
	}
	want := "interaction label must be 200 characters or fewer"
	if got := InteractionLabel(string(make([]byte, MaxInteractionLabelLength+1))); got != want {
		t.Errorf("InteractionLabel(over limit) = %q, want %q", got, want)
	}
}

func TestParams(t *testing.T) {
	if got := Params(make([]byte, MaxParamsBytes)); got != "" {
		t.Errorf("unexpected message at limit: %q", got)
	}
	if got := Params(make([]byte, MaxParamsBytes+1)); got == "" {
		t.Error("expected message over limit")
	}
}

func TestVideoDuration(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "duration must be positive"},
		{-1, "duration must be positive"},
		{90.5, ""},
		{24 * 60 * 60, ""},
		{24*60*60 + 1, "duration must be 24 hours or less"},
	}
	for _, tt := range tests {
		if got := VideoDuration(tt.seconds); got != tt.want {
			t.Errorf("VideoDuration(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestFieldLimits(t *testing.T) {
	limits := FieldLimits()
	if limits["title"] != MaxTitleLength || limits["interactionLabel"] != MaxInteractionLabelLength {
		t.Errorf("unexpected limits: %v", limits)
	}
}
