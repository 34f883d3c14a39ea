package downloader

import (
	"testing"
	"time"
)

func TestTrackerArmAndClaim(t *testing.T) {
	tracker := NewTracker()

	tracker.Arm("https://cdn.example.com/a.mp4", "rec-1")

	if got := tracker.Claim("https://cdn.example.com/a.mp4"); got != "rec-1" {
		t.Errorf("Expected rec-1, got %q", got)
	}
}

func TestTrackerClaimClearsEntry(t *testing.T) {
	tracker := NewTracker()

	tracker.Arm("https://cdn.example.com/a.mp4", "rec-1")
	tracker.Claim("https://cdn.example.com/a.mp4")

	if got := tracker.Claim("https://cdn.example.com/a.mp4"); got != "" {
		t.Errorf("Expected an empty claim after the first, got %q", got)
	}
}

func TestTrackerClaimNormalizesURL(t *testing.T) {
	tracker := NewTracker()

	tracker.Arm("HTTPS://CDN.Example.com/a.mp4#t=2", "rec-1")

	if got := tracker.Claim("https://cdn.example.com/a.mp4"); got != "rec-1" {
		t.Errorf("Expected normalization to match, got %q", got)
	}
}

func TestTrackerRearmReplaces(t *testing.T) {
	tracker := NewTracker()

	tracker.Arm("https://cdn.example.com/a.mp4", "rec-1")
	tracker.Arm("https://cdn.example.com/a.mp4", "rec-2")

	if got := tracker.Claim("https://cdn.example.com/a.mp4"); got != "rec-2" {
		t.Errorf("Expected the later arm to win, got %q", got)
	}
}

func TestTrackerExpiry(t *testing.T) {
	tracker := NewTracker()
	current := time.Now()
	tracker.now = func() time.Time { return current }

	tracker.Arm("https://cdn.example.com/a.mp4", "rec-1")

	current = current.Add(armedTTL + time.Second)
	if got := tracker.Claim("https://cdn.example.com/a.mp4"); got != "" {
		t.Errorf("Expected the armed entry to expire, got %q", got)
	}
}

func TestTrackerClaimWithinTTL(t *testing.T) {
	tracker := NewTracker()
	current := time.Now()
	tracker.now = func() time.Time { return current }

	tracker.Arm("https://cdn.example.com/a.mp4", "rec-1")

	current = current.Add(armedTTL - time.Second)
	if got := tracker.Claim("https://cdn.example.com/a.mp4"); got != "rec-1" {
		t.Errorf("Expected the entry to survive within the window, got %q", got)
	}
}

func TestTrackerDisarm(t *testing.T) {
	tracker := NewTracker()

	tracker.Arm("https://cdn.example.com/a.mp4", "rec-1")
	tracker.Disarm("https://cdn.example.com/a.mp4")

	if got := tracker.Claim("https://cdn.example.com/a.mp4"); got != "" {
		t.Errorf("Expected nothing after disarm, got %q", got)
	}
}

func TestTrackerUnparsableURL(t *testing.T) {
	tracker := NewTracker()

	tracker.Arm("not a url", "rec-1")

	if got := tracker.Claim("not a url"); got != "" {
		t.Errorf("Expected hostless input to be ignored, got %q", got)
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "scheme and host lowercased",
			input:    "HTTPS://CDN.Example.com/Path/A.mp4",
			expected: "https://cdn.example.com/Path/A.mp4",
		},
		{
			name:     "fragment stripped",
			input:    "https://cdn.example.com/a.mp4#t=5",
			expected: "https://cdn.example.com/a.mp4",
		},
		{
			name:     "surrounding whitespace trimmed",
			input:    "  https://cdn.example.com/a.mp4  ",
			expected: "https://cdn.example.com/a.mp4",
		},
		{
			name:     "no host",
			input:    "/relative/path.mp4",
			expected: "",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := normalizeURL(test.input); got != test.expected {
				t.Errorf("Expected %q, got %q", test.expected, got)
			}
		})
	}
}
