package utils

import (
	"strings"
	"testing"

	"shortvid-saver/pkg/models"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain ascii unchanged",
			input:    "simple_name",
			expected: "simple_name",
		},
		{
			name:     "path separators replaced",
			input:    `a/b\c:d`,
			expected: "a_b_c_d",
		},
		{
			name:     "non-ascii collapsed",
			input:    "日常vlog记录",
			expected: "vlog",
		},
		{
			name:     "whitespace collapsed to single underscore",
			input:    "a   b\tc",
			expected: "a_b_c",
		},
		{
			name:     "leading and trailing underscores trimmed",
			input:    "__name__",
			expected: "name",
		},
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := SanitizeName(test.input); got != test.expected {
				t.Errorf("Expected %q, got %q", test.expected, got)
			}
		})
	}
}

func TestSanitizeNameIdempotent(t *testing.T) {
	inputs := []string{"a/b c日常", "  weird -- name ** ", "plain"}
	for _, input := range inputs {
		once := SanitizeName(input)
		twice := SanitizeName(once)
		if once != twice {
			t.Errorf("Expected idempotence for %q: first %q, second %q", input, once, twice)
		}
	}
}

func TestExtensionFromURL(t *testing.T) {
	tests := []struct {
		url      string
		expected string
	}{
		{"https://cdn.example.com/a.mp4", "mp4"},
		{"https://cdn.example.com/a.mp4?sig=x", "mp4"},
		{"https://cdn.example.com/a.m3u8", "m3u8"},
		{"https://cdn.example.com/play?id=1", "mp4"},
		{"", "mp4"},
	}

	for _, test := range tests {
		if got := ExtensionFromURL(test.url); got != test.expected {
			t.Errorf("ExtensionFromURL(%q): expected %s, got %s", test.url, test.expected, got)
		}
	}
}

func TestBuildFilename(t *testing.T) {
	tests := []struct {
		name     string
		author   string
		id       string
		format   models.Format
		expected string
	}{
		{
			name:     "author and id joined",
			author:   "walker",
			id:       "7300000000000000001",
			format:   models.FormatMP4,
			expected: "walker_7300000000000000001.mp4",
		},
		{
			name:     "author with unsafe characters",
			author:   "my/channel: daily",
			id:       "42",
			format:   models.FormatMP4,
			expected: "my_channel_daily_42.mp4",
		},
		{
			name:     "missing author",
			author:   "",
			id:       "42",
			format:   models.FormatMP4,
			expected: "42.mp4",
		},
		{
			name:     "everything missing falls back",
			author:   "",
			id:       "",
			format:   models.FormatMP4,
			expected: "video.mp4",
		},
		{
			name:     "unknown format defaults to mp4",
			author:   "a",
			id:       "1",
			format:   models.FormatUnknown,
			expected: "a_1.mp4",
		},
		{
			name:     "m3u8 format preserved",
			author:   "a",
			id:       "1",
			format:   models.FormatM3U8,
			expected: "a_1.m3u8",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := BuildFilename(test.author, test.id, test.format); got != test.expected {
				t.Errorf("Expected %q, got %q", test.expected, got)
			}
		})
	}
}

func TestBuildFilenameCapsLength(t *testing.T) {
	author := strings.Repeat("a", 150)
	got := BuildFilename(author, "12345", models.FormatMP4)

	base := strings.TrimSuffix(got, ".mp4")
	if len(base) > 100 {
		t.Errorf("Expected base capped at 100 characters, got %d", len(base))
	}
	if !strings.HasSuffix(got, ".mp4") {
		t.Errorf("Expected the extension to survive the cap, got %q", got)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "extension preserved",
			input:    "my video.mp4",
			expected: "my_video.mp4",
		},
		{
			name:     "no extension gains mp4",
			input:    "clip",
			expected: "clip.mp4",
		},
		{
			name:     "empty input",
			input:    "",
			expected: "video.mp4",
		},
		{
			name:     "unsafe base with m3u8 extension",
			input:    "a/b.m3u8",
			expected: "a_b.m3u8",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := SanitizeFilename(test.input); got != test.expected {
				t.Errorf("Expected %q, got %q", test.expected, got)
			}
		})
	}
}
