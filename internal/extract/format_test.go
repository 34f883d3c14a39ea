package extract

import (
	"testing"

	"shortvid-saver/pkg/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		url      string
		expected models.Format
	}{
		{"https://cdn.example.com/video.mp4", models.FormatMP4},
		{"https://cdn.example.com/video.MP4?sig=abc", models.FormatMP4},
		{"https://cdn.example.com/stream.m3u8", models.FormatM3U8},
		{"https://cdn.example.com/stream.m3u8?token=x", models.FormatM3U8},
		{"https://cdn.example.com/play?mime_type=video_mp4&id=1", models.FormatMP4},
		{"https://cdn.example.com/play?format=m3u8", models.FormatM3U8},
		{"https://cdn.example.com/play?id=1", models.FormatUnknown},
		{"", models.FormatUnknown},
	}

	for _, test := range tests {
		if got := Classify(test.url); got != test.expected {
			t.Errorf("Classify(%q): expected %s, got %s", test.url, test.expected, got)
		}
	}
}

func TestSelectBestPrefersMP4(t *testing.T) {
	candidates := []models.URLCandidate{
		{URL: "https://a.m3u8", Tier: models.TierPrimary},
		{URL: "https://b.mp4", Tier: models.TierDownload},
	}

	best, ok := SelectBest(candidates)
	if !ok {
		t.Fatal("Expected a best candidate")
	}
	if best.URL != "https://b.mp4" {
		t.Errorf("Expected the mp4 candidate, got %s", best.URL)
	}
}

func TestSelectBestBitrateTieBreak(t *testing.T) {
	candidates := []models.URLCandidate{
		{URL: "https://low.mp4", Bitrate: 800},
		{URL: "https://high.mp4", Bitrate: 2400},
		{URL: "https://unknown.mp4", Bitrate: 0},
	}

	best, ok := SelectBest(candidates)
	if !ok {
		t.Fatal("Expected a best candidate")
	}
	if best.URL != "https://high.mp4" {
		t.Errorf("Expected the highest-bitrate mp4, got %s", best.URL)
	}
}

func TestSelectBestZeroBitrateKeepsFirst(t *testing.T) {
	candidates := []models.URLCandidate{
		{URL: "https://first.mp4", Bitrate: 0},
		{URL: "https://second.mp4", Bitrate: 0},
	}

	best, _ := SelectBest(candidates)
	if best.URL != "https://first.mp4" {
		t.Errorf("Expected the first candidate on a bitrate tie, got %s", best.URL)
	}
}

func TestSelectBestM3U8Fallback(t *testing.T) {
	candidates := []models.URLCandidate{
		{URL: "https://a.m3u8", Bitrate: 500},
		{URL: "https://b.m3u8", Bitrate: 900},
	}

	best, _ := SelectBest(candidates)
	if best.URL != "https://b.m3u8" {
		t.Errorf("Expected the higher-bitrate m3u8, got %s", best.URL)
	}
}

func TestSelectBestUnclassifiedFallback(t *testing.T) {
	candidates := []models.URLCandidate{
		{URL: "https://a.example/play?id=1"},
		{URL: "https://b.example/play?id=2"},
	}

	best, _ := SelectBest(candidates)
	if best.URL != "https://a.example/play?id=1" {
		t.Errorf("Expected the first candidate when nothing classifies, got %s", best.URL)
	}
}

func TestSelectBestEmpty(t *testing.T) {
	if _, ok := SelectBest(nil); ok {
		t.Error("Expected no best candidate for empty input")
	}
}

func TestSelectNoWatermark(t *testing.T) {
	tests := []struct {
		name       string
		candidates []models.URLCandidate
		expected   string
	}{
		{
			name: "primary tier qualifies",
			candidates: []models.URLCandidate{
				{URL: "https://a.mp4", Tier: models.TierPrimary},
			},
			expected: "https://a.mp4",
		},
		{
			name: "codec variant qualifies",
			candidates: []models.URLCandidate{
				{URL: "https://dl.mp4", Tier: models.TierDownload},
				{URL: "https://codec.mp4", Tier: models.TierCodecVariant},
			},
			expected: "https://codec.mp4",
		},
		{
			name: "download and ladder tiers never qualify",
			candidates: []models.URLCandidate{
				{URL: "https://dl.mp4", Tier: models.TierDownload},
				{URL: "https://ladder.mp4", Tier: models.TierBitrate},
			},
			expected: "",
		},
		{
			name:     "empty input",
			expected: "",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := SelectNoWatermark(test.candidates); got != test.expected {
				t.Errorf("Expected %q, got %q", test.expected, got)
			}
		})
	}
}

func TestAllStreamOnly(t *testing.T) {
	tests := []struct {
		name       string
		candidates []models.URLCandidate
		expected   bool
	}{
		{
			name: "all m3u8",
			candidates: []models.URLCandidate{
				{URL: "https://a.m3u8"},
				{URL: "https://b.m3u8?token=x"},
			},
			expected: true,
		},
		{
			name: "mixed formats",
			candidates: []models.URLCandidate{
				{URL: "https://a.m3u8"},
				{URL: "https://b.mp4"},
			},
			expected: false,
		},
		{
			name:     "empty input is not stream-only",
			expected: false,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := AllStreamOnly(test.candidates); got != test.expected {
				t.Errorf("Expected %t, got %t", test.expected, got)
			}
		})
	}
}
