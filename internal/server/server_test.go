package server

import (
	"testing"

	"shortvid-saver/pkg/models"
)

func TestClassifyDownloadError(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		expected models.ErrorKind
	}{
		{"forbidden source", "403: source rejected the transfer", models.KindDownload403},
		{"connection dropped", "connection reset by peer", models.KindInterrupted},
		{"empty message", "", models.KindInterrupted},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := classifyDownloadError(test.message)
			if !models.IsKind(err, test.expected) {
				t.Errorf("Expected kind %s, got %v", test.expected, err)
			}
		})
	}
}

func TestTakeDownloadPlatform(t *testing.T) {
	s := &Server{downloadPlatforms: map[int64]models.Platform{
		7: models.PlatformDouyin,
	}}

	if got := s.takeDownloadPlatform(7); got != models.PlatformDouyin {
		t.Errorf("Expected douyin, got %s", got)
	}
	// terminal events consume the entry
	if got := s.takeDownloadPlatform(7); got != "" {
		t.Errorf("Expected the entry to be gone, got %s", got)
	}
	if got := s.takeDownloadPlatform(99); got != "" {
		t.Errorf("Expected empty platform for an unknown id, got %s", got)
	}
}
