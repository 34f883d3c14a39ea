package extract

import (
	"strings"

	"shortvid-saver/pkg/models"
)

// Classify determines the container/stream type of a URL by file-extension
// suffix with the query string stripped, falling back to known
// query-parameter hints when the suffix is absent.
func Classify(rawURL string) models.Format {
	if rawURL == "" {
		return models.FormatUnknown
	}
	clean := strings.ToLower(strings.SplitN(rawURL, "?", 2)[0])
	switch {
	case strings.HasSuffix(clean, ".m3u8"):
		return models.FormatM3U8
	case strings.HasSuffix(clean, ".mp4"):
		return models.FormatMP4
	}

	lower := strings.ToLower(rawURL)
	switch {
	case strings.Contains(lower, "mime_type=video_mp4"), strings.Contains(lower, "format=mp4"):
		return models.FormatMP4
	case strings.Contains(lower, "mime_type=video_m3u8"), strings.Contains(lower, "format=m3u8"):
		return models.FormatM3U8
	}
	return models.FormatUnknown
}

// SelectBest picks the single best candidate: any mp4 first, highest declared
// bitrate winning ties (unknown/zero bitrate sorts last); else any m3u8 with
// the same tie-break; else the first candidate regardless of classification.
func SelectBest(candidates []models.URLCandidate) (models.URLCandidate, bool) {
	if len(candidates) == 0 {
		return models.URLCandidate{}, false
	}

	if best, ok := bestOfFormat(candidates, models.FormatMP4); ok {
		return best, true
	}
	if best, ok := bestOfFormat(candidates, models.FormatM3U8); ok {
		return best, true
	}
	return candidates[0], true
}

func bestOfFormat(candidates []models.URLCandidate, format models.Format) (models.URLCandidate, bool) {
	var best models.URLCandidate
	found := false
	for _, c := range candidates {
		if Classify(c.URL) != format {
			continue
		}
		if !found || c.Bitrate > best.Bitrate {
			best = c
			found = true
		}
	}
	return best, found
}

// SelectNoWatermark returns the first candidate drawn from a tier known to
// predate watermark compositing, "" when none exists.
func SelectNoWatermark(candidates []models.URLCandidate) string {
	for _, c := range candidates {
		if c.Tier == models.TierPrimary || c.Tier == models.TierCodecVariant {
			return c.URL
		}
	}
	return ""
}

// AllStreamOnly reports whether every candidate classifies as m3u8. The
// download-bound resolver treats this as terminal FORMAT_UNSUPPORTED.
func AllStreamOnly(candidates []models.URLCandidate) bool {
	if len(candidates) == 0 {
		return false
	}
	for _, c := range candidates {
		if Classify(c.URL) != models.FormatM3U8 {
			return false
		}
	}
	return true
}
