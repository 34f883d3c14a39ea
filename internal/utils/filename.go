package utils

import (
	"regexp"
	"strings"

	"shortvid-saver/pkg/models"
)

var (
	invalidChars = regexp.MustCompile(`[\\/:*?"<>|]`)
	nonASCII     = regexp.MustCompile("[^\x20-\x7e]")
	whitespace   = regexp.MustCompile(`\s+`)
	underscores  = regexp.MustCompile(`_+`)
)

// maxBaseLength caps the filename base, before the extension
const maxBaseLength = 100

// SanitizeName reduces input to a filesystem-safe, ASCII-only,
// underscore-delimited token. Idempotent.
func SanitizeName(input string) string {
	if input == "" {
		return ""
	}
	s := invalidChars.ReplaceAllString(input, "_")
	s = nonASCII.ReplaceAllString(s, "_")
	s = whitespace.ReplaceAllString(s, "_")
	s = underscores.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// ExtensionFromURL derives a file extension from the URL suffix, query
// string stripped, defaulting to mp4 when undetectable.
func ExtensionFromURL(url string) string {
	if url == "" {
		return "mp4"
	}
	clean := strings.ToLower(strings.SplitN(url, "?", 2)[0])
	switch {
	case strings.HasSuffix(clean, ".m3u8"):
		return "m3u8"
	case strings.HasSuffix(clean, ".mp4"):
		return "mp4"
	}
	return "mp4"
}

// BuildFilename constructs the suggested download filename from author and
// identifier, capped at 100 characters before the extension.
func BuildFilename(author, id string, format models.Format) string {
	safeAuthor := SanitizeName(author)
	safeID := SanitizeName(id)

	parts := make([]string, 0, 2)
	if safeAuthor != "" {
		parts = append(parts, safeAuthor)
	}
	if safeID != "" {
		parts = append(parts, safeID)
	}
	base := strings.Join(parts, "_")
	if len(base) > maxBaseLength {
		base = strings.Trim(base[:maxBaseLength], "_")
	}
	if base == "" {
		base = "video"
	}

	ext := string(format)
	if format == "" || format == models.FormatUnknown {
		ext = "mp4"
	}
	return base + "." + ext
}

// SanitizeFilename sanitizes a complete filename, preserving its extension
func SanitizeFilename(filename string) string {
	if filename == "" {
		return "video.mp4"
	}
	idx := strings.LastIndex(filename, ".")
	if idx <= 0 {
		base := SanitizeName(filename)
		if len(base) > maxBaseLength {
			base = strings.Trim(base[:maxBaseLength], "_")
		}
		if base == "" {
			base = "video"
		}
		return base + ".mp4"
	}

	ext := filename[idx+1:]
	base := SanitizeName(filename[:idx])
	if len(base) > maxBaseLength {
		base = strings.Trim(base[:maxBaseLength], "_")
	}
	if base == "" {
		base = "video"
	}
	return base + "." + ext
}
