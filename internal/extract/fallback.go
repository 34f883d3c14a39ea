package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// genericVideoMarkers identify video-delivery URLs in resource entries when
// no platform host hint matches
var genericVideoMarkers = []string{".mp4", "mime_type=video", "/aweme/v1/play"}

// ScanMediaElements looks for a currently-playing source URL on the page's
// media elements. Ephemeral blob-scheme URLs cannot be handed to an external
// downloader and are rejected.
func ScanMediaElements(doc *goquery.Document) string {
	found := ""
	doc.Find("video").EachWithBreak(func(_ int, video *goquery.Selection) bool {
		if src, ok := video.Attr("src"); ok {
			if u := usableMediaURL(src); u != "" {
				found = u
				return false
			}
		}
		ok := true
		video.Find("source").EachWithBreak(func(_ int, source *goquery.Selection) bool {
			if src, exists := source.Attr("src"); exists {
				if u := usableMediaURL(src); u != "" {
					found = u
					ok = false
					return false
				}
			}
			return true
		})
		return ok
	})
	return found
}

func usableMediaURL(src string) string {
	src = strings.TrimSpace(src)
	if src == "" || strings.HasPrefix(src, "blob:") {
		return ""
	}
	if !strings.HasPrefix(src, "http") {
		return ""
	}
	return src
}

// ScanResources scans recently loaded network-resource entries (oldest
// first) for video-delivery URLs. Entries on the platform's dedicated video
// host win over generic matches, and among equals the most recently loaded
// entry wins.
func ScanResources(entries []string, desc *Descriptor) string {
	generic := ""
	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		if entry == "" || strings.HasPrefix(entry, "blob:") {
			continue
		}
		for _, hint := range desc.VideoHostHints {
			if strings.Contains(entry, hint) {
				return entry
			}
		}
		if generic == "" {
			lower := strings.ToLower(entry)
			for _, marker := range genericVideoMarkers {
				if strings.Contains(lower, marker) {
					generic = entry
					break
				}
			}
		}
	}
	return generic
}
