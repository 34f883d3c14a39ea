package extract

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"shortvid-saver/pkg/models"
)

// addrField binds one historical address-field alias set to its source tier
type addrField struct {
	keys []string
	tier models.SourceTier
}

// Ordering matters: earlier fields are better sources and dedup is
// first-wins.
var addrFields = []addrField{
	{keys: []string{"play_addr", "playAddr", "PlayAddr"}, tier: models.TierPrimary},
	{keys: []string{"play_addr_265"}, tier: models.TierCodecVariant},
	{keys: []string{"play_addr_h264"}, tier: models.TierCodecVariant},
	{keys: []string{"download_addr", "downloadAddr"}, tier: models.TierDownload},
	{keys: []string{"play_addr_lowbr"}, tier: models.TierPerformance},
}

var ladderKeys = []string{"bit_rate", "bitrateInfo", "BitrateInfo"}
var ladderRateKeys = []string{"bit_rate", "bitrate", "Bitrate"}

// CollectCandidates gathers every URL-bearing field of a video sub-object
// across the known historical aliases and encodings, deduplicated and
// order-preserving. Structurally invalid strings are never emitted.
func CollectCandidates(video map[string]interface{}, desc *Descriptor) []models.URLCandidate {
	var out []models.URLCandidate
	seen := make(map[string]bool)

	emit := func(rawURL string, tier models.SourceTier, bitrate int64) bool {
		if rawURL == "" || seen[rawURL] {
			return false
		}
		seen[rawURL] = true
		out = append(out, models.URLCandidate{URL: rawURL, Tier: tier, Bitrate: bitrate})
		return true
	}

	for _, field := range addrFields {
		for _, key := range field.keys {
			if addr, ok := video[key]; ok && addr != nil {
				collectFromAddr(addr, field.tier, 0, desc, emit)
			}
		}
	}

	for _, key := range ladderKeys {
		ladder, ok := video[key].([]interface{})
		if !ok {
			continue
		}
		for _, item := range ladder {
			entry, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			bitrate := ladderBitrate(entry)
			for _, addrKey := range []string{"play_addr", "playAddr", "PlayAddr"} {
				if addr, ok := entry[addrKey]; ok && addr != nil {
					collectFromAddr(addr, models.TierBitrate, bitrate, desc, emit)
				}
			}
		}
	}

	// bare single-URL fields from older schema versions
	for _, key := range []string{"playApi", "play_url"} {
		if s, ok := video[key].(string); ok {
			if u := probeURL(s); u != "" {
				emit(u, models.TierPrimary, 0)
			}
		}
	}

	return out
}

// collectFromAddr extracts every URL from one address object. The opaque
// resource-key reconstruction runs only when the string-list and main-URL
// fields of this address object yielded nothing.
func collectFromAddr(addr interface{}, tier models.SourceTier, bitrate int64, desc *Descriptor, emit func(string, models.SourceTier, int64) bool) {
	switch t := addr.(type) {
	case string:
		if u := probeURL(t); u != "" {
			emit(u, tier, bitrate)
		}
		return
	case map[string]interface{}:
		emitted := false
		for _, listKey := range []string{"url_list", "urlList", "UrlList"} {
			list, ok := t[listKey].([]interface{})
			if !ok {
				continue
			}
			for _, item := range list {
				s, ok := item.(string)
				if !ok {
					continue
				}
				if u := probeURL(s); u != "" {
					if emit(u, tier, bitrate) {
						emitted = true
					}
				}
			}
		}

		for _, mainKey := range []string{"main_url", "mainUrl"} {
			if s, ok := t[mainKey].(string); ok {
				if u := probeURL(s); u != "" {
					if emit(u, tier, bitrate) {
						emitted = true
					}
				}
			}
		}

		uri := resourceKey(t)
		if uri != "" && strings.HasPrefix(uri, "http") {
			if emit(uri, tier, bitrate) {
				emitted = true
			}
		}
		if !emitted && uri != "" && desc.PlayTemplate != "" {
			emit(fmt.Sprintf(desc.PlayTemplate, url.QueryEscape(uri)), tier, bitrate)
		}
	}
}

func resourceKey(addr map[string]interface{}) string {
	for _, key := range []string{"uri", "url_key", "urlKey"} {
		if s, ok := addr[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// probeURL accepts plain HTTP URLs as-is and base64-probes everything else:
// a decode is accepted only when the decoded value itself starts with an
// HTTP scheme.
func probeURL(value string) string {
	if value == "" {
		return ""
	}
	if strings.HasPrefix(value, "http") {
		return value
	}
	decoded, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		decoded, err = base64.RawStdEncoding.DecodeString(value)
		if err != nil {
			return ""
		}
	}
	if strings.HasPrefix(string(decoded), "http") {
		return string(decoded)
	}
	return ""
}

func ladderBitrate(entry map[string]interface{}) int64 {
	for _, key := range ladderRateKeys {
		if n, ok := entry[key].(float64); ok {
			return int64(n)
		}
	}
	return 0
}

// URLStrings flattens candidates to their URLs, preserving order
func URLStrings(candidates []models.URLCandidate) []string {
	urls := make([]string, 0, len(candidates))
	for _, c := range candidates {
		urls = append(urls, c.URL)
	}
	return urls
}
