package extract

import (
	"encoding/base64"
	"testing"

	"shortvid-saver/pkg/models"
)

func addrList(urls ...string) map[string]interface{} {
	list := make([]interface{}, 0, len(urls))
	for _, u := range urls {
		list = append(list, u)
	}
	return map[string]interface{}{"url_list": list}
}

func TestCollectCandidatesTierOrdering(t *testing.T) {
	video := map[string]interface{}{
		"play_addr":       addrList("https://primary.mp4"),
		"play_addr_265":   addrList("https://codec.mp4"),
		"download_addr":   addrList("https://download.mp4"),
		"play_addr_lowbr": addrList("https://lowbr.mp4"),
		"bit_rate": []interface{}{
			map[string]interface{}{
				"bit_rate":  float64(1200),
				"play_addr": addrList("https://ladder.mp4"),
			},
		},
	}

	candidates := CollectCandidates(video, Douyin())
	if len(candidates) != 5 {
		t.Fatalf("Expected 5 candidates, got %d", len(candidates))
	}

	expected := []struct {
		url  string
		tier models.SourceTier
	}{
		{"https://primary.mp4", models.TierPrimary},
		{"https://codec.mp4", models.TierCodecVariant},
		{"https://download.mp4", models.TierDownload},
		{"https://lowbr.mp4", models.TierPerformance},
		{"https://ladder.mp4", models.TierBitrate},
	}
	for i, exp := range expected {
		if candidates[i].URL != exp.url {
			t.Errorf("Candidate %d: expected URL %s, got %s", i, exp.url, candidates[i].URL)
		}
		if candidates[i].Tier != exp.tier {
			t.Errorf("Candidate %d: expected tier %s, got %s", i, exp.tier, candidates[i].Tier)
		}
	}
	if candidates[4].Bitrate != 1200 {
		t.Errorf("Expected ladder bitrate 1200, got %d", candidates[4].Bitrate)
	}
}

func TestCollectCandidatesDedupFirstWins(t *testing.T) {
	video := map[string]interface{}{
		"play_addr":     addrList("https://same.mp4"),
		"download_addr": addrList("https://same.mp4"),
	}

	candidates := CollectCandidates(video, Douyin())
	if len(candidates) != 1 {
		t.Fatalf("Expected 1 deduplicated candidate, got %d", len(candidates))
	}
	if candidates[0].Tier != models.TierPrimary {
		t.Errorf("Expected the first-seen tier %s, got %s", models.TierPrimary, candidates[0].Tier)
	}
}

func TestCollectCandidatesURLListAliases(t *testing.T) {
	video := map[string]interface{}{
		"playAddr": map[string]interface{}{
			"urlList": []interface{}{"https://camel.mp4"},
		},
	}

	candidates := CollectCandidates(video, TikTok())
	if len(candidates) != 1 {
		t.Fatalf("Expected 1 candidate from the camelCase alias, got %d", len(candidates))
	}
	if candidates[0].URL != "https://camel.mp4" {
		t.Errorf("Expected https://camel.mp4, got %s", candidates[0].URL)
	}
}

func TestCollectCandidatesBase64Probe(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("https://decoded.mp4"))
	notAURL := base64.StdEncoding.EncodeToString([]byte("hello world"))
	video := map[string]interface{}{
		"play_addr": addrList(encoded, notAURL, "garbage-not-base64!!!"),
	}

	candidates := CollectCandidates(video, Douyin())
	if len(candidates) != 1 {
		t.Fatalf("Expected only the decodable HTTP value, got %d candidates", len(candidates))
	}
	if candidates[0].URL != "https://decoded.mp4" {
		t.Errorf("Expected https://decoded.mp4, got %s", candidates[0].URL)
	}
}

func TestCollectCandidatesResourceKeyReconstruction(t *testing.T) {
	video := map[string]interface{}{
		"play_addr": map[string]interface{}{"uri": "v0200fabc"},
	}

	candidates := CollectCandidates(video, Douyin())
	if len(candidates) != 1 {
		t.Fatalf("Expected 1 reconstructed candidate, got %d", len(candidates))
	}
	expected := "https://www.douyin.com/aweme/v1/play/?video_id=v0200fabc"
	if candidates[0].URL != expected {
		t.Errorf("Expected %s, got %s", expected, candidates[0].URL)
	}
}

func TestCollectCandidatesResourceKeySkippedWhenAddrYielded(t *testing.T) {
	video := map[string]interface{}{
		"play_addr": map[string]interface{}{
			"url_list": []interface{}{"https://direct.mp4"},
			"uri":      "v0200fabc",
		},
	}

	candidates := CollectCandidates(video, Douyin())
	if len(candidates) != 1 {
		t.Fatalf("Expected only the direct URL, got %d candidates", len(candidates))
	}
	if candidates[0].URL != "https://direct.mp4" {
		t.Errorf("Expected https://direct.mp4, got %s", candidates[0].URL)
	}
}

func TestCollectCandidatesHTTPResourceKeyEmittedDirectly(t *testing.T) {
	video := map[string]interface{}{
		"play_addr": map[string]interface{}{"uri": "https://already-a-url.mp4"},
	}

	candidates := CollectCandidates(video, Douyin())
	if len(candidates) != 1 {
		t.Fatalf("Expected 1 candidate, got %d", len(candidates))
	}
	if candidates[0].URL != "https://already-a-url.mp4" {
		t.Errorf("Expected the uri emitted as-is, got %s", candidates[0].URL)
	}
}

func TestCollectCandidatesBareStringFields(t *testing.T) {
	video := map[string]interface{}{
		"playApi": "https://legacy.mp4",
	}

	candidates := CollectCandidates(video, Douyin())
	if len(candidates) != 1 {
		t.Fatalf("Expected 1 candidate from the legacy field, got %d", len(candidates))
	}
	if candidates[0].Tier != models.TierPrimary {
		t.Errorf("Expected tier %s, got %s", models.TierPrimary, candidates[0].Tier)
	}
}

func TestCollectCandidatesEmptyVideo(t *testing.T) {
	if candidates := CollectCandidates(map[string]interface{}{}, Douyin()); len(candidates) != 0 {
		t.Errorf("Expected no candidates from an empty video node, got %d", len(candidates))
	}
}
