package extract

import (
	"regexp"
	"strings"

	"shortvid-saver/pkg/models"
)

// PayloadSource names one embedded-data mechanism a page may use, in the
// order they should be tried.
type PayloadSource struct {
	ElementID string
	Kind      models.SourceKind
	// Encoded marks blobs that arrive percent-encoded and need decode rounds
	Encoded bool
	// Clamp cuts the text to the outermost braces before parsing
	Clamp bool
}

// Descriptor parametrizes the extraction engine for one platform. The
// upstream data shapes are undocumented and change without notice, so every
// historically observed element id, field alias and endpoint lives here.
// New schema versions are added to these lists, never forked into a second
// engine.
type Descriptor struct {
	Platform models.Platform

	// Hosts are hostname substrings identifying the platform
	Hosts []string
	// ShortHosts are redirect-only share-link hosts
	ShortHosts []string

	// PayloadSources is the ordered element-id list for the Payload Locator
	PayloadSources []PayloadSource
	// AssignPatterns scrape legacy JavaScript-assignment blobs that are not
	// exposed in a dedicated element (page-fetch path only)
	AssignPatterns []*regexp.Regexp

	// DetailKeys are known detail-wrapper field names
	DetailKeys []string
	// ListKeys are known list-shaped record containers
	ListKeys []string
	// IDKeys are known record-identifier field names
	IDKeys []string

	// APITemplate is the item-info endpoint, keyed by numeric identifier
	APITemplate string
	// PlayTemplate reconstructs a playable URL from an opaque resource key
	PlayTemplate string

	// VideoHostHints mark the platform's dedicated video-delivery hosts for
	// the network-resource fallback
	VideoHostHints []string

	// IDPattern extracts the video identifier from a canonical page URL
	IDPattern *regexp.Regexp
}

var routerDataPattern = regexp.MustCompile(`(?i)window\._ROUTER_DATA\s*=\s*(\{[\s\S]*?\});?\s*</script>`)

// Douyin returns the schema descriptor for douyin.com
func Douyin() *Descriptor {
	return &Descriptor{
		Platform:   models.PlatformDouyin,
		Hosts:      []string{"douyin.com", "iesdouyin.com"},
		ShortHosts: []string{"v.douyin.com"},
		PayloadSources: []PayloadSource{
			{ElementID: "RENDER_DATA", Kind: models.SourceRenderData, Encoded: true},
			{ElementID: "__NEXT_DATA__", Kind: models.SourceNextData},
		},
		AssignPatterns: []*regexp.Regexp{routerDataPattern},
		DetailKeys:     []string{"aweme_detail", "awemeDetail", "aweme", "detail", "awemeInfo"},
		ListKeys:       []string{"aweme_list", "item_list"},
		IDKeys:         []string{"aweme_id", "awemeId", "id"},
		APITemplate:    "https://www.iesdouyin.com/web/api/v2/aweme/iteminfo/?item_ids=%s",
		PlayTemplate:   "https://www.douyin.com/aweme/v1/play/?video_id=%s",
		VideoHostHints: []string{"douyinvod.com", "v26-web.douyinvod.com", "aweme.snssdk.com"},
		IDPattern:      regexp.MustCompile(`/video/(\d+)`),
	}
}

// TikTok returns the schema descriptor for tiktok.com
func TikTok() *Descriptor {
	return &Descriptor{
		Platform:   models.PlatformTikTok,
		Hosts:      []string{"tiktok.com"},
		ShortHosts: []string{"vt.tiktok.com", "vm.tiktok.com"},
		PayloadSources: []PayloadSource{
			{ElementID: "SIGI_STATE", Kind: models.SourceSigiState, Clamp: true},
			{ElementID: "__UNIVERSAL_DATA_FOR_REHYDRATION__", Kind: models.SourceNextData},
			{ElementID: "__NEXT_DATA__", Kind: models.SourceNextData},
		},
		DetailKeys:     []string{"itemStruct", "itemInfo", "aweme_detail", "detail"},
		ListKeys:       []string{"item_list", "aweme_list"},
		IDKeys:         []string{"aweme_id", "awemeId", "id"},
		APITemplate:    "https://api16-normal-c-useast1a.tiktokv.com/aweme/v1/feed/?aweme_id=%s",
		PlayTemplate:   "https://api16-normal-c-useast1a.tiktokv.com/aweme/v1/play/?video_id=%s",
		VideoHostHints: []string{"tiktokcdn.com", "v16-webapp.tiktok.com", "v19-webapp.tiktok.com"},
		IDPattern:      regexp.MustCompile(`/video/(\d+)`),
	}
}

// Descriptors returns all known platform descriptors
func Descriptors() []*Descriptor {
	return []*Descriptor{Douyin(), TikTok()}
}

// MatchesHost reports whether hostname belongs to this platform
func (d *Descriptor) MatchesHost(hostname string) bool {
	for _, h := range d.Hosts {
		if strings.Contains(hostname, h) {
			return true
		}
	}
	return false
}

// IsShortHost reports whether hostname is a redirect-only share-link host
func (d *Descriptor) IsShortHost(hostname string) bool {
	for _, h := range d.ShortHosts {
		if hostname == h {
			return true
		}
	}
	return false
}

// VideoIDFromURL extracts the video identifier from a page URL, "" when the
// URL does not carry one
func (d *Descriptor) VideoIDFromURL(pageURL string) string {
	m := d.IDPattern.FindStringSubmatch(pageURL)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
