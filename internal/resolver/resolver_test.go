package resolver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"shortvid-saver/internal/extract"
	"shortvid-saver/pkg/models"
)

func testResolver(opts Options) *Resolver {
	return New(extract.NewEngine(zerolog.Nop()), opts)
}

func TestExtractShareURL(t *testing.T) {
	r := testResolver(Options{})

	tests := []struct {
		name     string
		text     string
		expected string
		platform models.Platform
	}{
		{
			name:     "bare short link",
			text:     "https://v.douyin.com/iAbCdEf/",
			expected: "https://v.douyin.com/iAbCdEf/",
			platform: models.PlatformDouyin,
		},
		{
			name:     "share text around the link",
			text:     "3.21 Abc:/ check this out https://v.douyin.com/iAbCdEf/ 复制此链接",
			expected: "https://v.douyin.com/iAbCdEf/",
			platform: models.PlatformDouyin,
		},
		{
			name:     "trailing punctuation stripped",
			text:     "look: https://v.douyin.com/iAbCdEf，",
			expected: "https://v.douyin.com/iAbCdEf",
			platform: models.PlatformDouyin,
		},
		{
			name:     "short host preferred over canonical page URL",
			text:     "https://www.douyin.com/video/123 https://v.douyin.com/iAbCdEf",
			expected: "https://v.douyin.com/iAbCdEf",
			platform: models.PlatformDouyin,
		},
		{
			name:     "canonical page URL accepted when no short link",
			text:     "https://www.tiktok.com/@user/video/7300000000000000001",
			expected: "https://www.tiktok.com/@user/video/7300000000000000001",
			platform: models.PlatformTikTok,
		},
		{
			name:     "tiktok vm short host",
			text:     "https://vm.tiktok.com/ZMabcdef/",
			expected: "https://vm.tiktok.com/ZMabcdef/",
			platform: models.PlatformTikTok,
		},
		{
			name:     "unsupported domain yields nothing",
			text:     "https://example.com/watch?v=abc",
			expected: "",
		},
		{
			name:     "no URL at all",
			text:     "just some pasted prose",
			expected: "",
		},
		{
			name:     "empty input",
			text:     "",
			expected: "",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			url, desc := r.ExtractShareURL(test.text)
			if url != test.expected {
				t.Errorf("Expected URL %q, got %q", test.expected, url)
			}
			if test.expected == "" {
				if desc != nil {
					t.Errorf("Expected no descriptor, got %s", desc.Platform)
				}
				return
			}
			if desc == nil {
				t.Fatal("Expected a descriptor, got nil")
			}
			if desc.Platform != test.platform {
				t.Errorf("Expected platform %s, got %s", test.platform, desc.Platform)
			}
		})
	}
}

func TestExtractShareURLRestrictedDescriptors(t *testing.T) {
	// a resolver built over a douyin-only engine must not pick up tiktok
	// links, short-host or canonical
	r := New(extract.NewEngine(zerolog.Nop(), extract.Douyin()), Options{})

	tests := []struct {
		name string
		text string
	}{
		{"tiktok short host", "https://vm.tiktok.com/ZMabcdef/"},
		{"tiktok canonical URL", "https://www.tiktok.com/@user/video/7300000000000000001"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if url, desc := r.ExtractShareURL(test.text); url != "" || desc != nil {
				t.Errorf("Expected nothing for an excluded platform, got %q (%v)", url, desc)
			}
		})
	}

	// douyin links still resolve
	url, desc := r.ExtractShareURL("https://v.douyin.com/iAbCdEf/")
	if url == "" || desc == nil || desc.Platform != models.PlatformDouyin {
		t.Errorf("Expected the douyin link to survive, got %q (%v)", url, desc)
	}
}

// localDescriptor builds a descriptor whose canonical host is the test
// server, so Resolve can run its full stage chain against httptest
func localDescriptor(serverURL string) *extract.Descriptor {
	return &extract.Descriptor{
		Platform: models.PlatformDouyin,
		Hosts:    []string{"127.0.0.1"},
		PayloadSources: []extract.PayloadSource{
			{ElementID: "RENDER_DATA", Kind: models.SourceRenderData, Encoded: true},
		},
		DetailKeys:  []string{"aweme_detail"},
		ListKeys:    []string{"aweme_list"},
		IDKeys:      []string{"aweme_id"},
		APITemplate: serverURL + "/item/?item_ids=%s",
		IDPattern:   regexp.MustCompile(`/video/(\d+)`),
	}
}

func TestResolveStreamOnlyIsTerminal(t *testing.T) {
	// a share link whose page carries only stream-format sources must not
	// produce a result: this path feeds an automated download with no
	// user-mediated fallback
	pageHTML := `<html><body>
		<script id="RENDER_DATA" type="application/json">{"app":{"aweme_detail":{"aweme_id":"123","desc":"live cut","video":{"play_addr":{"url_list":["https://v.example.com/a.m3u8","https://v.example.com/b.m3u8"]}}}}}</script>
	</body></html>`

	mux := http.NewServeMux()
	mux.HandleFunc("/video/123", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(pageHTML))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	engine := extract.NewEngine(zerolog.Nop(), localDescriptor(server.URL))
	r := New(engine, Options{})

	_, err := r.Resolve(context.Background(), "look at "+server.URL+"/video/123")
	if !models.IsKind(err, models.KindFormatUnsup) {
		t.Errorf("Expected kind %s, got %v", models.KindFormatUnsup, err)
	}
}

func TestResolveRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/share", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/video/7300000000000000001", http.StatusFound)
	})
	mux.HandleFunc("/video/7300000000000000001", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html></html>"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	r := testResolver(Options{})
	finalURL, err := r.resolveRedirect(context.Background(), server.URL+"/share")
	if err != nil {
		t.Fatalf("Expected redirect to resolve, got error: %v", err)
	}
	if !strings.HasSuffix(finalURL, "/video/7300000000000000001") {
		t.Errorf("Expected the canonical URL, got %s", finalURL)
	}
}

func TestResolveRedirectForbidden(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	r := testResolver(Options{})
	_, err := r.resolveRedirect(context.Background(), server.URL+"/share")
	if !models.IsKind(err, models.KindBlocked) {
		t.Fatalf("Expected kind %s, got %v", models.KindBlocked, err)
	}
	if !strings.Contains(err.Error(), "403") {
		t.Errorf("Expected the message to carry a 403 marker, got %q", err.Error())
	}
}

func TestResolveRedirectNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	r := testResolver(Options{})
	_, err := r.resolveRedirect(context.Background(), server.URL+"/share")
	if !models.IsKind(err, models.KindNetworkFailure) {
		t.Errorf("Expected kind %s, got %v", models.KindNetworkFailure, err)
	}
}

// apiDescriptor builds a descriptor whose item endpoint points at the test
// server
func apiDescriptor(serverURL string) *extract.Descriptor {
	return &extract.Descriptor{
		Platform:    models.PlatformDouyin,
		DetailKeys:  []string{"aweme_detail"},
		ListKeys:    []string{"aweme_list"},
		IDKeys:      []string{"aweme_id"},
		APITemplate: serverURL + "/item/?item_ids=%s",
		IDPattern:   regexp.MustCompile(`/video/(\d+)`),
	}
}

func TestTryItemAPISuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("item_ids"); got != "123" {
			t.Errorf("Expected item_ids=123, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"aweme_detail":{"aweme_id":"123","desc":"clip","video":{"play_addr":{"url_list":["https://v.example.com/play.mp4"]}}}}`))
	}))
	defer server.Close()

	r := testResolver(Options{})
	result := r.tryItemAPI(context.Background(), apiDescriptor(server.URL), "https://www.douyin.com/video/123", "123")
	if result == nil {
		t.Fatal("Expected a result from the item API")
	}
	if result.Source.Kind != models.SourceItemAPI {
		t.Errorf("Expected source %s, got %s", models.SourceItemAPI, result.Source.Kind)
	}
	if result.Video.BestURL != "https://v.example.com/play.mp4" {
		t.Errorf("Unexpected best URL %s", result.Video.BestURL)
	}
}

func TestTryItemAPIFailuresDegradeToNil(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "non-200 status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
		},
		{
			name: "malformed JSON",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("<html>not json</html>"))
			},
		},
		{
			name: "no usable record",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"status_code":2154}`))
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			server := httptest.NewServer(test.handler)
			defer server.Close()

			r := testResolver(Options{})
			result := r.tryItemAPI(context.Background(), apiDescriptor(server.URL), "https://www.douyin.com/video/123", "123")
			if result != nil {
				t.Errorf("Expected nil so the page-fetch stage runs, got %+v", result)
			}
		})
	}
}

func TestTryItemAPISkipsNonNumericID(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	r := testResolver(Options{})
	if result := r.tryItemAPI(context.Background(), apiDescriptor(server.URL), "https://x/video/abc", "abc"); result != nil {
		t.Errorf("Expected nil for a non-numeric id, got %+v", result)
	}
	if called {
		t.Error("Expected no network call for a non-numeric id")
	}
}

func TestFetchAndExtract(t *testing.T) {
	const cookie = "sessionid=abc123"
	pageHTML := `<html><body>
		<script id="RENDER_DATA" type="application/json">{"app":{"aweme_detail":{"aweme_id":"123","video":{"play_addr":{"url_list":["https://v.example.com/page.mp4"]}}}}}</script>
	</body></html>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Cookie"); got != cookie {
			t.Errorf("Expected cookie %q on the page fetch, got %q", cookie, got)
		}
		w.Write([]byte(pageHTML))
	}))
	defer server.Close()

	r := testResolver(Options{
		Cookies: map[models.Platform]string{models.PlatformDouyin: cookie},
	})
	result, err := r.fetchAndExtract(context.Background(), extract.Douyin(), server.URL+"/page", "123")
	if err != nil {
		t.Fatalf("Expected a result, got error: %v", err)
	}
	if result.Video.BestURL != "https://v.example.com/page.mp4" {
		t.Errorf("Unexpected best URL %s", result.Video.BestURL)
	}
	if result.Source.Kind != models.SourceRenderData {
		t.Errorf("Expected source %s, got %s", models.SourceRenderData, result.Source.Kind)
	}
}

func TestFetchAndExtractForbidden(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	r := testResolver(Options{})
	_, err := r.fetchAndExtract(context.Background(), extract.Douyin(), server.URL+"/page", "123")
	if !models.IsKind(err, models.KindBlocked) {
		t.Errorf("Expected kind %s, got %v", models.KindBlocked, err)
	}
}

func TestFetchAndExtractNoEmbeddedData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><p>nothing</p></body></html>"))
	}))
	defer server.Close()

	r := testResolver(Options{})
	_, err := r.fetchAndExtract(context.Background(), extract.Douyin(), server.URL+"/page", "123")
	if !models.IsKind(err, models.KindParseError) {
		t.Errorf("Expected kind %s, got %v", models.KindParseError, err)
	}
}

func TestResolveNoLinkInText(t *testing.T) {
	r := testResolver(Options{})
	_, err := r.Resolve(context.Background(), "nothing to see here")
	if !models.IsKind(err, models.KindNotVideoPage) {
		t.Errorf("Expected kind %s, got %v", models.KindNotVideoPage, err)
	}
}

func TestStreamOnly(t *testing.T) {
	tests := []struct {
		name     string
		urls     []string
		expected bool
	}{
		{
			name:     "all stream URLs",
			urls:     []string{"https://a.m3u8", "https://b.m3u8?sig=x"},
			expected: true,
		},
		{
			name:     "mp4 present",
			urls:     []string{"https://a.m3u8", "https://b.mp4"},
			expected: false,
		},
		{
			name:     "empty list",
			urls:     nil,
			expected: false,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := streamOnly(test.urls); got != test.expected {
				t.Errorf("Expected %t, got %t", test.expected, got)
			}
		})
	}
}
