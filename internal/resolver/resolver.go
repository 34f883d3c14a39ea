package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"time"

	"github.com/rs/zerolog"

	"shortvid-saver/internal/extract"
	"shortvid-saver/internal/utils"
	"shortvid-saver/pkg/models"
)

var (
	urlPattern      = regexp.MustCompile(`(?i)https?://[^\s]+`)
	trailingPunct   = regexp.MustCompile(`[)\]}>,.，。！!？；;、"']+$`)
	numericIDOnly   = regexp.MustCompile(`^\d+$`)
	maxPageBodySize = int64(10 << 20)
)

// Options configures the resolver's network behavior
type Options struct {
	Timeout   time.Duration
	ProxyURL  string
	UserAgent string
	// Cookies hold the per-platform cookie passed through on page fetches
	// (credentials-include stages only)
	Cookies map[models.Platform]string
}

// Resolver turns clipboard-pasted text into an extraction result: share-URL
// scan, short-link redirect, item-info API attempt, page-fetch fallback.
// Stages run strictly in sequence, one attempt each, no retries.
type Resolver struct {
	engine  *extract.Engine
	client  *utils.HTTPClient
	cookies map[models.Platform]string
	logger  zerolog.Logger
}

// New creates a resolver backed by the shared extraction engine
func New(engine *extract.Engine, opts Options) *Resolver {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Resolver{
		engine: engine,
		client: utils.NewHTTPClient(utils.ClientConfig{
			Timeout:   opts.Timeout,
			ProxyURL:  opts.ProxyURL,
			UserAgent: opts.UserAgent,
		}),
		cookies: opts.Cookies,
		logger:  zerolog.New(os.Stdout).With().Timestamp().Str("component", "resolver").Logger(),
	}
}

// ExtractShareURL scans arbitrary pasted text for HTTP(S) URLs, strips
// trailing punctuation, and prefers a known short-link host over any other
// URL on a supported domain. Returns "" when nothing usable is present.
func (r *Resolver) ExtractShareURL(text string) (string, *extract.Descriptor) {
	if text == "" {
		return "", nil
	}

	matches := urlPattern.FindAllString(text, -1)
	cleaned := make([]string, 0, len(matches))
	for _, m := range matches {
		cleaned = append(cleaned, trailingPunct.ReplaceAllString(m, ""))
	}

	for _, candidate := range cleaned {
		u, err := url.Parse(candidate)
		if err != nil {
			continue
		}
		for _, desc := range r.engine.PlatformDescriptors() {
			if desc.IsShortHost(u.Hostname()) {
				return candidate, desc
			}
		}
	}

	for _, candidate := range cleaned {
		u, err := url.Parse(candidate)
		if err != nil {
			continue
		}
		for _, desc := range r.engine.PlatformDescriptors() {
			if desc.MatchesHost(u.Hostname()) {
				return candidate, desc
			}
		}
	}

	return "", nil
}

// Resolve implements the clipboard entry point. Every stage failure is
// terminal for that attempt except the item-API stage, which intentionally
// swallows its errors and degrades to the page-fetch path.
func (r *Resolver) Resolve(ctx context.Context, text string) (*models.ExtractionResult, error) {
	shareURL, desc := r.ExtractShareURL(text)
	if shareURL == "" {
		return nil, models.NewError(models.KindNotVideoPage, "no video link found in the pasted text")
	}

	finalURL, err := r.resolveRedirect(ctx, shareURL)
	if err != nil {
		return nil, err
	}

	videoID := desc.VideoIDFromURL(finalURL)

	result := r.tryItemAPI(ctx, desc, finalURL, videoID)
	if result == nil {
		result, err = r.fetchAndExtract(ctx, desc, finalURL, videoID)
		if err != nil {
			return nil, err
		}
	}

	// this path directly precedes an automated download with no
	// user-mediated fallback, so a stream-only outcome is terminal
	if streamOnly(result.CandidateURLs) {
		return nil, models.NewError(models.KindFormatUnsup, "")
	}

	return result, nil
}

// resolveRedirect follows the share URL to its canonical page URL with
// credentials omitted. A 403 is an anti-bot block and is surfaced distinctly
// from generic network failure; the message carries a recognizable "403"
// marker so callers can branch without a structured code.
func (r *Resolver) resolveRedirect(ctx context.Context, shareURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, shareURL, nil)
	if err != nil {
		return "", models.WrapError(models.KindNetworkFailure, "", err)
	}

	resp, err := r.client.Do(req, nil)
	if err != nil {
		return "", models.WrapError(models.KindNetworkFailure, "", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode == http.StatusForbidden {
		return "", models.NewError(models.KindBlocked, "403: anti-bot protection triggered on redirect")
	}

	finalURL := resp.Request.URL.String()
	r.logger.Debug().Str("share_url", shareURL).Str("final_url", finalURL).Msg("Short link resolved")
	return finalURL, nil
}

// tryItemAPI attempts the platform's direct item-info endpoint. All failures
// here (network, malformed JSON, no usable node, gated content) degrade to
// the page-fetch stage and are never surfaced to the caller.
func (r *Resolver) tryItemAPI(ctx context.Context, desc *extract.Descriptor, pageURL, videoID string) *models.ExtractionResult {
	if videoID == "" || !numericIDOnly.MatchString(videoID) {
		return nil
	}

	apiURL := fmt.Sprintf(desc.APITemplate, videoID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil
	}

	resp, err := r.client.Do(req, map[string]string{"Accept": "application/json"})
	if err != nil {
		r.logger.Debug().Err(err).Msg("Item API unreachable, trying page fetch")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBodySize))
	if err != nil {
		return nil
	}

	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil
	}

	payload := &extract.Payload{Data: data, Kind: models.SourceItemAPI}
	result, err := r.engine.FromPayload(payload, desc, pageURL, videoID)
	if err != nil {
		r.logger.Debug().Err(err).Msg("Item API carried no usable record, trying page fetch")
		return nil
	}
	return result
}

// fetchAndExtract fetches the resolved page with credentials included, to
// mirror an authenticated browsing session, and re-runs the embedded-payload
// extraction chain including the legacy assignment-pattern sources.
func (r *Resolver) fetchAndExtract(ctx context.Context, desc *extract.Descriptor, pageURL, videoID string) (*models.ExtractionResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, models.WrapError(models.KindNetworkFailure, "", err)
	}
	headers := map[string]string{}
	if cookie := r.cookies[desc.Platform]; cookie != "" {
		headers["Cookie"] = cookie
	}

	resp, err := r.client.Do(req, headers)
	if err != nil {
		return nil, models.WrapError(models.KindNetworkFailure, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return nil, models.NewError(models.KindBlocked, "403: page fetch blocked")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, models.Errf(models.KindNetworkFailure, "page fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBodySize))
	if err != nil {
		return nil, models.WrapError(models.KindNetworkFailure, "", err)
	}

	payload, err := extract.LocatePayloadInHTML(string(body), desc)
	if err != nil {
		if err == extract.ErrPayloadNotFound {
			return nil, models.NewError(models.KindParseError, "no embedded video data found in the fetched page")
		}
		return nil, err
	}

	return r.engine.FromPayload(payload, desc, pageURL, videoID)
}

func streamOnly(urls []string) bool {
	if len(urls) == 0 {
		return false
	}
	for _, u := range urls {
		if extract.Classify(u) != models.FormatM3U8 {
			return false
		}
	}
	return true
}
