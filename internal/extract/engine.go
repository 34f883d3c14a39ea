package extract

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"shortvid-saver/pkg/models"
)

// Page is the immutable context of one extraction call: the page URL, its
// parsed document, and the URLs of recently loaded network resources
// (oldest first) for the network-entry fallback.
type Page struct {
	URL       string
	Doc       *goquery.Document
	Resources []string
}

// Engine runs the extraction pipeline: payload locate, record search,
// candidate collection, ranking, and the DOM/network fallback. One engine
// serves all platforms; behavior is parametrized by schema descriptors.
// Invocations are self-contained and safe to run concurrently.
type Engine struct {
	descriptors []*Descriptor
	logger      zerolog.Logger
}

// NewEngine creates an engine over the given descriptors, typically the
// registry's enabled set. With none given it covers all known platforms.
func NewEngine(logger zerolog.Logger, descriptors ...*Descriptor) *Engine {
	if len(descriptors) == 0 {
		descriptors = Descriptors()
	}
	return &Engine{
		descriptors: descriptors,
		logger:      logger,
	}
}

// PlatformDescriptors returns the descriptor set this engine serves
func (e *Engine) PlatformDescriptors() []*Descriptor {
	return e.descriptors
}

// DescriptorForHost identifies the platform by hostname substring, nil when
// the host is not recognized
func (e *Engine) DescriptorForHost(hostname string) *Descriptor {
	for _, desc := range e.descriptors {
		if desc.MatchesHost(hostname) {
			return desc
		}
	}
	return nil
}

// DescriptorFor returns the descriptor of a platform, nil when unknown
func (e *Engine) DescriptorFor(platform models.Platform) *Descriptor {
	for _, desc := range e.descriptors {
		if desc.Platform == platform {
			return desc
		}
	}
	return nil
}

// ExtractPage extracts video metadata from a page document. Unknown
// hostnames are terminal; a short-link host means the page is still
// redirecting and carries no data yet.
func (e *Engine) ExtractPage(page *Page) (*models.ExtractionResult, error) {
	u, err := url.Parse(page.URL)
	if err != nil {
		return nil, models.WrapError(models.KindNotVideoPage, "", err)
	}
	hostname := u.Hostname()

	for _, desc := range e.descriptors {
		if desc.IsShortHost(hostname) {
			return nil, models.NewError(models.KindShortURL, "")
		}
	}

	desc := e.DescriptorForHost(hostname)
	if desc == nil {
		return nil, models.NewError(models.KindNotVideoPage, "")
	}

	targetID := desc.VideoIDFromURL(page.URL)

	payload, locErr := LocatePayload(page.Doc, desc)
	if locErr != nil && !errors.Is(locErr, ErrPayloadNotFound) {
		// first blob found but broken: the page is broken for that source
		return nil, locErr
	}

	var pipelineErr error
	if payload != nil {
		result, err := e.FromPayload(payload, desc, page.URL, targetID)
		if err == nil {
			return result, nil
		}
		switch models.KindOf(err) {
		case models.KindPhotoPost, models.KindLiveStory, models.KindPrivate:
			// recognized content, just unsupported: the fallback would only
			// produce a link the user should not get
			return nil, err
		}
		pipelineErr = err
	}

	result, err := e.extractFallback(page, desc, targetID)
	if err == nil {
		return result, nil
	}
	if pipelineErr != nil {
		return nil, pipelineErr
	}
	return nil, err
}

// FromPayload runs record search, collection and ranking over a located
// payload. Shared with the remote resolver's page-fetch path.
func (e *Engine) FromPayload(payload *Payload, desc *Descriptor, pageURL, targetID string) (*models.ExtractionResult, error) {
	playable := func(video map[string]interface{}) bool {
		return len(CollectCandidates(video, desc)) > 0
	}

	match := FindRecord(payload.Data, targetID, desc, playable)
	if match == nil {
		return nil, models.NewError(models.KindSchemaChanged, "")
	}

	if gate := GateRecord(match.Record); gate != nil {
		return nil, gate
	}

	candidates := CollectCandidates(match.Video, desc)
	if len(candidates) == 0 {
		return nil, models.NewError(models.KindFormatUnsup, "record found but carries no usable URL")
	}

	best, _ := SelectBest(candidates)

	id := RecordID(match.Record, desc)
	if id == "" {
		id = targetID
	}
	title, author, authorID := describeRecord(match.Record)

	e.logger.Debug().
		Str("platform", string(desc.Platform)).
		Str("source", string(payload.Kind)).
		Str("video_id", id).
		Int("candidates", len(candidates)).
		Msg("Extraction pipeline produced a result")

	return &models.ExtractionResult{
		Platform: desc.Platform,
		PageURL:  pageURL,
		Video: models.VideoDetail{
			ID:             id,
			Author:         author,
			AuthorID:       authorID,
			Title:          title,
			ThumbnailURL:   thumbnailOf(match.Video),
			NoWatermarkURL: SelectNoWatermark(candidates),
			BestURL:        best.URL,
			Format:         Classify(best.URL),
		},
		Source: models.ResultSource{
			Kind:        payload.Kind,
			ExtractedAt: time.Now(),
		},
		CandidateURLs: URLStrings(candidates),
	}, nil
}

// extractFallback scans live media elements and recent network-resource
// entries once the structured-data pipeline produced nothing playable.
func (e *Engine) extractFallback(page *Page, desc *Descriptor, targetID string) (*models.ExtractionResult, error) {
	fallbackURL := ""
	if page.Doc != nil {
		fallbackURL = ScanMediaElements(page.Doc)
	}
	if fallbackURL == "" {
		fallbackURL = ScanResources(page.Resources, desc)
	}

	if fallbackURL == "" {
		if targetID == "" {
			return nil, models.NewError(models.KindNotVideoPage, "")
		}
		return nil, models.NewError(models.KindParseError, "")
	}

	// best-effort mode: a usable URL without a reliable identifier still
	// beats failing the whole extraction
	id := targetID
	if id == "" {
		id = uuid.NewString()[:8]
	}
	title := ""
	if page.Doc != nil {
		title = strings.TrimSpace(page.Doc.Find("title").First().Text())
	}

	e.logger.Debug().
		Str("platform", string(desc.Platform)).
		Str("video_id", id).
		Msg("DOM/network fallback produced a result")

	return &models.ExtractionResult{
		Platform: desc.Platform,
		PageURL:  page.URL,
		Video: models.VideoDetail{
			ID:      id,
			Title:   title,
			BestURL: fallbackURL,
			Format:  Classify(fallbackURL),
		},
		Source: models.ResultSource{
			Kind:        models.SourceDOMFallback,
			ExtractedAt: time.Now(),
		},
		CandidateURLs: []string{fallbackURL},
	}, nil
}

// describeRecord pulls title and author metadata across known aliases
func describeRecord(record map[string]interface{}) (title, author, authorID string) {
	for _, key := range []string{"desc", "description", "title"} {
		if s, ok := record[key].(string); ok && s != "" {
			title = s
			break
		}
	}

	switch a := record["author"].(type) {
	case string:
		author = a
	case map[string]interface{}:
		for _, key := range []string{"nickname", "unique_id", "uniqueId"} {
			if s, ok := a[key].(string); ok && s != "" {
				author = s
				break
			}
		}
		for _, key := range []string{"unique_id", "uniqueId", "sec_uid", "secUid"} {
			if s, ok := a[key].(string); ok && s != "" {
				authorID = s
				break
			}
		}
	}
	if author == "" {
		if s, ok := record["authorName"].(string); ok {
			author = s
		}
	}
	return title, author, authorID
}

// thumbnailOf pulls a cover image URL across known aliases
func thumbnailOf(video map[string]interface{}) string {
	for _, key := range []string{"cover", "origin_cover", "originCover", "dynamic_cover", "dynamicCover"} {
		switch c := video[key].(type) {
		case string:
			if c != "" {
				return c
			}
		case map[string]interface{}:
			for _, listKey := range []string{"url_list", "urlList"} {
				if list, ok := c[listKey].([]interface{}); ok && len(list) > 0 {
					if s, ok := list[0].(string); ok && s != "" {
						return s
					}
				}
			}
		}
	}
	return ""
}
