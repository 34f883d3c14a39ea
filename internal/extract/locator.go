package extract

import (
	"encoding/json"
	"errors"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"shortvid-saver/pkg/models"
)

// ErrPayloadNotFound signals that no known embedded-data element exists on
// the page; callers proceed to the DOM/network fallback.
var ErrPayloadNotFound = errors.New("no embedded data payload found")

// Payload is a located and parsed embedded-data blob
type Payload struct {
	Data interface{}
	Kind models.SourceKind
}

// maxDecodeRounds bounds percent-decoding; encoded payloads observed in the
// wild are at most triple-encoded, and the bound defends against adversarial
// input such as repeated %2525 sequences.
const maxDecodeRounds = 3

// DecodePayloadText normalizes `+` to an encoded space and percent-decodes up
// to three rounds, stopping early once no encoded brace/bracket markers
// remain. Never fails; undecodable text is returned as-is.
func DecodePayloadText(text string) string {
	result := text
	for i := 0; i < maxDecodeRounds; i++ {
		lower := strings.ToLower(result)
		if !strings.Contains(lower, "%7b") && !strings.Contains(lower, "%5b") {
			break
		}
		decoded, err := url.PathUnescape(strings.ReplaceAll(result, "+", "%20"))
		if err != nil {
			break
		}
		result = decoded
	}
	return result
}

// clampToBraces cuts text to the outermost JSON object, discarding script
// prologue/epilogue around it
func clampToBraces(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return text[start : end+1]
}

// LocatePayload tries the platform's ordered element-id list against the
// document and parses the first blob found. A blob that is present but
// malformed is a PARSE_ERROR; the next identifier is not consulted, since a
// broken first source means the page itself is broken.
func LocatePayload(doc *goquery.Document, desc *Descriptor) (*Payload, error) {
	for _, src := range desc.PayloadSources {
		sel := doc.Find("script#" + src.ElementID)
		if sel.Length() == 0 {
			sel = doc.Find("#" + src.ElementID)
		}
		if sel.Length() == 0 {
			continue
		}

		text := strings.TrimSpace(sel.First().Text())
		if src.Encoded {
			text = DecodePayloadText(text)
		}
		if src.Clamp {
			text = clampToBraces(text)
		}
		if text == "" {
			return nil, models.NewError(models.KindParseError, "")
		}

		var data interface{}
		if err := json.Unmarshal([]byte(text), &data); err != nil {
			return nil, models.WrapError(models.KindParseError, "", err)
		}
		return &Payload{Data: data, Kind: src.Kind}, nil
	}

	return nil, ErrPayloadNotFound
}

// LocatePayloadInHTML runs the locator chain against a fetched page body,
// additionally trying the platform's legacy JavaScript-assignment patterns
// that are not exposed in a dedicated element.
func LocatePayloadInHTML(html string, desc *Descriptor) (*Payload, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, models.WrapError(models.KindParseError, "", err)
	}

	payload, err := LocatePayload(doc, desc)
	if err == nil {
		return payload, nil
	}
	if !errors.Is(err, ErrPayloadNotFound) {
		return nil, err
	}

	for _, pattern := range desc.AssignPatterns {
		m := pattern.FindStringSubmatch(html)
		if len(m) < 2 {
			continue
		}
		text := DecodePayloadText(m[1])

		var data interface{}
		if err := json.Unmarshal([]byte(text), &data); err != nil {
			continue
		}
		return &Payload{Data: data, Kind: models.SourceRouterData}, nil
	}

	return nil, ErrPayloadNotFound
}
