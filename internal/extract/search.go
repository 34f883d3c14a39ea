package extract

import (
	"encoding/json"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"shortvid-saver/pkg/models"
)

// maxSearchSteps bounds the breadth-first traversal so it terminates on
// huge or self-referential payload graphs.
const maxSearchSteps = 500

// Match is a record node found in the payload graph together with its
// video sub-object.
type Match struct {
	Record map[string]interface{}
	Video  map[string]interface{}
	// IDMatched reports whether the record's identifier equals the target
	IDMatched bool
}

// RecordID extracts the record's identifier across known field aliases,
// normalized to a string.
func RecordID(node map[string]interface{}, desc *Descriptor) string {
	for _, key := range desc.IDKeys {
		if v, ok := node[key]; ok {
			if s := idString(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func idString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	}
	return ""
}

// videoOf returns the record's video sub-object, nil when absent
func videoOf(node map[string]interface{}) map[string]interface{} {
	for _, key := range []string{"video", "videoInfo"} {
		if v, ok := node[key].(map[string]interface{}); ok {
			return v
		}
	}
	return nil
}

// FindRecord performs a bounded breadth-first traversal over the parsed
// payload graph looking for the node representing the target video.
//
// Matching policy: an identifier-matching record that yields at least one
// collectable URL always wins. When no playable match exists, the first
// playable identifier-agnostic record is the explicit fallback; a matching
// but URL-less record is preferred over that only as a metadata source and
// is returned last so content gates still apply to it.
func FindRecord(data interface{}, targetID string, desc *Descriptor, playable func(map[string]interface{}) bool) *Match {
	queue := []interface{}{data}
	visited := make(map[uintptr]bool)
	steps := 0

	var anyPlayable *Match
	var matchUnplayable *Match
	var first *Match

	remember := func(m *Match) *Match {
		if m.IDMatched && playable(m.Video) {
			return m
		}
		if m.IDMatched && matchUnplayable == nil {
			matchUnplayable = m
		}
		if !m.IDMatched && anyPlayable == nil && playable(m.Video) {
			anyPlayable = m
		}
		if first == nil {
			first = m
		}
		return nil
	}

	consider := func(node map[string]interface{}) *Match {
		video := videoOf(node)
		if video == nil {
			return nil
		}
		id := RecordID(node, desc)
		if id == "" {
			// wrapper-less nodes still need an identifier to count
			return nil
		}
		m := &Match{Record: node, Video: video, IDMatched: targetID != "" && id == targetID}
		return remember(m)
	}

	for len(queue) > 0 && steps < maxSearchSteps {
		node := queue[0]
		queue = queue[1:]
		steps++

		obj, ok := node.(map[string]interface{})
		if !ok {
			if list, ok := node.([]interface{}); ok {
				if !markVisited(visited, list) {
					for _, item := range list {
						queue = append(queue, item)
					}
				}
			}
			continue
		}
		if markVisited(visited, obj) {
			continue
		}

		// known detail-wrapper shapes first
		for _, key := range desc.DetailKeys {
			if sub, ok := obj[key].(map[string]interface{}); ok {
				if video := videoOf(sub); video != nil {
					id := RecordID(sub, desc)
					m := &Match{Record: sub, Video: video,
						IDMatched: targetID != "" && id == targetID}
					if found := remember(m); found != nil {
						return found
					}
				}
			}
		}

		// node itself carries a video sub-object and an identifier
		if found := consider(obj); found != nil {
			return found
		}

		// known list-shaped containers: prefer the entry matching the
		// target identifier, else the first entry
		for _, key := range desc.ListKeys {
			list, ok := obj[key].([]interface{})
			if !ok {
				continue
			}
			for _, item := range list {
				entry, ok := item.(map[string]interface{})
				if !ok {
					continue
				}
				if found := consider(entry); found != nil {
					return found
				}
			}
		}

		for _, key := range sortedKeys(obj) {
			switch value := obj[key].(type) {
			case map[string]interface{}, []interface{}:
				queue = append(queue, value)
			case string:
				if embedded := reparseEmbeddedJSON(value); embedded != nil {
					queue = append(queue, embedded)
				}
			}
		}
	}

	if anyPlayable != nil {
		return anyPlayable
	}
	if matchUnplayable != nil {
		return matchUnplayable
	}
	return first
}

// markVisited records node identity, returning true when already seen
func markVisited(visited map[uintptr]bool, node interface{}) bool {
	ptr := reflect.ValueOf(node).Pointer()
	if visited[ptr] {
		return true
	}
	visited[ptr] = true
	return false
}

func sortedKeys(obj map[string]interface{}) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// reparseEmbeddedJSON lazily expands stringified JSON found inside string
// values. A cheap substring pre-filter keeps this off ordinary text; parse
// failures skip the branch, never propagate.
func reparseEmbeddedJSON(value string) interface{} {
	if len(value) < 20 || !strings.Contains(value, "{") {
		return nil
	}
	if !strings.Contains(value, "url_list") &&
		!strings.Contains(value, "urlList") &&
		!strings.Contains(value, "aweme") &&
		!strings.Contains(value, "itemStruct") {
		return nil
	}

	var data interface{}
	if err := json.Unmarshal([]byte(value), &data); err != nil {
		return nil
	}
	return data
}

// GateRecord rejects recognized-but-unsupported content categories before
// any URL collection happens.
func GateRecord(record map[string]interface{}) *models.ExtractError {
	if hasContent(record, "image_post_info") || hasContent(record, "images") || hasContent(record, "imagePost") {
		return models.NewError(models.KindPhotoPost, "")
	}
	if truthy(record["is_live"]) || truthy(record["isLive"]) || truthy(record["isLiveStreaming"]) {
		return models.NewError(models.KindLiveStory, "")
	}
	if status, ok := record["status"].(map[string]interface{}); ok {
		if n, ok := status["private_status"].(float64); ok && n == 1 {
			return models.NewError(models.KindPrivate, "")
		}
	}
	if author, ok := record["author"].(map[string]interface{}); ok {
		if truthy(author["secret"]) {
			return models.NewError(models.KindPrivate, "")
		}
	}
	if truthy(record["privateItem"]) {
		return models.NewError(models.KindPrivate, "")
	}
	return nil
}

func hasContent(node map[string]interface{}, key string) bool {
	v, ok := node[key]
	if !ok || v == nil {
		return false
	}
	switch t := v.(type) {
	case []interface{}:
		return len(t) > 0
	case map[string]interface{}:
		return len(t) > 0
	}
	return truthy(v)
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != "" && t != "0" && t != "false"
	}
	return false
}
