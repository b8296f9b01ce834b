package extractor

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
	"snapbot/pkg/models"
)

// statePatterns captures inline application-state assignments. Each capture
// runs lazily up to its terminating marker.
var statePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?s)window\.__INITIAL_STATE__\s*=\s*(\{.*?\});`),
	regexp.MustCompile(`(?s)window\.__PRELOADED_STATE__\s*=\s*(\{.*?\});`),
	regexp.MustCompile(`(?s)var\s+__DATA__\s*=\s*(\{.*?\});`),
	regexp.MustCompile(`(?s)data:\s*(\{.*?\})\s*,\s*error:`),
}

// mediaKeys marks object keys whose network-URL values are media
var mediaKeys = []string{"url", "video", "image", "media", "src"}

func embeddedState(html string) []models.MediaItem {
	var items []models.MediaItem
	for _, re := range statePatterns {
		for _, m := range re.FindAllStringSubmatch(html, -1) {
			fragment := m[1]
			if !gjson.Valid(fragment) {
				continue
			}
			items = walkState(gjson.Parse(fragment), 0, items)
		}
	}
	return items
}

// walkState visits v in document order. Containers deeper than MaxDepth are
// not entered. A container is entered even when its key is media-named, so
// {"media":{"imageUrl":...}} yields the nested URL; only string values are
// matched against the media keys.
func walkState(v gjson.Result, depth int, items []models.MediaItem) []models.MediaItem {
	if depth > MaxDepth {
		return items
	}

	switch {
	case v.IsObject():
		v.ForEach(func(key, value gjson.Result) bool {
			lower := strings.ToLower(key.Str)
			if value.Type == gjson.String {
				if isMediaKey(lower) && isNetworkURL(value.Str) {
					items = append(items, models.MediaItem{
						URL:    value.Str,
						Kind:   kindForKey(lower),
						Source: models.SourceEmbeddedState,
					})
				}
				return true
			}
			if value.IsObject() || value.IsArray() {
				items = walkState(value, depth+1, items)
			}
			return true
		})
	case v.IsArray():
		v.ForEach(func(_, value gjson.Result) bool {
			items = walkState(value, depth+1, items)
			return true
		})
	}
	return items
}

func isMediaKey(lowerKey string) bool {
	for _, k := range mediaKeys {
		if strings.Contains(lowerKey, k) {
			return true
		}
	}
	return false
}

func kindForKey(lowerKey string) models.Kind {
	if strings.Contains(lowerKey, "video") {
		return models.KindVideo
	}
	return models.KindImage
}
