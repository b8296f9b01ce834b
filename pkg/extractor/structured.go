package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"
	"snapbot/pkg/models"
)

// declared types accepted from structured-data blocks
var structuredKinds = map[string]models.Kind{
	"videoobject": models.KindVideo,
	"imageobject": models.KindImage,
}

func structuredData(html string) []models.MediaItem {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var items []models.MediaItem
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		typ, _ := s.Attr("type")
		if !strings.EqualFold(strings.TrimSpace(typ), "application/ld+json") {
			return
		}

		raw := strings.TrimSpace(s.Text())
		if !gjson.Valid(raw) {
			return
		}

		block := gjson.Parse(raw)
		switch {
		case block.IsArray():
			block.ForEach(func(_, entity gjson.Result) bool {
				if item, ok := structuredItem(entity); ok {
					items = append(items, item)
				}
				return true
			})
		case block.IsObject():
			if item, ok := structuredItem(block); ok {
				items = append(items, item)
			}
		}
	})
	return items
}

func structuredItem(entity gjson.Result) (models.MediaItem, bool) {
	if !entity.IsObject() {
		return models.MediaItem{}, false
	}
	fields := objectFields(entity)

	kind, ok := declaredKind(fields["@type"])
	if !ok {
		return models.MediaItem{}, false
	}

	var url string
	for _, key := range []string{"contentUrl", "url"} {
		v := fields[key]
		if v.Type == gjson.String && isNetworkURL(v.Str) {
			url = v.Str
			break
		}
	}
	if url == "" {
		return models.MediaItem{}, false
	}

	item := models.MediaItem{
		URL:    url,
		Kind:   kind,
		Source: models.SourceStructuredData,
	}
	if thumb := fields["thumbnailUrl"]; thumb.Type == gjson.String {
		item.Thumbnail = thumb.Str
	}
	if desc := fields["description"]; desc.Type == gjson.String {
		item.Description = truncate(desc.Str, MaxDescription)
	}
	return item, true
}

// declaredKind accepts "@type" as a string or an array of strings
func declaredKind(t gjson.Result) (models.Kind, bool) {
	if t.IsArray() {
		var found models.Kind
		t.ForEach(func(_, v gjson.Result) bool {
			if k, ok := structuredKinds[strings.ToLower(v.String())]; ok {
				found = k
				return false
			}
			return true
		})
		return found, found != ""
	}
	if t.Type != gjson.String {
		return "", false
	}
	k, ok := structuredKinds[strings.ToLower(t.Str)]
	return k, ok
}

// objectFields indexes an object's members by key. gjson paths treat '@' as a
// modifier prefix, so keys like "@type" are read by iteration instead. A
// repeated key keeps its last value.
func objectFields(obj gjson.Result) map[string]gjson.Result {
	fields := make(map[string]gjson.Result)
	obj.ForEach(func(key, value gjson.Result) bool {
		fields[key.Str] = value
		return true
	})
	return fields
}
