package extractor

import (
	"regexp"

	"snapbot/pkg/models"
)

const (
	videoURL = `(https?://[^"]+?\.(?:mp4|mov|webm)[^"]*)`
	imageURL = `(https?://[^"]+?\.(?:jpe?g|png|webp)[^"]*)`
)

type markupPattern struct {
	kind models.Kind
	re   *regexp.Regexp
}

// markupPatterns is applied in order: every video pattern, then every image pattern.
var markupPatterns = []markupPattern{
	{models.KindVideo, regexp.MustCompile(`(?i)"videoUrl"\s*:\s*"` + videoURL + `"`)},
	{models.KindVideo, regexp.MustCompile(`(?i)src="` + videoURL + `"`)},
	{models.KindVideo, regexp.MustCompile(`(?i)data-video-url="` + videoURL + `"`)},
	{models.KindVideo, regexp.MustCompile(`(?i)property="og:video(?::url)?"\s+content="` + videoURL + `"`)},
	{models.KindVideo, regexp.MustCompile(`(?i)<source[^>]+src="` + videoURL + `"`)},

	{models.KindImage, regexp.MustCompile(`(?i)"imageUrl"\s*:\s*"` + imageURL + `"`)},
	{models.KindImage, regexp.MustCompile(`(?i)src="` + imageURL + `"`)},
	{models.KindImage, regexp.MustCompile(`(?i)data-image-url="` + imageURL + `"`)},
	{models.KindImage, regexp.MustCompile(`(?i)property="og:image(?::url)?"\s+content="` + imageURL + `"`)},
	{models.KindImage, regexp.MustCompile(`(?i)<img[^>]+src="` + imageURL + `"`)},
}

func directPatterns(html string) []models.MediaItem {
	var items []models.MediaItem
	for _, p := range markupPatterns {
		for _, m := range p.re.FindAllStringSubmatch(html, -1) {
			items = append(items, models.MediaItem{
				URL:    m[1],
				Kind:   p.kind,
				Source: models.SourceDirectPattern,
			})
		}
	}
	return items
}
