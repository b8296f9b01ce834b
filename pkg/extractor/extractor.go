// Package extractor recovers media references from public profile pages.
//
// A page is scanned by three independent strategies that run in a fixed order:
// structured-data blocks, embedded application state, and direct markup
// patterns. Their outputs are concatenated, de-duplicated by URL and capped.
package extractor

import (
	"strings"
	"unicode/utf8"

	"snapbot/pkg/logger"
	"snapbot/pkg/models"
)

const (
	// MaxItems caps the number of items returned for one page
	MaxItems = 15
	// MaxDescription is the rune limit for carried-over descriptions
	MaxDescription = 100
	// MaxDepth bounds recursion into embedded state
	MaxDepth = 10
)

// Strategy extracts candidate items from raw markup
type Strategy struct {
	Name    string
	Extract func(html string) []models.MediaItem
}

// Strategies is the ordered strategy table. Earlier strategies win on duplicate URLs.
var Strategies = []Strategy{
	{Name: models.SourceStructuredData, Extract: structuredData},
	{Name: models.SourceEmbeddedState, Extract: embeddedState},
	{Name: models.SourceDirectPattern, Extract: directPatterns},
}

// Extract runs every strategy over html and returns the merged result.
// It never panics; malformed input only yields fewer items.
func Extract(html string) []models.MediaItem {
	var all []models.MediaItem
	for _, s := range Strategies {
		all = append(all, runStrategy(s, html)...)
	}
	return Finalize(all)
}

func runStrategy(s Strategy, html string) (items []models.MediaItem) {
	defer func() {
		if r := recover(); r != nil {
			logger.GetLogger().WarnWithFields("extraction strategy panicked", map[string]interface{}{
				"strategy": s.Name,
				"panic":    r,
			})
			items = nil
		}
	}()
	return s.Extract(html)
}

// Finalize de-duplicates items by exact URL, keeping the first occurrence,
// and caps the result at MaxItems.
func Finalize(items []models.MediaItem) []models.MediaItem {
	seen := make(map[string]struct{}, len(items))
	out := make([]models.MediaItem, 0, min(len(items), MaxItems))
	for _, item := range items {
		if _, dup := seen[item.URL]; dup {
			continue
		}
		seen[item.URL] = struct{}{}
		out = append(out, item)
		if len(out) == MaxItems {
			break
		}
	}
	return out
}

func isNetworkURL(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "http://")
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
