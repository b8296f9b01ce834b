package models

import "fmt"

// Kind is the media type of an extracted item
type Kind string

const (
	KindVideo Kind = "video"
	KindImage Kind = "image"
)

// Extraction strategy tags, used for diagnostics only
const (
	SourceStructuredData = "structured-data"
	SourceEmbeddedState  = "embedded-state"
	SourceDirectPattern  = "direct-pattern"
)

// MediaItem is one media reference recovered from a profile page
type MediaItem struct {
	URL         string `json:"url"`
	Kind        Kind   `json:"kind"`
	Thumbnail   string `json:"thumbnail,omitempty"`
	Description string `json:"description,omitempty"`
	Source      string `json:"source"`
}

// IsVideo reports whether the item should be relayed as a video
func (m MediaItem) IsVideo() bool {
	return m.Kind == KindVideo
}

// Outcome describes how a delivery request ended
type Outcome string

const (
	OutcomeDelivered    Outcome = "delivered"
	OutcomeNotFound     Outcome = "not_found"
	OutcomeInvalidInput Outcome = "invalid_input"
	OutcomeCancelled    Outcome = "cancelled"
)

// Summary is the per-request delivery report
type Summary struct {
	Username  string  `json:"username"`
	Found     int     `json:"found"`
	Attempted int     `json:"attempted"`
	Succeeded int     `json:"succeeded"`
	Failed    int     `json:"failed"`
	Outcome   Outcome `json:"outcome"`
}

// Skipped returns the number of found items beyond the delivery bound
func (s Summary) Skipped() int {
	if s.Found <= s.Attempted {
		return 0
	}
	return s.Found - s.Attempted
}

func (s Summary) String() string {
	return fmt.Sprintf("@%s found=%d attempted=%d succeeded=%d failed=%d outcome=%s",
		s.Username, s.Found, s.Attempted, s.Succeeded, s.Failed, s.Outcome)
}
