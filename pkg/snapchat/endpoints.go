package snapchat

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// DefaultProfileURLTemplate is the public story page for a username
	DefaultProfileURLTemplate = "https://story.snapchat.com/s/%s"

	// AddFriendURL is the shareable profile link shape
	AddFriendURL = "https://www.snapchat.com/add/%s"
)

// ProfileURL builds the public page URL for username from template, which
// must contain a single %s verb.
func ProfileURL(template, username string) string {
	if template == "" {
		template = DefaultProfileURLTemplate
	}
	return fmt.Sprintf(template, url.PathEscape(username))
}

// ShareURL returns the add-friend link for username
func ShareURL(username string) string {
	return fmt.Sprintf(AddFriendURL, url.PathEscape(strings.ToLower(username)))
}
