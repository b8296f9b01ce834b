package snapchat

import (
	"regexp"
	"strings"
)

// identifierPatterns are tried in order; the first match wins.
var identifierPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)snapchat\.com/add/([a-zA-Z0-9_.-]+)`),
	regexp.MustCompile(`(?i)snapchat\.com/s/([a-zA-Z0-9_.-]+)`),
	regexp.MustCompile(`(?i)snapchat\.com/([a-zA-Z0-9_.-]+)`),
	regexp.MustCompile(`@([a-zA-Z0-9_.-]+)`),
}

var bareUsername = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,20}$`)

// ParseIdentifier extracts a lower-cased username from free-form text: a
// profile or story URL, an @handle, or a bare username of 3 to 20 characters.
func ParseIdentifier(text string) (string, bool) {
	text = strings.TrimSpace(text)
	for _, re := range identifierPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.ToLower(m[1]), true
		}
	}
	if bareUsername.MatchString(text) {
		return strings.ToLower(text), true
	}
	return "", false
}
