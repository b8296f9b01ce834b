package delivery

import (
	"fmt"
	"strings"

	"snapbot/pkg/models"
)

var markdownEscaper = strings.NewReplacer("_", `\_`, "*", `\*`, "`", "\\`", "[", `\[`)

// EscapeMarkdown escapes user-controlled text for legacy Markdown messages
func EscapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

const invalidInputText = "❌ Invalid input. Please send a valid username or URL.\n" +
	"Examples:\n" +
	"• `username`\n" +
	"• `@username`\n" +
	"• `snapchat.com/add/username`"

func searchingText(username string) string {
	return fmt.Sprintf("🔍 Searching for @%s...", EscapeMarkdown(username))
}

func notFoundText(username string) string {
	return fmt.Sprintf("❌ No public content found for @%s.\n"+
		"Possible reasons:\n"+
		"• Account is private\n"+
		"• No public stories\n"+
		"• Account doesn't exist", EscapeMarkdown(username))
}

func foundText(n int) string {
	return fmt.Sprintf("✅ Found %d items. Downloading...", n)
}

func caption(item models.MediaItem, username, signature string) string {
	icon := "📸"
	if item.IsVideo() {
		icon = "🎥"
	}
	if signature == "" {
		return fmt.Sprintf("%s @%s", icon, username)
	}
	return fmt.Sprintf("%s @%s | %s", icon, username, signature)
}

func summaryText(s models.Summary) string {
	var b strings.Builder
	if s.Outcome == models.OutcomeCancelled {
		b.WriteString("⚠️ *Delivery interrupted*\n\n")
	} else {
		b.WriteString("✅ *Download Complete*\n\n")
	}
	fmt.Fprintf(&b, "*Results for @%s:*\n", EscapeMarkdown(s.Username))
	fmt.Fprintf(&b, "• Found: %d items\n", s.Found)
	fmt.Fprintf(&b, "• Successfully sent: %d items\n", s.Succeeded)
	fmt.Fprintf(&b, "• Failed: %d items\n", s.Failed)
	if skipped := s.Skipped(); skipped > 0 {
		fmt.Fprintf(&b, "• Not attempted: %d items\n", skipped)
	}
	b.WriteString("\n_Temporary files have been cleaned._")
	return b.String()
}
