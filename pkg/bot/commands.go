package bot

import (
	"fmt"
	"runtime"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"snapbot/pkg/delivery"
)

const (
	notAuthorizedText = "❌ You are not authorized to use this bot."
	cleanedText       = "✅ Temporary files cleaned successfully!"
	statusText        = "✅ Bot is running normally!"
	quickStartText    = "🚀 *Quick Start:*\nJust send me a Snapchat username!"
)

// Callback data carried by the welcome keyboard
const (
	callbackHelp       = "help"
	callbackStatus     = "status"
	callbackQuickStart = "quickstart"
)

func welcomeKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📖 How to Use", callbackHelp)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🔧 Bot Status", callbackStatus)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🚀 Quick Start", callbackQuickStart)),
	)
}

func (b *Bot) handleCommand(msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	if !b.cfg.Telegram.IsAdmin(msg.From.ID) {
		return b.sendText(chatID, notAuthorizedText, nil)
	}

	switch msg.Command() {
	case "start":
		return b.sendText(chatID, b.welcomeText(msg.From.FirstName), welcomeKeyboard())
	case "help":
		return b.sendText(chatID, b.helpText(), nil)
	case "stats":
		return b.sendText(chatID, b.statsText(msg.From.ID), nil)
	case "clean":
		removed, err := b.store.Clean()
		if err != nil {
			return b.sendText(chatID, fmt.Sprintf("❌ Error cleaning files: %s", delivery.EscapeMarkdown(err.Error())), nil)
		}
		b.logger.WithField("removed_files", removed).Info("Temp directory cleaned")
		return b.sendText(chatID, cleanedText, nil)
	default:
		return nil
	}
}

func (b *Bot) handleCallback(query *tgbotapi.CallbackQuery) error {
	if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		b.logger.WithError(err).Debug("Failed to answer callback")
	}
	if query.Message == nil || query.Message.Chat == nil || query.From == nil {
		return nil
	}
	chatID := query.Message.Chat.ID
	if !b.cfg.Telegram.IsAdmin(query.From.ID) {
		return b.sendText(chatID, notAuthorizedText, nil)
	}

	switch query.Data {
	case callbackHelp:
		return b.sendText(chatID, b.helpText(), nil)
	case callbackStatus:
		return b.editText(chatID, query.Message.MessageID, statusText, "")
	case callbackQuickStart:
		return b.editText(chatID, query.Message.MessageID, quickStartText, tgbotapi.ModeMarkdown)
	default:
		return nil
	}
}

func (b *Bot) editText(chatID int64, messageID int, text, parseMode string) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = parseMode
	_, err := b.api.Send(edit)
	return err
}

func (b *Bot) welcomeText(firstName string) string {
	return fmt.Sprintf(`👋 *Welcome to Snapchat Downloader Bot* 👋

*Hello %s!* I can help you download public Snapchat stories.

*How to use:*
1. Send a Snapchat username (e.g., `+"`username`"+`)
2. Send a profile URL (e.g., `+"`snapchat.com/add/username`"+`)
3. I'll fetch and send you the public content

*Commands:*
/start - Show this message
/help - Detailed instructions
/stats - Your usage statistics
/clean - Clean temporary files

*Rate Limit:* %d requests per minute
*Max File Size:* %dMB

⚠️ *Note:* Only works with public content.`,
		delivery.EscapeMarkdown(firstName), b.cfg.RateLimit.RequestsPerMinute, b.maxFileMB())
}

func (b *Bot) helpText() string {
	return fmt.Sprintf(`*📚 Detailed Help Guide*

*Supported Input Formats:*
1. *Username:* `+"`username`"+` or `+"`@username`"+`
2. *Profile URL:* `+"`https://snapchat.com/add/username`"+`
3. *Story URL:* `+"`https://story.snapchat.com/s/username`"+`

*How it works:*
1. I fetch public Snapchat stories
2. Download media files
3. Send them to you via Telegram
4. Automatically clean up temporary files

*Limitations:*
• Only public content (no private accounts)
• Max %d items per request
• %dMB file size limit
• %d requests per minute

*Troubleshooting:*
• If bot doesn't respond: Send /start again
• If download fails: Content might be private or removed
• If rate limited: Wait 1 minute

*Privacy:*
• I don't store your data permanently
• Temporary files are deleted after sending`,
		b.cfg.Download.MaxItems, b.maxFileMB(), b.cfg.RateLimit.RequestsPerMinute)
}

func (b *Bot) statsText(userID int64) string {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return fmt.Sprintf(`*📊 Your Statistics*

*Rate Limit Status:*
• Wait time: %.1f seconds
• Limit: %d requests/minute
• Remaining: %d requests
• Burst: %d concurrent

*Bot Status:*
• Active: ✅
• Temp files: %d files
• Memory: %.1f MB

*Note:* Statistics reset every minute.`,
		b.limiter.WaitTime(userID).Seconds(),
		b.limiter.Limit(),
		b.limiter.Remaining(userID),
		b.cfg.RateLimit.BurstSize,
		b.store.Count(),
		float64(mem.Sys)/1024/1024)
}

func (b *Bot) maxFileMB() int64 {
	return b.cfg.Download.MaxFileSize / 1024 / 1024
}

func rateLimitedText(wait time.Duration) string {
	return fmt.Sprintf("⏳ Rate limit exceeded. Please wait %.0f seconds.", wait.Seconds())
}
