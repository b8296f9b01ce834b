package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowTokenGuide writes step-by-step instructions for obtaining a bot token
func ShowTokenGuide(w io.Writer) {
	rule := strings.Repeat("=", 72)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "🤖 TELEGRAM BOT TOKEN GUIDE")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "💬 STEP 1: Open a chat with @BotFather in Telegram")
	fmt.Fprintln(w, "🆕 STEP 2: Send /newbot and follow the prompts for name and username")
	fmt.Fprintln(w, "🔑 STEP 3: Copy the token BotFather replies with")
	fmt.Fprintln(w, "   It looks like 123456789:AAH-abcdefghijklmnopqrstuvwxyz12345")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "⚠️  SECURITY WARNING:")
	fmt.Fprintln(w, "   • Anyone with the token controls your bot")
	fmt.Fprintln(w, "   • Use /revoke with @BotFather if it leaks")
	fmt.Fprintln(w, rule)
}
