// Package bot connects the delivery service to Telegram.
//
// The Bot long-polls updates and handles each one on its own goroutine, so
// one user's slow delivery never holds up another's. Every handler runs
// behind a recover boundary: a failure is logged, counted, and reported to
// the chat that caused it.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"snapbot/pkg/config"
	"snapbot/pkg/delivery"
	"snapbot/pkg/logger"
	"snapbot/pkg/metrics"
	"snapbot/pkg/models"
	"snapbot/pkg/ratelimit"
)

const (
	pollTimeout       = 30
	maxErrorRunes     = 200
	defaultSweepEvery = time.Minute
)

// API is the subset of *tgbotapi.BotAPI the bot uses
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Deliverer runs one delivery for a chat
type Deliverer interface {
	Deliver(ctx context.Context, text string, requesterID int64, m delivery.Messenger) (models.Summary, error)
}

// TempStore is the temp directory the bot reports on and cleans
type TempStore interface {
	Count() int
	Clean() (int, error)
	RemoveAll() int
}

// Bot dispatches Telegram updates
type Bot struct {
	api        API
	deliverer  Deliverer
	limiter    *ratelimit.UserLimiter
	store      TempStore
	cfg        *config.Config
	logger     logger.Logger
	sweepEvery time.Duration

	wg sync.WaitGroup
}

// New creates a Bot
func New(api API, deliverer Deliverer, limiter *ratelimit.UserLimiter, store TempStore, cfg *config.Config, log logger.Logger) *Bot {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Bot{
		api:        api,
		deliverer:  deliverer,
		limiter:    limiter,
		store:      store,
		cfg:        cfg,
		logger:     log.WithField("component", "bot"),
		sweepEvery: defaultSweepEvery,
	}
}

// Run polls for updates until ctx is cancelled. On return no handler is
// running and every tracked temp file has been removed.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	updates := b.api.GetUpdatesChan(u)

	sweep := time.NewTicker(b.sweepEvery)
	defer sweep.Stop()

	b.logger.Info("Polling for updates")
	defer b.shutdown()

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case <-sweep.C:
			b.sweepLimiter()
		case update, ok := <-updates:
			if !ok {
				b.logger.Warn("Updates channel closed")
				return nil
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.HandleUpdate(ctx, update)
			}()
		}
	}
}

func (b *Bot) shutdown() {
	b.wg.Wait()
	removed := b.store.RemoveAll()
	b.logger.WithField("removed_files", removed).Info("Bot stopped")
}

func (b *Bot) sweepLimiter() {
	evicted := b.limiter.Sweep(b.cfg.RateLimit.IdleEviction)
	metrics.TrackedUsers.Set(float64(b.limiter.Users()))
	if evicted > 0 {
		b.logger.WithField("evicted", evicted).Debug("Evicted idle rate limiter entries")
	}
}

// HandleUpdate processes a single update. It never panics.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			metrics.HandlerPanicsTotal.Inc()
			b.logger.ErrorWithFields("Update handler panicked", map[string]interface{}{
				"update_id": update.UpdateID,
				"panic":     fmt.Sprint(r),
			})
			b.reportError(update, fmt.Errorf("%v", r))
		}
	}()

	var err error
	switch {
	case update.CallbackQuery != nil:
		err = b.handleCallback(update.CallbackQuery)
	case update.Message != nil:
		err = b.handleMessage(ctx, update.Message)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.WithError(err).WithField("update_id", update.UpdateID).Error("Update handling failed")
		b.reportError(update, err)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil || msg.Chat == nil {
		return nil
	}
	userID := msg.From.ID

	if msg.IsCommand() {
		return b.handleCommand(msg)
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return nil
	}

	if !b.cfg.Telegram.IsAdmin(userID) {
		return b.sendText(msg.Chat.ID, notAuthorizedText, nil)
	}

	if !b.limiter.Allowed(userID) {
		wait := b.limiter.WaitTime(userID)
		metrics.RateLimitedTotal.Inc()
		logger.LogRateLimit(b.logger, userID, wait)
		return b.sendText(msg.Chat.ID, rateLimitedText(wait), nil)
	}

	if _, err := b.api.Request(tgbotapi.NewChatAction(msg.Chat.ID, tgbotapi.ChatTyping)); err != nil {
		b.logger.WithError(err).Debug("Failed to send typing action")
	}

	m := newChatMessenger(b.api, msg.Chat.ID, b.cfg.Telegram.ParseMode)
	summary, err := b.deliverer.Deliver(ctx, text, userID, m)
	b.logger.WithField("user_id", userID).WithField("summary", summary.String()).Debug("Request handled")
	return err
}

func (b *Bot) sendText(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = b.cfg.Telegram.ParseMode
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	_, err := b.api.Send(msg)
	return err
}

// reportError tells the originating chat that something went wrong. It is
// best effort: a failure here is only logged.
func (b *Bot) reportError(update tgbotapi.Update, cause error) {
	chatID, ok := chatOf(update)
	if !ok {
		return
	}
	msg := tgbotapi.NewMessage(chatID, botErrorText(cause))
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(msg); err != nil {
		b.logger.WithError(err).Warn("Failed to report error to chat")
	}
}

func chatOf(update tgbotapi.Update) (int64, bool) {
	switch {
	case update.Message != nil && update.Message.Chat != nil:
		return update.Message.Chat.ID, true
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil && update.CallbackQuery.Message.Chat != nil:
		return update.CallbackQuery.Message.Chat.ID, true
	}
	return 0, false
}

func botErrorText(err error) string {
	s := strings.ReplaceAll(err.Error(), "`", "'")
	if utf8.RuneCountInString(s) > maxErrorRunes {
		s = string([]rune(s)[:maxErrorRunes])
	}
	return fmt.Sprintf("⚠️ Bot error: `%s`\n\nPlease try again or contact admin.", s)
}
