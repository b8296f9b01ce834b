package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"snapbot/pkg/config"
	"snapbot/pkg/delivery"
	"snapbot/pkg/logger"
	"snapbot/pkg/metrics"
	"snapbot/pkg/models"
	"snapbot/pkg/ratelimit"
)

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	nextID   int
	updates  chan tgbotapi.Update
	stopped  bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{updates: make(chan tgbotapi.Update, 8)}
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	f.nextID++
	return tgbotapi.Message{MessageID: f.nextID}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		switch m := c.(type) {
		case tgbotapi.MessageConfig:
			out = append(out, m.Text)
		case tgbotapi.EditMessageTextConfig:
			out = append(out, m.Text)
		}
	}
	return out
}

type fakeDeliverer struct {
	mu     sync.Mutex
	calls  []string
	called chan struct{}
	fn     func() error
}

func (d *fakeDeliverer) Deliver(ctx context.Context, text string, requesterID int64, m delivery.Messenger) (models.Summary, error) {
	d.mu.Lock()
	d.calls = append(d.calls, text)
	d.mu.Unlock()
	if d.called != nil {
		d.called <- struct{}{}
	}
	if d.fn != nil {
		return models.Summary{}, d.fn()
	}
	return models.Summary{Outcome: models.OutcomeDelivered}, nil
}

func (d *fakeDeliverer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

type fakeStore struct {
	mu         sync.Mutex
	files      int
	cleanErr   error
	cleans     int
	removeAlls int
}

func (s *fakeStore) Count() int { return s.files }

func (s *fakeStore) Clean() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleans++
	return s.files, s.cleanErr
}

func (s *fakeStore) RemoveAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeAlls++
	return 0
}

type fixture struct {
	api       *fakeAPI
	deliverer *fakeDeliverer
	store     *fakeStore
	cfg       *config.Config
	bot       *Bot
}

func newFixture(t *testing.T, mutate func(*config.Config)) *fixture {
	t.Helper()
	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	now := time.Unix(1700000000, 0)
	f := &fixture{
		api:       newFakeAPI(),
		deliverer: &fakeDeliverer{},
		store:     &fakeStore{files: 3},
		cfg:       cfg,
	}
	limiter := ratelimit.NewUserLimiterWithClock(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Window, func() time.Time { return now })
	f.bot = New(f.api, f.deliverer, limiter, f.store, cfg, logger.NewNopLogger())
	return f
}

func textUpdate(userID int64, text string) tgbotapi.Update {
	msg := &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: userID, FirstName: "Ann_Lee"},
		Chat:      &tgbotapi.Chat{ID: userID},
		Text:      text,
	}
	if strings.HasPrefix(text, "/") {
		cmd := strings.Fields(text)[0]
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}}
	}
	return tgbotapi.Update{UpdateID: 1, Message: msg}
}

func callbackUpdate(userID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{UpdateID: 2, CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb1",
		From:    &tgbotapi.User{ID: userID},
		Data:    data,
		Message: &tgbotapi.Message{MessageID: 77, Chat: &tgbotapi.Chat{ID: userID}},
	}}
}

func TestStartCommand(t *testing.T) {
	f := newFixture(t, nil)
	f.bot.HandleUpdate(context.Background(), textUpdate(5, "/start"))

	require.Len(t, f.api.sent, 1)
	msg, ok := f.api.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Contains(t, msg.Text, `*Hello Ann\_Lee!*`)
	assert.Contains(t, msg.Text, "*Rate Limit:* 20 requests per minute")
	assert.Contains(t, msg.Text, "*Max File Size:* 100MB")
	assert.Equal(t, "Markdown", msg.ParseMode)

	keyboard, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, keyboard.InlineKeyboard, 3)
	assert.Equal(t, "help", *keyboard.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "status", *keyboard.InlineKeyboard[1][0].CallbackData)
	assert.Equal(t, "quickstart", *keyboard.InlineKeyboard[2][0].CallbackData)
}

func TestHelpAndStatsCommands(t *testing.T) {
	f := newFixture(t, nil)
	f.bot.HandleUpdate(context.Background(), textUpdate(5, "/help"))
	f.bot.HandleUpdate(context.Background(), textUpdate(5, "/stats"))

	texts := f.api.texts()
	require.Len(t, texts, 2)
	assert.Contains(t, texts[0], "Max 10 items per request")
	assert.Contains(t, texts[1], "Wait time: 0.0 seconds")
	assert.Contains(t, texts[1], "Limit: 20 requests/minute")
	assert.Contains(t, texts[1], "Remaining: 20 requests")
	assert.Contains(t, texts[1], "Burst: 5 concurrent")
	assert.Contains(t, texts[1], "Temp files: 3 files")
}

func TestCleanCommand(t *testing.T) {
	f := newFixture(t, nil)
	f.bot.HandleUpdate(context.Background(), textUpdate(5, "/clean"))
	assert.Equal(t, 1, f.store.cleans)
	assert.Equal(t, []string{cleanedText}, f.api.texts())

	f.store.cleanErr = errors.New("permission denied")
	f.bot.HandleUpdate(context.Background(), textUpdate(5, "/clean"))
	assert.Equal(t, "❌ Error cleaning files: permission denied", f.api.texts()[1])
}

func TestUnknownCommandIgnored(t *testing.T) {
	f := newFixture(t, nil)
	f.bot.HandleUpdate(context.Background(), textUpdate(5, "/nope"))
	assert.Empty(t, f.api.sent)
	assert.Zero(t, f.deliverer.count())
}

func TestNotAuthorized(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Telegram.AdminIDs = []int64{1} })

	f.bot.HandleUpdate(context.Background(), textUpdate(2, "alice"))
	f.bot.HandleUpdate(context.Background(), textUpdate(2, "/start"))

	assert.Equal(t, []string{notAuthorizedText, notAuthorizedText}, f.api.texts())
	assert.Zero(t, f.deliverer.count())

	f.bot.HandleUpdate(context.Background(), textUpdate(1, "alice"))
	assert.Equal(t, 1, f.deliverer.count())
}

func TestMessageDelivers(t *testing.T) {
	f := newFixture(t, nil)
	f.bot.HandleUpdate(context.Background(), textUpdate(5, "  @alice  "))

	assert.Equal(t, []string{"@alice"}, f.deliverer.calls)
	require.Len(t, f.api.requests, 1)
	action, ok := f.api.requests[0].(tgbotapi.ChatActionConfig)
	require.True(t, ok)
	assert.Equal(t, tgbotapi.ChatTyping, action.Action)
}

func TestRateLimited(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.RateLimit.RequestsPerMinute = 1 })
	before := testutil.ToFloat64(metrics.RateLimitedTotal)

	f.bot.HandleUpdate(context.Background(), textUpdate(5, "alice"))
	f.bot.HandleUpdate(context.Background(), textUpdate(5, "alice"))

	assert.Equal(t, 1, f.deliverer.count())
	assert.Equal(t, []string{"⏳ Rate limit exceeded. Please wait 60 seconds."}, f.api.texts())
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.RateLimitedTotal))

	// another user is unaffected
	f.bot.HandleUpdate(context.Background(), textUpdate(6, "alice"))
	assert.Equal(t, 2, f.deliverer.count())
}

func TestHandlerPanicIsReported(t *testing.T) {
	f := newFixture(t, nil)
	f.deliverer.fn = func() error { panic("boom") }
	before := testutil.ToFloat64(metrics.HandlerPanicsTotal)

	assert.NotPanics(t, func() {
		f.bot.HandleUpdate(context.Background(), textUpdate(5, "alice"))
	})

	texts := f.api.texts()
	require.Len(t, texts, 1)
	assert.Equal(t, "⚠️ Bot error: `boom`\n\nPlease try again or contact admin.", texts[0])
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.HandlerPanicsTotal))
}

func TestHandlerErrors(t *testing.T) {
	f := newFixture(t, nil)

	f.deliverer.fn = func() error { return context.Canceled }
	f.bot.HandleUpdate(context.Background(), textUpdate(5, "alice"))
	assert.Empty(t, f.api.texts())

	f.deliverer.fn = func() error { return errors.New(strings.Repeat("x", 300)) }
	f.bot.HandleUpdate(context.Background(), textUpdate(5, "alice"))
	texts := f.api.texts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "`"+strings.Repeat("x", 200)+"`")
	assert.NotContains(t, texts[0], strings.Repeat("x", 201))
}

func TestCallbacks(t *testing.T) {
	f := newFixture(t, nil)

	f.bot.HandleUpdate(context.Background(), callbackUpdate(5, "status"))
	f.bot.HandleUpdate(context.Background(), callbackUpdate(5, "quickstart"))
	f.bot.HandleUpdate(context.Background(), callbackUpdate(5, "help"))

	require.Len(t, f.api.requests, 3)
	_, ok := f.api.requests[0].(tgbotapi.CallbackConfig)
	assert.True(t, ok)

	require.Len(t, f.api.sent, 3)
	edit, ok := f.api.sent[0].(tgbotapi.EditMessageTextConfig)
	require.True(t, ok)
	assert.Equal(t, 77, edit.MessageID)
	assert.Equal(t, statusText, edit.Text)

	edit = f.api.sent[1].(tgbotapi.EditMessageTextConfig)
	assert.Equal(t, quickStartText, edit.Text)
	assert.Equal(t, tgbotapi.ModeMarkdown, edit.ParseMode)

	help := f.api.sent[2].(tgbotapi.MessageConfig)
	assert.Contains(t, help.Text, "Detailed Help Guide")
}

func TestRunShutsDownCleanly(t *testing.T) {
	f := newFixture(t, nil)
	f.deliverer.called = make(chan struct{}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.bot.Run(ctx) }()

	f.api.updates <- textUpdate(5, "alice")
	select {
	case <-f.deliverer.called:
	case <-time.After(2 * time.Second):
		t.Fatal("update was not dispatched")
	}
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}

	f.api.mu.Lock()
	assert.True(t, f.api.stopped)
	f.api.mu.Unlock()
	assert.Equal(t, 1, f.store.removeAlls)
}

func TestRunSweepsLimiter(t *testing.T) {
	f := newFixture(t, nil)
	f.bot.sweepEvery = 5 * time.Millisecond
	f.bot.limiter.Allowed(9)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, f.bot.Run(ctx))

	assert.Equal(t, float64(f.bot.limiter.Users()), testutil.ToFloat64(metrics.TrackedUsers))
}

func TestChatMessenger(t *testing.T) {
	api := newFakeAPI()
	m := newChatMessenger(api, 42, tgbotapi.ModeMarkdown)
	ctx := context.Background()

	assert.ErrorIs(t, m.EditStatus(ctx, "too early"), errNoStatusMessage)

	require.NoError(t, m.ReplyText(ctx, "searching"))
	require.NoError(t, m.EditStatus(ctx, "found"))
	require.NoError(t, m.ReplyVideo(ctx, "/tmp/a.mp4", "🎥 @a"))
	require.NoError(t, m.ReplyPhoto(ctx, "/tmp/b.jpg", "📸 @a"))

	require.Len(t, api.sent, 4)
	edit := api.sent[1].(tgbotapi.EditMessageTextConfig)
	assert.Equal(t, 1, edit.MessageID)
	assert.Equal(t, int64(42), edit.ChatID)

	video := api.sent[2].(tgbotapi.VideoConfig)
	assert.True(t, video.SupportsStreaming)
	assert.Equal(t, tgbotapi.FilePath("/tmp/a.mp4"), video.File)
	assert.Equal(t, "🎥 @a", video.Caption)

	photo := api.sent[3].(tgbotapi.PhotoConfig)
	assert.Equal(t, "📸 @a", photo.Caption)
	assert.Empty(t, photo.ParseMode)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, m.ReplyText(cancelled, "x"), context.Canceled)
	assert.Len(t, api.sent, 4)
}
