package bot

import (
	"context"
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var errNoStatusMessage = errors.New("no status message to edit")

// chatMessenger relays delivery output to one chat. The most recent text
// message it sent becomes the status message that EditStatus rewrites.
type chatMessenger struct {
	api       API
	chatID    int64
	parseMode string
	statusID  int
}

func newChatMessenger(api API, chatID int64, parseMode string) *chatMessenger {
	return &chatMessenger{api: api, chatID: chatID, parseMode: parseMode}
}

func (m *chatMessenger) ReplyText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(m.chatID, text)
	msg.ParseMode = m.parseMode
	sent, err := m.api.Send(msg)
	if err != nil {
		return err
	}
	m.statusID = sent.MessageID
	return nil
}

func (m *chatMessenger) EditStatus(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.statusID == 0 {
		return errNoStatusMessage
	}
	edit := tgbotapi.NewEditMessageText(m.chatID, m.statusID, text)
	edit.ParseMode = m.parseMode
	_, err := m.api.Send(edit)
	return err
}

func (m *chatMessenger) ReplyPhoto(ctx context.Context, path, caption string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	photo := tgbotapi.NewPhoto(m.chatID, tgbotapi.FilePath(path))
	photo.Caption = caption
	_, err := m.api.Send(photo)
	return err
}

func (m *chatMessenger) ReplyVideo(ctx context.Context, path, caption string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	video := tgbotapi.NewVideo(m.chatID, tgbotapi.FilePath(path))
	video.Caption = caption
	video.SupportsStreaming = true
	_, err := m.api.Send(video)
	return err
}
