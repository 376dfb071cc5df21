package notify

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/lysyi3m/rss-triage/app/database"
)

type LogSink struct{}

func (LogSink) Send(ctx context.Context, notice Notice) error {
	slog.Error("Run notification",
		"event", notice.Event,
		"type", string(notice.Kind),
		"detail", notice.Detail,
		"notice", notice.Plain)
	return nil
}

// DatabaseSink stores notices in the notifications table for later review.
type DatabaseSink struct {
	repo database.NotificationRepository
}

func NewDatabaseSink(repo database.NotificationRepository) *DatabaseSink {
	return &DatabaseSink{repo: repo}
}

func (s *DatabaseSink) Send(ctx context.Context, notice Notice) error {
	kind := string(notice.Kind)
	if kind == "" {
		kind = "unknown"
	}
	_, err := s.repo.CreateNotification(ctx, database.Notification{
		Event:       notice.Event,
		ErrorType:   kind,
		Detail:      notice.Detail,
		Notice:      notice.Plain,
		TriggeredMs: notice.TriggeredAt.UnixMilli(),
	})
	return err
}

type TelegramSink struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegramSink(token string, chatID int64) (*TelegramSink, error) {
	return NewTelegramSinkWithEndpoint(token, tgbotapi.APIEndpoint, chatID)
}

// NewTelegramSinkWithEndpoint targets a custom Bot API endpoint of the form
// "https://host/bot%s/%s".
func NewTelegramSinkWithEndpoint(token, endpoint string, chatID int64) (*TelegramSink, error) {
	api, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &TelegramSink{api: api, chatID: chatID}, nil
}

func (s *TelegramSink) Send(ctx context.Context, notice Notice) error {
	text := fmt.Sprintf("%s\n\n%s\n\n%s", notice.Event, notice.Plain, notice.Detail)
	msg := tgbotapi.NewMessage(s.chatID, text)
	msg.DisableWebPagePreview = true

	if _, err := s.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}
