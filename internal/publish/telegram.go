// internal/publish/telegram.go
package publish

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/framerelay/internal/types"
)

const maxTelegramMessage = 4096

// TelegramSink pushes an alert to a chat when a frame actually detected
// something. Outbound only; the bot never polls for updates.
type TelegramSink struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegramSink(token string, chatID int64) (*TelegramSink, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &TelegramSink{bot: bot, chatID: chatID}, nil
}

func (s *TelegramSink) Name() types.SinkName { return SinkTelegram }

// Wants gates alerts on frames with at least one detection; empty frames
// would flood the chat.
func (s *TelegramSink) Wants(record *types.Record) bool {
	return record.Detection != nil && len(record.Detection.Detections) > 0
}

func (s *TelegramSink) Deliver(ctx context.Context, record *types.Record) error {
	for _, part := range splitMessage(alertText(record)) {
		msg := tgbotapi.NewMessage(s.chatID, part)
		msg.ParseMode = "Markdown"
		if _, err := s.bot.Send(msg); err != nil {
			// Captions can contain characters that break Telegram's
			// markdown parser; retry the part as plain text.
			msg.ParseMode = ""
			if _, err := s.bot.Send(msg); err != nil {
				return fmt.Errorf("send alert: %w", err)
			}
		}
	}
	return nil
}

func alertText(record *types.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%d object(s)* in %s\n", len(record.Detection.Detections), filepath.Base(record.Event.ImagePath))
	if record.Event.Caption != "" {
		fmt.Fprintf(&b, "_%s_\n", record.Event.Caption)
	}
	for _, det := range record.Detection.Detections {
		fmt.Fprintf(&b, "- %s (%.2f)\n", det.Label, det.Score)
	}
	return b.String()
}

func splitMessage(text string) []string {
	if len(text) <= maxTelegramMessage {
		return []string{text}
	}
	var parts []string
	for len(text) > 0 {
		end := maxTelegramMessage
		if end > len(text) {
			end = len(text)
		}
		parts = append(parts, text[:end])
		text = text[end:]
	}
	return parts
}
