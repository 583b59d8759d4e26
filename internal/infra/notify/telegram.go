package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"advisor-live-chat/internal/domain/ports/adapter"
)

var _ adapter.Notifier = (*TelegramNotifier)(nil)

// TelegramNotifier pushes lifecycle notifications to Telegram chats. The
// platform user id -> chat id mapping comes from config; users without a
// mapping are skipped silently (the in-app surface still shows state).
type TelegramNotifier struct {
	bot     *tgbotapi.BotAPI
	chatIDs map[string]int64
	log     *zerolog.Logger
}

func NewTelegramNotifier(token string, chatIDs map[string]int64, logger *zerolog.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	nLog := logger.With().Str("component", "TelegramNotifier").Logger()
	return &TelegramNotifier{bot: bot, chatIDs: chatIDs, log: &nLog}, nil
}

func (t *TelegramNotifier) Notify(ctx context.Context, n adapter.Notification) error {
	chatID, ok := t.chatIDs[n.UserID]
	if !ok {
		t.log.Debug().Str("user_id", n.UserID).Msg("no telegram chat mapped; skipping")
		return nil
	}
	text := n.Title
	if n.Body != "" {
		text += "\n\n" + n.Body
	}
	if n.RelatedOrderID != "" {
		text += fmt.Sprintf("\n\nOrder: %s", n.RelatedOrderID)
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
