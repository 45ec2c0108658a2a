package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ryzm/terminal/internal/model"
)

// Telegram pushes fired alerts to a Telegram chat.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger zerolog.Logger
}

// NewTelegram creates a Telegram notifier
func NewTelegram(botToken string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("initializing telegram bot: %w", err)
	}

	return &Telegram{
		bot:    bot,
		chatID: chatID,
		logger: log.With().Str("component", "notify").Logger(),
	}, nil
}

// AlertFired sends one threshold-alert message.
func (t *Telegram) AlertFired(event model.AlertEvent) error {
	text := fmt.Sprintf(
		"🚨 *Price Alert*\n\n%s is %s $%.2f\nCurrent: $%.2f",
		event.Alert.Symbol, event.Alert.Direction, event.Alert.TargetPrice, event.CurrentPrice,
	)

	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("sending alert message: %w", err)
	}

	t.logger.Info().
		Str("symbol", event.Alert.Symbol).
		Float64("target", event.Alert.TargetPrice).
		Msg("Alert sent")
	return nil
}
