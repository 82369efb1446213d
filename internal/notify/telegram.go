package notify

import (
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/lumenworks/ideaengine/internal/config"
)

// TelegramBot is the send-only slice of the bot API the notifier uses.
type TelegramBot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// BotFactory creates TelegramBot instances (allows mocking)
type BotFactory func(token string) (TelegramBot, error)

var defaultBotFactory BotFactory = func(token string) (TelegramBot, error) {
	return tgbotapi.NewBotAPI(token)
}

// TelegramNotifier pushes one-way campaign notifications to a chat.
// It never polls for updates.
type TelegramNotifier struct {
	chatID  int64
	bot     TelegramBot
	factory BotFactory
	token   string
}

func NewTelegramNotifier(cfg config.TelegramConfig) (*TelegramNotifier, error) {
	return NewTelegramNotifierWithFactory(cfg, defaultBotFactory)
}

// NewTelegramNotifierWithFactory creates a TelegramNotifier with a custom bot factory (for testing)
func NewTelegramNotifierWithFactory(cfg config.TelegramConfig, factory BotFactory) (*TelegramNotifier, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	if cfg.ChatID == 0 {
		return nil, fmt.Errorf("telegram chat id is required")
	}
	return &TelegramNotifier{
		chatID:  cfg.ChatID,
		factory: factory,
		token:   cfg.Token,
	}, nil
}

func (n *TelegramNotifier) initBot() error {
	if n.bot != nil {
		return nil
	}
	bot, err := n.factory(n.token)
	if err != nil {
		return fmt.Errorf("create telegram bot: %w", err)
	}
	n.bot = bot
	return nil
}

// CampaignSent delivers a campaign summary to the configured chat.
// Delivery failures are logged, not surfaced; notification is best
// effort and never blocks the send flow.
func (n *TelegramNotifier) CampaignSent(summary string) {
	if err := n.initBot(); err != nil {
		log.Printf("[notify] telegram init failed: %v", err)
		return
	}
	msg := tgbotapi.NewMessage(n.chatID, summary)
	if _, err := n.bot.Send(msg); err != nil {
		log.Printf("[notify] telegram send failed: %v", err)
	}
}
