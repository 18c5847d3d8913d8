package notification

import (
	"context"
	"fmt"
	"html"

	"snapkart-be/internal/config"
	"snapkart-be/internal/logger"
	"snapkart-be/internal/metrics"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Publisher pushes a stored notification to operators. Publishing happens
// after commit and is best effort.
type Publisher interface {
	Publish(ctx context.Context, n *Notification) error
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type telegramPublisher struct {
	bot    sender
	chatID int64
}

// NewTelegramPublisher connects to the Bot API. Without a token or chat id
// it returns a publisher that only logs.
func NewTelegramPublisher(cfg config.TelegramConfig) (Publisher, error) {
	if cfg.Token == "" || cfg.AdminChatID == 0 {
		logger.L().Warn("admin telegram bot not configured, notifications will only be logged")
		return NopPublisher{}, nil
	}

	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("connect admin bot: %w", err)
	}
	logger.L().Info("admin telegram bot connected", zap.String("bot", api.Self.UserName))
	return newTelegramPublisher(api, cfg.AdminChatID), nil
}

func newTelegramPublisher(bot sender, chatID int64) *telegramPublisher {
	return &telegramPublisher{bot: bot, chatID: chatID}
}

func (p *telegramPublisher) Publish(ctx context.Context, n *Notification) error {
	msg := tgbotapi.NewMessage(p.chatID, Format(n))
	msg.ParseMode = tgbotapi.ModeHTML

	if _, err := p.bot.Send(msg); err != nil {
		metrics.Inc(metrics.NotificationsFailed)
		logger.FromCtx(ctx).Warn("failed to publish admin notification",
			zap.Int64("notification_id", n.ID),
			zap.Error(err),
		)
		return err
	}
	metrics.Inc(metrics.NotificationsPublished)
	return nil
}

// Format renders n as a Telegram HTML message.
func Format(n *Notification) string {
	text := fmt.Sprintf("<b>%s</b>\n%s", html.EscapeString(n.Title), html.EscapeString(n.Message))
	if n.ReferenceType != "" {
		text += fmt.Sprintf("\n\n<code>%s #%d</code>", html.EscapeString(n.ReferenceType), n.ReferenceID)
	}
	return text
}

type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, n *Notification) error {
	logger.FromCtx(ctx).Info("admin notification",
		zap.String("kind", string(n.Kind)),
		zap.String("title", n.Title),
		zap.Int64("reference_id", n.ReferenceID),
	)
	return nil
}
