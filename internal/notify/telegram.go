package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Summary describes one anomaly scoring run.
type Summary struct {
	RequestedBy   string
	Contamination float64
	Total         int
	Scored        int
	Flagged       int
	TopSources    []string
}

// Notifier delivers scoring summaries to operators.
type Notifier interface {
	NotifyAnomalies(ctx context.Context, s Summary) error
}

// StatsSource answers the bot's /stats command.
type StatsSource interface {
	Count(ctx context.Context) (int, error)
}

// Bot is a Telegram bot that posts anomaly summaries to one chat and
// answers a few commands.
type Bot struct {
	api    *tgbotapi.BotAPI
	chatID int64
	stats  StatsSource
	logger *zap.Logger
}

// NewBot authorizes token against the Telegram API.
func NewBot(token string, chatID int64, stats StatsSource, logger *zap.Logger) (*Bot, error) {
	return NewBotWithEndpoint(token, tgbotapi.APIEndpoint, http.DefaultClient, chatID, stats, logger)
}

// NewBotWithEndpoint is NewBot against a custom API endpoint, in the
// "https://host/bot%s/%s" form.
func NewBotWithEndpoint(token, endpoint string, client *http.Client, chatID int64, stats StatsSource, logger *zap.Logger) (*Bot, error) {
	botAPI, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot API: %w", err)
	}

	logger.Info("Telegram bot authorized", zap.String("username", botAPI.Self.UserName))

	return &Bot{api: botAPI, chatID: chatID, stats: stats, logger: logger}, nil
}

// NotifyAnomalies posts the summary to the configured chat.
func (b *Bot) NotifyAnomalies(ctx context.Context, s Summary) error {
	if b == nil {
		return nil
	}
	msg := tgbotapi.NewMessage(b.chatID, FormatSummary(s))
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send anomaly summary", zap.Int64("chat_id", b.chatID), zap.Error(err))
		return fmt.Errorf("failed to send notification: %w", err)
	}
	b.logger.Info("Anomaly summary sent", zap.Int64("chat_id", b.chatID), zap.Int("flagged", s.Flagged))
	return nil
}

// FormatSummary renders s as a plain-text message.
func FormatSummary(s Summary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "IPDR anomaly detection\n\n")
	fmt.Fprintf(&sb, "Flagged: %d of %d scored sessions (%d total)\n", s.Flagged, s.Scored, s.Total)
	fmt.Fprintf(&sb, "Contamination: %.2f\n", s.Contamination)
	if s.RequestedBy != "" {
		fmt.Fprintf(&sb, "Requested by: %s\n", s.RequestedBy)
	}
	if len(s.TopSources) > 0 {
		fmt.Fprintf(&sb, "Sources: %s\n", strings.Join(s.TopSources, ", "))
	}
	return sb.String()
}

// Start handles updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	if b == nil {
		return nil
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("Telegram bot started, waiting for updates...")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Telegram bot shutting down...")
			b.api.StopReceivingUpdates()
			return nil
		case update := <-updates:
			if update.Message != nil {
				b.handleMessage(ctx, update.Message)
			}
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if !message.IsCommand() {
		return
	}
	switch message.Command() {
	case "start", "help":
		b.sendMessage(message.Chat.ID, "IPDR dashboard bot.\n\n/stats - number of stored sessions\n/help - this help")
	case "stats":
		b.sendMessage(message.Chat.ID, b.statsText(ctx))
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Use /help.")
	}
}

func (b *Bot) statsText(ctx context.Context) string {
	if b.stats == nil {
		return "Statistics are not available."
	}
	n, err := b.stats.Count(ctx)
	if err != nil {
		b.logger.Error("Failed to count sessions", zap.Error(err))
		return "Failed to read statistics."
	}
	return fmt.Sprintf("Stored sessions: %d", n)
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
