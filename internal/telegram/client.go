// Package telegram provides a client for sending notifications via Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/volspike/internal/models"
)

// Client handles Telegram notifications.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// ListenForCommands starts a goroutine that polls for Telegram updates and handles bot commands.
// It returns immediately; the goroutine stops when ctx is cancelled.
func (c *Client) ListenForCommands(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil && update.Message.IsCommand() {
					c.handleCommand(update.Message)
				}
			}
		}
	}()
}

func (c *Client) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "ping":
		reply := tgbotapi.NewMessage(msg.Chat.ID, "Pong")
		c.bot.Send(reply) //nolint:errcheck
	}
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// SendError sends a quote polling error notification.
// Call this only on the first occurrence of a consecutive error sequence.
func (c *Client) SendError(cycleErr error) error {
	text := fmt.Sprintf("⚠️ *Quote polling error*\n`%s`", escapeMarkdownV2(cycleErr.Error()))
	return c.sendMarkdownV2(text)
}

// SendRecovery sends a recovery notification after consecutive failures.
func (c *Client) SendRecovery(failureCount int) error {
	text := fmt.Sprintf("✅ *Quote polling recovered* after %d consecutive failure\\(s\\)", failureCount)
	return c.sendMarkdownV2(text)
}

// Notify sends a volume breakout alert.
func (c *Client) Notify(ctx context.Context, alert models.Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.sendMarkdownV2(formatAlert(alert))
}

// quoteURL links a symbol to its chart page.
func quoteURL(symbol string) string {
	return fmt.Sprintf("https://tw.stock.yahoo.com/quote/%s/technical-analysis", symbol)
}

// formatAlert formats an alert into a Telegram MarkdownV2 message.
func formatAlert(alert models.Alert) string {
	var b strings.Builder

	b.WriteString("🚨 *Volume Breakout*\n\n")
	title := escapeMarkdownV2(strings.TrimSpace(alert.Symbol + " " + alert.Name))
	fmt.Fprintf(&b, "[%s](%s) \\(%s\\)\n", title, quoteURL(alert.Symbol), escapeMarkdownV2(strings.ToUpper(string(alert.Exchange))))
	fmt.Fprintf(&b, "📅 Detected: %s\n\n", escapeMarkdownV2(alert.DetectedAt.Format("2006-01-02 15:04:05")))

	fmt.Fprintf(&b, "📊 Projected: *%s* lots \\(x%s of 5MA\\)\n",
		escapeMarkdownV2(fmt.Sprintf("%.0f", alert.ProjectedVolume)),
		escapeMarkdownV2(fmt.Sprintf("%.2f", alert.Ratio())))
	fmt.Fprintf(&b, "   Accumulated: %s lots at %s of session\n",
		escapeMarkdownV2(fmt.Sprintf("%.0f", alert.AccumulatedVolume)),
		escapeMarkdownV2(fmt.Sprintf("%.1f%%", alert.SessionFraction*100)))
	fmt.Fprintf(&b, "   5MA volume: %s lots\n", escapeMarkdownV2(fmt.Sprintf("%.0f", alert.BaselineVolume)))

	if alert.PriceAvailable {
		line := fmt.Sprintf("💰 Price: %s", escapeMarkdownV2(fmt.Sprintf("%.2f", alert.CurrentPrice)))
		if change, ok := alert.PriceChange(); ok {
			emoji := "📈"
			if change < 0 {
				emoji = "📉"
			}
			line += fmt.Sprintf(" %s %s", emoji, escapeMarkdownV2(fmt.Sprintf("%+.2f%%", change*100)))
		}
		b.WriteString(line + "\n")
	} else {
		b.WriteString("💰 Price: n/a\n")
	}

	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4) // pre-allocate with room for escapes
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
