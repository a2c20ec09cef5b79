// Package telegram is the Telegram channel. Quick replies are rendered as an
// inline keyboard whose callback data is the reply payload.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/hexastack/agentic/channel"
	"github.com/hexastack/agentic/runtime"
)

const Name = "telegram"

// maxCallbackData is Telegram's limit on inline button callback data.
const maxCallbackData = 64

type Config struct {
	Token string `yaml:"token" json:"token" validate:"required"`
	// ServerURL overrides the Bot API endpoint (local Bot API server, tests).
	ServerURL string `yaml:"server_url" json:"server_url"`
	// SkipGetMe skips the token check New performs against the API.
	SkipGetMe bool `yaml:"skip_get_me" json:"skip_get_me"`
}

type Channel struct {
	l       *slog.Logger
	bot     *bot.Bot
	handler channel.Handler
}

// New creates the bot. handler receives text messages and button clicks; it
// may be nil for send-only use.
func New(config Config, l *slog.Logger, handler channel.Handler) (*Channel, error) {
	if err := runtime.PrepareConfig(&config); err != nil {
		return nil, fmt.Errorf("telegram channel: %w", err)
	}
	if l == nil {
		l = slog.Default()
	}

	c := &Channel{l: l, handler: handler}

	opts := []bot.Option{
		bot.WithDefaultHandler(c.handleUpdate),
		bot.WithErrorsHandler(func(err error) {
			c.l.Warn("Telegram bot error", "error", err)
		}),
	}
	if config.ServerURL != "" {
		opts = append(opts, bot.WithServerURL(config.ServerURL))
	}
	if config.SkipGetMe {
		opts = append(opts, bot.WithSkipGetMe())
	}

	b, err := bot.New(config.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	c.bot = b
	return c, nil
}

// Start long-polls for updates until ctx is cancelled.
func (c *Channel) Start(ctx context.Context) error {
	c.l.InfoContext(ctx, "Telegram channel polling")
	c.bot.Start(ctx)
	c.l.InfoContext(ctx, "Telegram channel stopped")
	return nil
}

func (c *Channel) Send(ctx context.Context, env channel.Envelope, target channel.Target) (channel.DeliveryResult, error) {
	if target.Recipient == "" {
		return channel.DeliveryResult{}, channel.ErrNoRecipient
	}
	if err := env.Validate(); err != nil {
		return channel.DeliveryResult{}, err
	}
	chatID, err := strconv.ParseInt(target.Recipient, 10, 64)
	if err != nil {
		return channel.DeliveryResult{}, fmt.Errorf("telegram recipient %q is not a chat id", target.Recipient)
	}

	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   env.Text,
	}
	if env.Format == channel.FormatQuickReplies {
		keyboard, err := inlineKeyboard(env.QuickReplies)
		if err != nil {
			return channel.DeliveryResult{}, err
		}
		params.ReplyMarkup = keyboard
	}

	msg, err := c.bot.SendMessage(ctx, params)
	if err != nil {
		return channel.DeliveryResult{}, fmt.Errorf("telegram send failed: %w", err)
	}

	return channel.DeliveryResult{
		Channel:     Name,
		Recipient:   target.Recipient,
		MessageID:   strconv.Itoa(msg.ID),
		DeliveredAt: timeOf(msg),
	}, nil
}

func timeOf(msg *models.Message) time.Time {
	if msg.Date == 0 {
		return time.Now()
	}
	return time.Unix(int64(msg.Date), 0)
}

func inlineKeyboard(replies []channel.QuickReply) (*models.InlineKeyboardMarkup, error) {
	rows := make([][]models.InlineKeyboardButton, 0, len(replies))
	for _, r := range replies {
		if len(r.Payload) > maxCallbackData {
			return nil, fmt.Errorf("quick reply payload %q exceeds %d bytes", r.Payload, maxCallbackData)
		}
		rows = append(rows, []models.InlineKeyboardButton{
			{Text: r.Title, CallbackData: r.Payload},
		})
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}, nil
}

func (c *Channel) handleUpdate(ctx context.Context, b *bot.Bot, update *models.Update) {
	if c.handler == nil {
		return
	}

	switch {
	case update.CallbackQuery != nil:
		cb := update.CallbackQuery
		b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: cb.ID})
		if cb.Message.Message == nil {
			return
		}
		c.handler(ctx, channel.Message{
			Channel: Name,
			Sender:  strconv.FormatInt(cb.Message.Message.Chat.ID, 10),
			Text:    cb.Data,
			Payload: cb.Data,
		})

	case update.Message != nil && update.Message.Text != "":
		m := update.Message
		msg := channel.Message{
			Channel: Name,
			Sender:  strconv.FormatInt(m.Chat.ID, 10),
			Text:    m.Text,
		}
		if m.From != nil {
			msg.Metadata = map[string]any{"username": m.From.Username}
		}
		c.handler(ctx, msg)
	}
}
