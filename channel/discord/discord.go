// Package discord is the Discord channel. Quick replies are rendered as
// button rows whose custom id is the reply payload.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/hexastack/agentic/channel"
	"github.com/hexastack/agentic/runtime"
)

const Name = "discord"

// Discord accepts at most five buttons per row and five rows per message.
const (
	buttonsPerRow = 5
	maxRows       = 5
	maxCustomID   = 100
)

type Config struct {
	Token string `yaml:"token" json:"token" validate:"required"`
}

type Channel struct {
	l       *slog.Logger
	session *discordgo.Session
	handler channel.Handler
}

// New creates the session without connecting. handler may be nil for
// send-only use.
func New(config Config, l *slog.Logger, handler channel.Handler) (*Channel, error) {
	if err := runtime.PrepareConfig(&config); err != nil {
		return nil, fmt.Errorf("discord channel: %w", err)
	}
	if l == nil {
		l = slog.Default()
	}

	session, err := discordgo.New("Bot " + config.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	c := &Channel{l: l, session: session, handler: handler}
	session.AddHandler(c.handleMessage)
	session.AddHandler(c.handleInteraction)
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent

	return c, nil
}

// Start opens the gateway connection and blocks until ctx is cancelled.
func (c *Channel) Start(ctx context.Context) error {
	if err := c.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	c.l.InfoContext(ctx, "Discord channel connected")
	<-ctx.Done()
	return c.session.Close()
}

func (c *Channel) Send(ctx context.Context, env channel.Envelope, target channel.Target) (channel.DeliveryResult, error) {
	if target.Recipient == "" {
		return channel.DeliveryResult{}, channel.ErrNoRecipient
	}
	if err := env.Validate(); err != nil {
		return channel.DeliveryResult{}, err
	}

	data := &discordgo.MessageSend{Content: env.Text}
	if env.Format == channel.FormatQuickReplies {
		rows, err := buttonRows(env.QuickReplies)
		if err != nil {
			return channel.DeliveryResult{}, err
		}
		data.Components = rows
	}

	msg, err := c.session.ChannelMessageSendComplex(target.Recipient, data, discordgo.WithContext(ctx))
	if err != nil {
		return channel.DeliveryResult{}, fmt.Errorf("discord send failed: %w", err)
	}

	delivered := msg.Timestamp
	if delivered.IsZero() {
		delivered = time.Now()
	}
	return channel.DeliveryResult{
		Channel:     Name,
		Recipient:   target.Recipient,
		MessageID:   msg.ID,
		DeliveredAt: delivered,
	}, nil
}

func buttonRows(replies []channel.QuickReply) ([]discordgo.MessageComponent, error) {
	if len(replies) > buttonsPerRow*maxRows {
		return nil, fmt.Errorf("discord allows at most %d quick replies, got %d", buttonsPerRow*maxRows, len(replies))
	}

	var rows []discordgo.MessageComponent
	for start := 0; start < len(replies); start += buttonsPerRow {
		end := min(start+buttonsPerRow, len(replies))
		row := discordgo.ActionsRow{}
		for _, r := range replies[start:end] {
			if len(r.Payload) > maxCustomID {
				return nil, fmt.Errorf("quick reply payload %q exceeds %d bytes", r.Payload, maxCustomID)
			}
			row.Components = append(row.Components, discordgo.Button{
				Label:    r.Title,
				Style:    discordgo.PrimaryButton,
				CustomID: r.Payload,
			})
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (c *Channel) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if c.handler == nil || m.Author == nil || m.Content == "" {
		return
	}
	if s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}
	c.handler(context.Background(), inboundMessage(m.ChannelID, m.Author, m.Content, ""))
}

func (c *Channel) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionMessageComponent {
		return
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})
	if err != nil {
		c.l.Warn("Discord interaction ack failed", "error", err)
	}
	if c.handler == nil {
		return
	}

	user := i.User
	if i.Member != nil && i.Member.User != nil {
		user = i.Member.User
	}
	payload := i.MessageComponentData().CustomID
	c.handler(context.Background(), inboundMessage(i.ChannelID, user, payload, payload))
}

// inboundMessage keys the sender by channel id, the address Send expects.
func inboundMessage(channelID string, author *discordgo.User, text, payload string) channel.Message {
	msg := channel.Message{
		Channel: Name,
		Sender:  channelID,
		Text:    text,
		Payload: payload,
	}
	if author != nil {
		msg.Metadata = map[string]any{"user_id": author.ID, "username": author.Username}
	}
	return msg
}
