// Package messaging provides the actions that talk to the user. Each one
// renders an envelope and hands it to the dispatcher, addressed to the
// channel of the run.
package messaging

import (
	"context"
	"fmt"

	"github.com/hexastack/agentic/channel"
	"github.com/hexastack/agentic/runtime"
	"github.com/hexastack/agentic/runtime/plugin"
)

const (
	SendTextMessage  = "send_text_message"
	SendQuickReplies = "send_quick_replies"
)

type TextInput struct {
	Text string `json:"text" jsonschema:"minLength=1" validate:"required"`
}

// QuickRepliesInput carries at most 13 replies, the most any channel renders.
type QuickRepliesInput struct {
	Text         string               `json:"text" jsonschema:"minLength=1" validate:"required"`
	QuickReplies []channel.QuickReply `json:"quick_replies" jsonschema:"minItems=1,maxItems=13" validate:"required,min=1,max=13,dive"`
}

// MessageOutput describes the message that was sent. Text is echoed so later
// tasks and workflow outputs can refer to what the user saw.
type MessageOutput struct {
	Text      string         `json:"text"`
	Format    channel.Format `json:"format"`
	Channel   string         `json:"channel"`
	Recipient string         `json:"recipient"`
	MessageID string         `json:"message_id"`
}

// Actions builds the messaging actions bound to d.
func Actions(d channel.Dispatcher) []runtime.Action {
	return []runtime.Action{
		plugin.MustDefine(SendTextMessage, "Sends a plain text message to the user",
			func(ctx context.Context, in TextInput, _ plugin.NoSettings, actx plugin.Context) (MessageOutput, error) {
				return send(ctx, d, channel.TextEnvelope(in.Text), actx)
			}),
		plugin.MustDefine(SendQuickReplies, "Sends a message with suggested replies rendered as buttons",
			func(ctx context.Context, in QuickRepliesInput, _ plugin.NoSettings, actx plugin.Context) (MessageOutput, error) {
				return send(ctx, d, channel.QuickRepliesEnvelope(in.Text, in.QuickReplies), actx)
			}),
	}
}

// Register adds the messaging actions to r.
func Register(r *runtime.Registry, d channel.Dispatcher) error {
	for _, a := range Actions(d) {
		if err := r.Register(a); err != nil {
			return err
		}
	}
	return nil
}

func send(ctx context.Context, d channel.Dispatcher, env channel.Envelope, actx plugin.Context) (MessageOutput, error) {
	res, err := d.Send(ctx, env, actx.Channel)
	if err != nil {
		return MessageOutput{}, runtime.NewActionError(fmt.Errorf("delivery failed: %w", err)).
			WithMetadata("channel", actx.Channel.Name).
			WithMetadata("format", string(env.Format))
	}
	if actx.Logger != nil {
		actx.Logger.DebugContext(ctx, "Message delivered",
			"channel", res.Channel,
			"recipient", res.Recipient,
			"message_id", res.MessageID)
	}
	return MessageOutput{
		Text:      env.Text,
		Format:    env.Format,
		Channel:   res.Channel,
		Recipient: res.Recipient,
		MessageID: res.MessageID,
	}, nil
}
