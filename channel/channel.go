// Package channel delivers outbound messages produced by workflow actions
// to messaging channels, and turns inbound channel traffic into Messages.
package channel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hexastack/agentic/runtime"
)

var (
	ErrUnknownChannel = errors.New("unknown channel")
	ErrNoRecipient    = errors.New("recipient is required")
	ErrEmptyEnvelope  = errors.New("envelope has no text")
)

type Format string

const (
	FormatText         Format = "text"
	FormatQuickReplies Format = "quickReplies"
)

// QuickReply is a suggested answer rendered as a button by the channel.
type QuickReply struct {
	Title   string `json:"title" jsonschema:"minLength=1" validate:"required"`
	Payload string `json:"payload" jsonschema:"minLength=1" validate:"required"`
}

// Envelope is a rendered outbound message.
type Envelope struct {
	Format       Format       `json:"format"`
	Text         string       `json:"text"`
	QuickReplies []QuickReply `json:"quick_replies,omitempty"`
}

func TextEnvelope(text string) Envelope {
	return Envelope{Format: FormatText, Text: text}
}

func QuickRepliesEnvelope(text string, replies []QuickReply) Envelope {
	return Envelope{Format: FormatQuickReplies, Text: text, QuickReplies: replies}
}

func (e Envelope) Validate() error {
	if e.Text == "" {
		return ErrEmptyEnvelope
	}
	switch e.Format {
	case FormatText:
	case FormatQuickReplies:
		if len(e.QuickReplies) == 0 {
			return fmt.Errorf("quick replies envelope has no replies")
		}
		for i, r := range e.QuickReplies {
			if r.Title == "" || r.Payload == "" {
				return fmt.Errorf("quick reply %d: title and payload are required", i)
			}
		}
	default:
		return fmt.Errorf("unsupported envelope format %q", e.Format)
	}
	return nil
}

// Target addresses a conversation; it is the channel identity a run carries.
type Target = runtime.Channel

// DeliveryResult describes an accepted delivery.
type DeliveryResult struct {
	Channel     string    `json:"channel"`
	Recipient   string    `json:"recipient"`
	MessageID   string    `json:"message_id"`
	DeliveredAt time.Time `json:"delivered_at"`
}

// Dispatcher delivers envelopes over one or more channels. Delivery failures
// are returned as errors; retries belong to the implementation.
type Dispatcher interface {
	Send(ctx context.Context, env Envelope, target Target) (DeliveryResult, error)
}

type DispatcherFunc func(ctx context.Context, env Envelope, target Target) (DeliveryResult, error)

func (f DispatcherFunc) Send(ctx context.Context, env Envelope, target Target) (DeliveryResult, error) {
	return f(ctx, env, target)
}

// Message is an inbound message received from a channel.
type Message struct {
	Channel  string         `json:"channel"`
	Sender   string         `json:"sender"`
	Text     string         `json:"text"`
	Payload  string         `json:"payload,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Input renders the message as a workflow $input payload.
func (m Message) Input() map[string]any {
	in := map[string]any{
		"channel": m.Channel,
		"sender":  m.Sender,
		"text":    m.Text,
	}
	if m.Payload != "" {
		in["payload"] = m.Payload
	}
	if len(m.Metadata) > 0 {
		in["metadata"] = m.Metadata
	}
	return in
}

// Target returns the address replies to the message go to.
func (m Message) Target() Target {
	return Target{Name: m.Channel, Recipient: m.Sender, Metadata: m.Metadata}
}

// Handler receives inbound messages.
type Handler func(ctx context.Context, msg Message)

func checkTarget(env Envelope, target Target) error {
	if target.Recipient == "" {
		return ErrNoRecipient
	}
	return env.Validate()
}
