// Package webhook delivers envelopes by POSTing them as JSON to a configured
// endpoint, for channels bridged by an external service.
package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/Jeffail/gabs/v2"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/hexastack/agentic/channel"
	"github.com/hexastack/agentic/runtime"
)

const Name = "webhook"

type Config struct {
	URL         string            `yaml:"url" json:"url" validate:"required,url_format"`
	Headers     map[string]string `yaml:"headers" json:"headers"`
	Timeout     time.Duration     `yaml:"timeout" json:"timeout" default:"10s" validate:"gte=1s"`
	MaxRetries  int               `yaml:"max_retries" json:"max_retries" default:"2" validate:"gte=0,lte=10"`
	RetryWaitMS int               `yaml:"retry_wait_ms" json:"retry_wait_ms" default:"200" validate:"gte=0,lte=10000"`
}

type Channel struct {
	config Config
	client *resty.Client
}

// New validates the config and builds the client.
func New(config Config) (*Channel, error) {
	if err := runtime.PrepareConfig(&config); err != nil {
		return nil, fmt.Errorf("webhook channel: %w", err)
	}
	client := resty.New().
		SetTimeout(config.Timeout).
		SetRetryCount(config.MaxRetries).
		SetRetryWaitTime(time.Duration(config.RetryWaitMS) * time.Millisecond).
		SetHeader("Content-Type", "application/json").
		SetHeaders(config.Headers)

	// Retry only on transport failures and 5xx responses.
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		return err != nil || r.StatusCode() >= 500
	})

	return &Channel{config: config, client: client}, nil
}

func (c *Channel) Send(ctx context.Context, env channel.Envelope, target channel.Target) (channel.DeliveryResult, error) {
	if target.Recipient == "" {
		return channel.DeliveryResult{}, channel.ErrNoRecipient
	}
	if err := env.Validate(); err != nil {
		return channel.DeliveryResult{}, err
	}

	name := target.Name
	if name == "" {
		name = Name
	}
	body, err := buildBody(env, target, name)
	if err != nil {
		return channel.DeliveryResult{}, err
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(body.Bytes()).
		Post(c.config.URL)
	if err != nil {
		return channel.DeliveryResult{}, fmt.Errorf("webhook request failed: %w", err)
	}
	if resp.IsError() {
		return channel.DeliveryResult{}, fmt.Errorf("webhook rejected delivery: %s", resp.Status())
	}

	return channel.DeliveryResult{
		Channel:     name,
		Recipient:   target.Recipient,
		MessageID:   messageID(resp.Body()),
		DeliveredAt: time.Now(),
	}, nil
}

func buildBody(env channel.Envelope, target channel.Target, name string) (*gabs.Container, error) {
	body := gabs.New()
	if _, err := body.Set(name, "recipient", "channel"); err != nil {
		return nil, err
	}
	if _, err := body.Set(target.Recipient, "recipient", "id"); err != nil {
		return nil, err
	}
	if len(target.Metadata) > 0 {
		if _, err := body.Set(target.Metadata, "recipient", "metadata"); err != nil {
			return nil, err
		}
	}
	if _, err := body.Set(string(env.Format), "message", "format"); err != nil {
		return nil, err
	}
	if _, err := body.Set(env.Text, "message", "text"); err != nil {
		return nil, err
	}
	if len(env.QuickReplies) > 0 {
		if _, err := body.Array("message", "quick_replies"); err != nil {
			return nil, err
		}
		for _, qr := range env.QuickReplies {
			reply := map[string]any{"title": qr.Title, "payload": qr.Payload}
			if err := body.ArrayAppend(reply, "message", "quick_replies"); err != nil {
				return nil, err
			}
		}
	}
	return body, nil
}

// messageID reads the id the receiver assigned, falling back to a local one.
func messageID(data []byte) string {
	parsed, err := gabs.ParseJSON(data)
	if err == nil {
		for _, path := range []string{"message_id", "id", "data.message_id"} {
			if id, ok := parsed.Path(path).Data().(string); ok && id != "" {
				return id
			}
		}
	}
	return uuid.NewString()
}
