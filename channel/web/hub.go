// Package web is the web-widget channel: subscribers hold a websocket open
// and receive envelopes addressed to them as JSON frames.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/hexastack/agentic/channel"
)

const Name = "web"

var ErrNotConnected = errors.New("subscriber is not connected")

// Frame is the JSON message written to subscribers.
type Frame struct {
	ID           string               `json:"id"`
	Type         string               `json:"type"`
	Format       channel.Format       `json:"format"`
	Text         string               `json:"text"`
	QuickReplies []channel.QuickReply `json:"quick_replies,omitempty"`
	SentAt       time.Time            `json:"sent_at"`
}

// Inbound is the JSON message subscribers send.
type Inbound struct {
	Text    string `json:"text"`
	Payload string `json:"payload,omitempty"`
}

type Hub struct {
	l            *slog.Logger
	upgrader     websocket.Upgrader
	handler      channel.Handler
	writeTimeout time.Duration

	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(frame Frame, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return c.conn.WriteJSON(frame)
}

type Option func(*Hub)

// WithHandler sets the receiver of messages typed by subscribers.
func WithHandler(h channel.Handler) Option {
	return func(hub *Hub) {
		hub.handler = h
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(hub *Hub) {
		hub.writeTimeout = d
	}
}

func NewHub(l *slog.Logger, opts ...Option) *Hub {
	if l == nil {
		l = slog.Default()
	}
	h := &Hub{
		l:            l,
		writeTimeout: 10 * time.Second,
		clients:      make(map[string]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Serve upgrades the request and holds the subscriber's socket until it
// closes. It returns once the connection is gone.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, subscriber string) error {
	if subscriber == "" {
		http.Error(w, "subscriber is required", http.StatusBadRequest)
		return channel.ErrNoRecipient
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("websocket upgrade failed: %w", err)
	}

	c := &client{conn: conn}
	h.add(subscriber, c)
	h.l.Info("Web subscriber connected", "subscriber", subscriber)

	defer func() {
		h.remove(subscriber, c)
		conn.Close()
		h.l.Info("Web subscriber disconnected", "subscriber", subscriber)
	}()

	ctx := r.Context()
	for {
		var in Inbound
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.l.Warn("Web subscriber read failed", "subscriber", subscriber, "error", err)
			}
			return nil
		}
		if h.handler == nil || (in.Text == "" && in.Payload == "") {
			continue
		}
		text := in.Text
		if text == "" {
			text = in.Payload
		}
		h.handler(ctx, channel.Message{
			Channel: Name,
			Sender:  subscriber,
			Text:    text,
			Payload: in.Payload,
		})
	}
}

// Send writes the envelope to every open socket of the recipient.
func (h *Hub) Send(ctx context.Context, env channel.Envelope, target channel.Target) (channel.DeliveryResult, error) {
	if target.Recipient == "" {
		return channel.DeliveryResult{}, channel.ErrNoRecipient
	}
	if err := env.Validate(); err != nil {
		return channel.DeliveryResult{}, err
	}

	clients := h.connections(target.Recipient)
	if len(clients) == 0 {
		return channel.DeliveryResult{}, fmt.Errorf("%w: %s", ErrNotConnected, target.Recipient)
	}

	frame := Frame{
		ID:           uuid.NewString(),
		Type:         "message",
		Format:       env.Format,
		Text:         env.Text,
		QuickReplies: env.QuickReplies,
		SentAt:       time.Now().UTC(),
	}

	var delivered int
	for _, c := range clients {
		if err := c.write(frame, h.writeTimeout); err != nil {
			h.l.WarnContext(ctx, "Web delivery failed", "subscriber", target.Recipient, "error", err)
			continue
		}
		delivered++
	}
	if delivered == 0 {
		return channel.DeliveryResult{}, fmt.Errorf("%w: every socket of %s failed", ErrNotConnected, target.Recipient)
	}

	return channel.DeliveryResult{
		Channel:     Name,
		Recipient:   target.Recipient,
		MessageID:   frame.ID,
		DeliveredAt: frame.SentAt,
	}, nil
}

// Subscribers returns the ids with at least one open socket.
func (h *Hub) Subscribers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]string, 0, len(h.clients))
	for id := range h.clients {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Close drops every connection.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, set := range h.clients {
		for c := range set {
			c.conn.Close()
		}
		delete(h.clients, id)
	}
}

func (h *Hub) add(subscriber string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[subscriber]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[subscriber] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) remove(subscriber string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.clients[subscriber]
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, subscriber)
	}
}

func (h *Hub) connections(subscriber string) []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*client, 0, len(h.clients[subscriber]))
	for c := range h.clients[subscriber] {
		out = append(out, c)
	}
	return out
}
