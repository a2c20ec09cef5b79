package channel

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Router dispatches an envelope to the channel named by its target.
type Router struct {
	l        *slog.Logger
	mu       sync.RWMutex
	channels map[string]Dispatcher
	fallback string
}

func NewRouter(l *slog.Logger) *Router {
	if l == nil {
		l = slog.Default()
	}
	return &Router{
		l:        l,
		channels: make(map[string]Dispatcher),
	}
}

// Register adds a channel. The first registered channel is the fallback for
// targets that do not name one.
func (r *Router) Register(name string, d Dispatcher) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.channels[name]; exists {
		return fmt.Errorf("channel %s already registered", name)
	}
	r.channels[name] = d
	if r.fallback == "" {
		r.fallback = name
	}
	return nil
}

// Channels returns the registered channel names, sorted.
func (r *Router) Channels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.channels))
	for name := range r.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Router) Send(ctx context.Context, env Envelope, target Target) (DeliveryResult, error) {
	r.mu.RLock()
	name := target.Name
	if name == "" {
		name = r.fallback
	}
	d, ok := r.channels[name]
	r.mu.RUnlock()

	if !ok {
		return DeliveryResult{}, fmt.Errorf("%w: %q", ErrUnknownChannel, target.Name)
	}

	target.Name = name
	res, err := d.Send(ctx, env, target)
	if err != nil {
		r.l.ErrorContext(ctx, "Delivery failed", "channel", name, "recipient", target.Recipient, "error", err)
		return DeliveryResult{}, fmt.Errorf("channel %s: %w", name, err)
	}
	r.l.DebugContext(ctx, "Message delivered", "channel", name, "recipient", target.Recipient, "message_id", res.MessageID)
	return res, nil
}
