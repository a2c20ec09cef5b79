package channel

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Delivery is one envelope accepted by a Recorder.
type Delivery struct {
	Envelope Envelope
	Target   Target
	Result   DeliveryResult
}

// Recorder is an in-memory Dispatcher. It accepts every valid envelope and
// keeps it for inspection; the CLI uses it to print what a run would send.
type Recorder struct {
	name string
	l    *slog.Logger

	mu         sync.Mutex
	deliveries []Delivery
	fail       error
}

func NewRecorder(name string, l *slog.Logger) *Recorder {
	return &Recorder{name: name, l: l}
}

// FailWith makes subsequent sends return err. Pass nil to resume.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail = err
}

func (r *Recorder) Send(ctx context.Context, env Envelope, target Target) (DeliveryResult, error) {
	if err := checkTarget(env, target); err != nil {
		return DeliveryResult{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.fail != nil {
		return DeliveryResult{}, r.fail
	}

	if target.Name == "" {
		target.Name = r.name
	}
	res := DeliveryResult{
		Channel:     target.Name,
		Recipient:   target.Recipient,
		MessageID:   uuid.NewString(),
		DeliveredAt: time.Now(),
	}
	r.deliveries = append(r.deliveries, Delivery{Envelope: env, Target: target, Result: res})

	if r.l != nil {
		r.l.InfoContext(ctx, "Outbound message",
			"channel", res.Channel,
			"recipient", res.Recipient,
			"format", env.Format,
			"text", env.Text,
			"quick_replies", len(env.QuickReplies))
	}
	return res, nil
}

// Deliveries returns a copy of everything sent so far.
func (r *Recorder) Deliveries() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Delivery(nil), r.deliveries...)
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = nil
}
