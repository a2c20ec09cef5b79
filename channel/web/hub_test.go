package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hexastack/agentic/channel"
)

func startHub(t *testing.T, opts ...Option) (*Hub, string) {
	t.Helper()
	hub := NewHub(nil, opts...)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(w, r, strings.TrimPrefix(r.URL.Path, "/ws/"))
	}))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_SendToSubscriber(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url+"alice")
	waitFor(t, func() bool { return len(hub.Subscribers()) == 1 })

	env := channel.QuickRepliesEnvelope("What would you like to do next?", []channel.QuickReply{
		{Title: "Get help", Payload: "help"},
		{Title: "Talk to an agent", Payload: "agent"},
	})
	res, err := hub.Send(context.Background(), env, channel.Target{Name: Name, Recipient: "alice"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame Frame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if frame.ID != res.MessageID || frame.Text != env.Text || len(frame.QuickReplies) != 2 {
		t.Errorf("frame = %+v, result = %+v", frame, res)
	}
	if frame.Format != channel.FormatQuickReplies {
		t.Errorf("Format = %q", frame.Format)
	}
}

func TestHub_SendToDisconnected(t *testing.T) {
	hub, _ := startHub(t)
	_, err := hub.Send(context.Background(), channel.TextEnvelope("hi"), channel.Target{Recipient: "bob"})
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send() error = %v, want ErrNotConnected", err)
	}
}

func TestHub_InboundMessages(t *testing.T) {
	received := make(chan channel.Message, 1)
	hub, url := startHub(t, WithHandler(func(_ context.Context, msg channel.Message) {
		received <- msg
	}))
	conn := dial(t, url+"carol")
	waitFor(t, func() bool { return len(hub.Subscribers()) == 1 })

	if err := conn.WriteJSON(Inbound{Payload: "help"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	select {
	case msg := <-received:
		if msg.Channel != Name || msg.Sender != "carol" || msg.Payload != "help" || msg.Text != "help" {
			t.Errorf("message = %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no inbound message received")
	}
}

func TestHub_DisconnectUnregisters(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url+"dave")
	waitFor(t, func() bool { return len(hub.Subscribers()) == 1 })

	conn.Close()
	waitFor(t, func() bool { return len(hub.Subscribers()) == 0 })
}
