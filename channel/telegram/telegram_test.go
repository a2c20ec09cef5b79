package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-telegram/bot/models"

	"github.com/hexastack/agentic/channel"
)

const testToken = "123456:TEST-token"

type sentMessage struct {
	chatID      string
	text        string
	replyMarkup string
}

func fakeBotAPI(t *testing.T) (*httptest.Server, *[]sentMessage) {
	t.Helper()
	var sent []sentMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm() error = %v", err)
		}
		sent = append(sent, sentMessage{
			chatID:      r.FormValue("chat_id"),
			text:        r.FormValue("text"),
			replyMarkup: r.FormValue("reply_markup"),
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":1700000000,"chat":{"id":1,"type":"private"}}}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &sent
}

func TestNew_RequiresToken(t *testing.T) {
	if _, err := New(Config{SkipGetMe: true}, nil, nil); err == nil {
		t.Fatal("New() error = nil, want missing token")
	}
}

func TestChannel_Send(t *testing.T) {
	srv, sent := fakeBotAPI(t)
	c, err := New(Config{Token: testToken, ServerURL: srv.URL, SkipGetMe: true}, nil, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	env := channel.QuickRepliesEnvelope("What would you like to do next?", []channel.QuickReply{
		{Title: "Get help", Payload: "help"},
		{Title: "Talk to an agent", Payload: "agent"},
	})
	res, err := c.Send(context.Background(), env, channel.Target{Name: Name, Recipient: "1"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if res.MessageID != "7" || res.Recipient != "1" || res.Channel != Name {
		t.Errorf("Send() = %+v", res)
	}
	if res.DeliveredAt.Unix() != 1700000000 {
		t.Errorf("DeliveredAt = %v", res.DeliveredAt)
	}

	if len(*sent) != 1 {
		t.Fatalf("requests = %d, want 1", len(*sent))
	}
	got := (*sent)[0]
	if got.chatID != "1" || got.text != env.Text {
		t.Errorf("request = %+v", got)
	}

	var markup models.InlineKeyboardMarkup
	if err := json.Unmarshal([]byte(got.replyMarkup), &markup); err != nil {
		t.Fatalf("reply_markup %q: %v", got.replyMarkup, err)
	}
	if len(markup.InlineKeyboard) != 2 || markup.InlineKeyboard[1][0].CallbackData != "agent" {
		t.Errorf("keyboard = %+v", markup.InlineKeyboard)
	}
}

func TestChannel_SendRejects(t *testing.T) {
	srv, sent := fakeBotAPI(t)
	c, err := New(Config{Token: testToken, ServerURL: srv.URL, SkipGetMe: true}, nil, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tests := []struct {
		name   string
		env    channel.Envelope
		target channel.Target
	}{
		{"no recipient", channel.TextEnvelope("hi"), channel.Target{}},
		{"non numeric chat", channel.TextEnvelope("hi"), channel.Target{Recipient: "alice"}},
		{"empty text", channel.TextEnvelope(""), channel.Target{Recipient: "1"}},
		{"payload too long", channel.QuickRepliesEnvelope("pick", []channel.QuickReply{
			{Title: "x", Payload: strings.Repeat("p", maxCallbackData+1)},
		}), channel.Target{Recipient: "1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := c.Send(context.Background(), tt.env, tt.target); err == nil {
				t.Error("Send() error = nil")
			}
		})
	}
	if len(*sent) != 0 {
		t.Errorf("requests = %d, want 0", len(*sent))
	}
}

func TestHandleUpdate(t *testing.T) {
	var got []channel.Message
	c := &Channel{handler: func(_ context.Context, msg channel.Message) {
		got = append(got, msg)
	}}

	c.handleUpdate(context.Background(), nil, &models.Update{
		Message: &models.Message{
			Text: "hello",
			Chat: models.Chat{ID: 42},
			From: &models.User{Username: "alice"},
		},
	})
	c.handleUpdate(context.Background(), nil, &models.Update{
		Message: &models.Message{Chat: models.Chat{ID: 42}},
	})

	if len(got) != 1 {
		t.Fatalf("messages = %d, want 1", len(got))
	}
	if got[0].Sender != "42" || got[0].Text != "hello" || got[0].Metadata["username"] != "alice" {
		t.Errorf("message = %+v", got[0])
	}
}
