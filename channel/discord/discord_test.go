package discord

import (
	"fmt"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/hexastack/agentic/channel"
)

func replies(n int) []channel.QuickReply {
	out := make([]channel.QuickReply, n)
	for i := range out {
		out[i] = channel.QuickReply{Title: fmt.Sprintf("Option %d", i), Payload: fmt.Sprintf("opt_%d", i)}
	}
	return out
}

func TestButtonRows(t *testing.T) {
	tests := []struct {
		name     string
		replies  []channel.QuickReply
		wantRows []int
		wantErr  bool
	}{
		{"single", replies(1), []int{1}, false},
		{"full row", replies(5), []int{5}, false},
		{"spills into second row", replies(7), []int{5, 2}, false},
		{"maximum", replies(25), []int{5, 5, 5, 5, 5}, false},
		{"too many", replies(26), nil, true},
		{"payload too long", []channel.QuickReply{{Title: "x", Payload: strings.Repeat("p", maxCustomID+1)}}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := buttonRows(tt.replies)
			if (err != nil) != tt.wantErr {
				t.Fatalf("buttonRows() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(rows) != len(tt.wantRows) {
				t.Fatalf("rows = %d, want %d", len(rows), len(tt.wantRows))
			}
			for i, r := range rows {
				row := r.(discordgo.ActionsRow)
				if len(row.Components) != tt.wantRows[i] {
					t.Errorf("row %d has %d buttons, want %d", i, len(row.Components), tt.wantRows[i])
				}
			}
		})
	}
}

func TestButtonRows_CarryPayload(t *testing.T) {
	rows, err := buttonRows([]channel.QuickReply{{Title: "Get help", Payload: "help"}})
	if err != nil {
		t.Fatalf("buttonRows() error = %v", err)
	}
	btn := rows[0].(discordgo.ActionsRow).Components[0].(discordgo.Button)
	if btn.Label != "Get help" || btn.CustomID != "help" {
		t.Errorf("button = %+v", btn)
	}
}

func TestInboundMessage(t *testing.T) {
	msg := inboundMessage("chan-1", &discordgo.User{ID: "u1", Username: "alice"}, "help", "help")
	if msg.Channel != Name || msg.Sender != "chan-1" || msg.Payload != "help" {
		t.Errorf("message = %+v", msg)
	}
	if msg.Metadata["username"] != "alice" {
		t.Errorf("metadata = %v", msg.Metadata)
	}
	if in := msg.Input(); in["text"] != "help" {
		t.Errorf("Input() = %v", in)
	}
}

func TestNew_RequiresToken(t *testing.T) {
	if _, err := New(Config{}, nil, nil); err == nil {
		t.Fatal("New() error = nil, want missing token")
	}
}
