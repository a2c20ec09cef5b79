package runtime

import "testing"

func TestIsSnakeCase(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"send_text_message", true},
		{"a", true},
		{"task2", true},
		{"", false},
		{"SendText", false},
		{"send-text", false},
		{"2task", false},
		{"_hidden", false},
		{"send.text", false},
	}

	for _, tt := range tests {
		if got := IsSnakeCase(tt.name); got != tt.want {
			t.Errorf("IsSnakeCase(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSnakeCase(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"sendGreeting", "send_greeting"},
		{"send-greeting", "send_greeting"},
		{"send.greeting", "send_greeting"},
		{"Send Greeting", "send_greeting"},
		{"already_snake", "already_snake"},
		{"-leading-", "leading"},
		{"a--b", "a_b"},
		{"step2Next", "step2_next"},
	}

	for _, tt := range tests {
		if got := SnakeCase(tt.input); got != tt.want {
			t.Errorf("SnakeCase(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
