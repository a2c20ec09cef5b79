package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/hexastack/agentic/channel"
	"github.com/hexastack/agentic/runtime"
)

const greeting = `
workflow:
  name: greeting
  version: 1.0.0
tasks:
  send_greeting:
    action: send_text_message
    inputs:
      text: ="Welcome to Hexabot! Let us know how to help."
  prompt_next_step:
    action: send_quick_replies
    inputs:
      text: What would you like to do next?
      quick_replies:
        - title: Get help
          payload: help
        - title: Talk to an agent
          payload: agent
flow:
  - do: send_greeting
  - do: prompt_next_step
outputs:
  last_prompt: =$output.prompt_next_step.text ?? ""
  message_id: =$output.prompt_next_step.message_id
`

func setup(t *testing.T) (*runtime.Registry, *channel.Recorder, *runtime.Workflow) {
	t.Helper()
	rec := channel.NewRecorder("web", nil)
	r := runtime.NewRegistry()
	if err := Register(r, rec); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	wf, err := runtime.LoadWorkflowBytes([]byte(greeting), r)
	if err != nil {
		t.Fatalf("LoadWorkflowBytes() error = %v", err)
	}
	return r, rec, wf
}

func TestGreetingWorkflow(t *testing.T) {
	r, rec, wf := setup(t)

	result, err := runtime.NewInterpreter(r).Run(context.Background(), wf, runtime.RunRequest{
		Channel: runtime.Channel{Name: "web", Recipient: "subscriber-1"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := result.Outputs["last_prompt"]; got != "What would you like to do next?" {
		t.Errorf("last_prompt = %v", got)
	}

	sent := rec.Deliveries()
	if len(sent) != 2 {
		t.Fatalf("deliveries = %d, want 2", len(sent))
	}
	if sent[0].Envelope.Format != channel.FormatText || sent[0].Envelope.Text != "Welcome to Hexabot! Let us know how to help." {
		t.Errorf("first delivery = %+v", sent[0].Envelope)
	}
	qr := sent[1].Envelope
	if qr.Format != channel.FormatQuickReplies || len(qr.QuickReplies) != 2 {
		t.Fatalf("second delivery = %+v", qr)
	}
	if qr.QuickReplies[0].Payload != "help" || qr.QuickReplies[1].Payload != "agent" {
		t.Errorf("quick replies = %+v", qr.QuickReplies)
	}
	if sent[1].Target.Recipient != "subscriber-1" {
		t.Errorf("target = %+v", sent[1].Target)
	}
	if result.Outputs["message_id"] != sent[1].Result.MessageID {
		t.Errorf("message_id = %v, want %s", result.Outputs["message_id"], sent[1].Result.MessageID)
	}
}

func TestDeliveryFailureFailsTask(t *testing.T) {
	r, rec, wf := setup(t)
	rec.FailWith(errors.New("channel offline"))

	_, err := runtime.NewInterpreter(r).Run(context.Background(), wf, runtime.RunRequest{
		Channel: runtime.Channel{Name: "web", Recipient: "subscriber-1"},
	})
	var actErr *runtime.ActionExecutionError
	if !errors.As(err, &actErr) {
		t.Fatalf("error = %v, want *ActionExecutionError", err)
	}
	if actErr.Task != "send_greeting" {
		t.Errorf("Task = %s, want send_greeting", actErr.Task)
	}
}

func TestMissingRecipientFailsTask(t *testing.T) {
	r, rec, wf := setup(t)

	_, err := runtime.NewInterpreter(r).Run(context.Background(), wf, runtime.RunRequest{})
	if !errors.Is(err, channel.ErrNoRecipient) {
		t.Errorf("error = %v, want ErrNoRecipient", err)
	}
	if n := len(rec.Deliveries()); n != 0 {
		t.Errorf("deliveries = %d, want 0", n)
	}
}

const prompt = `
workflow:
  name: prompt
  version: 1.0.0
tasks:
  say:
    action: send_text_message
    inputs:
      text: =$vars.text
  ask:
    action: send_quick_replies
    inputs:
      text: Pick one
      quick_replies: =$vars.replies
flow:
  - do: say
  - do: ask
`

func replies(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = map[string]any{"title": fmt.Sprintf("Option %d", i+1), "payload": fmt.Sprintf("opt_%d", i+1)}
	}
	return out
}

func TestMessagingInputValidation(t *testing.T) {
	tests := []struct {
		name      string
		vars      map[string]any
		wantTask  string
		wantField string
		wantSent  int
	}{
		{
			name:      "empty text",
			vars:      map[string]any{"text": "", "replies": replies(2)},
			wantTask:  "say",
			wantField: "text",
		},
		{
			name:      "too many quick replies",
			vars:      map[string]any{"text": "Hi", "replies": replies(14)},
			wantTask:  "ask",
			wantField: "quick_replies",
			wantSent:  1,
		},
		{
			name:      "no quick replies",
			vars:      map[string]any{"text": "Hi", "replies": []any{}},
			wantTask:  "ask",
			wantField: "quick_replies",
			wantSent:  1,
		},
		{
			name: "quick reply without a title",
			vars: map[string]any{"text": "Hi", "replies": []any{
				map[string]any{"title": "", "payload": "help"},
			}},
			wantTask:  "ask",
			wantField: "quick_replies",
			wantSent:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := channel.NewRecorder("web", nil)
			r := runtime.NewRegistry()
			if err := Register(r, rec); err != nil {
				t.Fatalf("Register() error = %v", err)
			}
			wf, err := runtime.LoadWorkflowBytes([]byte(prompt), r)
			if err != nil {
				t.Fatalf("LoadWorkflowBytes() error = %v", err)
			}

			_, err = runtime.NewInterpreter(r).Run(context.Background(), wf, runtime.RunRequest{
				Vars:    tt.vars,
				Channel: runtime.Channel{Name: "web", Recipient: "subscriber-1"},
			})
			var tive *runtime.TaskInputValidationError
			if !errors.As(err, &tive) {
				t.Fatalf("Run() error = %v, want *TaskInputValidationError", err)
			}
			if tive.Task != tt.wantTask {
				t.Errorf("Task = %s, want %s", tive.Task, tt.wantTask)
			}
			if !strings.HasPrefix(tive.Field, tt.wantField) {
				t.Errorf("Field = %q, want %s", tive.Field, tt.wantField)
			}
			if n := len(rec.Deliveries()); n != tt.wantSent {
				t.Errorf("deliveries = %d, want %d", n, tt.wantSent)
			}
		})
	}
}

func TestQuickRepliesAtLimit(t *testing.T) {
	rec := channel.NewRecorder("web", nil)
	r := runtime.NewRegistry()
	if err := Register(r, rec); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	wf, err := runtime.LoadWorkflowBytes([]byte(prompt), r)
	if err != nil {
		t.Fatalf("LoadWorkflowBytes() error = %v", err)
	}

	_, err = runtime.NewInterpreter(r).Run(context.Background(), wf, runtime.RunRequest{
		Vars:    map[string]any{"text": "Hi", "replies": replies(13)},
		Channel: runtime.Channel{Name: "web", Recipient: "subscriber-1"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	sent := rec.Deliveries()
	if len(sent) != 2 || len(sent[1].Envelope.QuickReplies) != 13 {
		t.Errorf("deliveries = %+v", sent)
	}
}
