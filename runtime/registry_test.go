package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/hexastack/agentic/runtime/schema"
)

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	a := &stubAction{name: "send_text_message"}

	if err := r.Register(a); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if !r.Has("send_text_message") {
		t.Error("Has() = false after Register")
	}
	got, err := r.Get("send_text_message")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != a {
		t.Error("Get() returned a different action")
	}
}

func TestRegistry_DuplicateIsFatal(t *testing.T) {
	r := NewRegistry()
	first := &stubAction{name: "notify"}
	second := &stubAction{name: "notify"}

	if err := r.Register(first); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	err := r.Register(second)
	if !errors.Is(err, ErrDuplicateAction) {
		t.Fatalf("Register() duplicate error = %v, want ErrDuplicateAction", err)
	}

	got, _ := r.Get("notify")
	if got != first {
		t.Error("duplicate registration replaced the original action")
	}

	defer func() {
		if recover() == nil {
			t.Error("MustRegister() did not panic on duplicate")
		}
	}()
	r.MustRegister(second)
}

func TestRegistry_RejectsInvalidActions(t *testing.T) {
	tests := []struct {
		name    string
		action  Action
		opts    []RegisterOption
		wantErr string
	}{
		{
			name:    "nil action",
			action:  nil,
			wantErr: "cannot be nil",
		},
		{
			name:    "name not snake_case",
			action:  &stubAction{name: "SendText"},
			wantErr: "snake_case",
		},
		{
			name: "settings rejected by schema",
			action: &stubAction{
				name:     "http_request",
				settings: schema.Object(map[string]schema.Schema{"base_url": schema.String()}, "base_url"),
			},
			wantErr: "settings",
		},
		{
			name: "settings of the wrong type",
			action: &stubAction{
				name:     "http_request",
				settings: schema.Object(map[string]schema.Schema{"timeout": schema.Number()}),
			},
			opts:    []RegisterOption{WithSettings(map[string]any{"timeout": "soon"})},
			wantErr: "settings",
		},
		{
			name:    "settings for an action without a settings schema",
			action:  &stubAction{name: "set_vars"},
			opts:    []RegisterOption{WithSettings(map[string]any{"debug": true})},
			wantErr: "takes no settings",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			err := r.Register(tt.action, tt.opts...)
			if err == nil {
				t.Fatal("Register() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Register() error = %v, want containing %q", err, tt.wantErr)
			}
			if len(r.List()) != 0 {
				t.Error("rejected action was registered")
			}
		})
	}
}

type preparingAction struct {
	stubAction
}

func (a *preparingAction) PrepareSettings(raw map[string]any) (map[string]any, error) {
	out := map[string]any{"timeout": 30}
	for k, v := range raw {
		out[k] = v
	}
	return out, nil
}

func TestRegistry_SettingsValidatedOnce(t *testing.T) {
	a := &preparingAction{stubAction{
		name:     "http_request",
		settings: schema.Object(map[string]schema.Schema{"timeout": schema.Integer(), "base_url": schema.String()}, "timeout"),
	}}
	raw := map[string]any{"base_url": "https://example.com"}

	r := NewRegistry()
	if err := r.Register(a, WithSettings(raw)); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	raw["base_url"] = "https://changed.example.com"

	settings, err := r.Settings("http_request")
	if err != nil {
		t.Fatalf("Settings() error = %v", err)
	}
	if settings["timeout"] != 30 {
		t.Errorf("timeout = %v, want default 30", settings["timeout"])
	}
	if settings["base_url"] != "https://example.com" {
		t.Errorf("base_url = %v, registry must keep its own copy", settings["base_url"])
	}

	settings["timeout"] = 1
	again, _ := r.Settings("http_request")
	if again["timeout"] != 30 {
		t.Error("Settings() exposed the registry's internal map")
	}
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("missing")
	if !errors.Is(err, ErrActionNotFound) {
		t.Errorf("Get() error = %v, want ErrActionNotFound", err)
	}
}

func TestRegistry_ListSorted(t *testing.T) {
	r := newTestRegistry(t,
		&stubAction{name: "send_text_message"},
		&stubAction{name: "http_request"},
		&stubAction{name: "set_vars"},
	)

	var names []string
	for _, a := range r.List() {
		names = append(names, a.Name())
	}
	want := "http_request,send_text_message,set_vars"
	if got := strings.Join(names, ","); got != want {
		t.Errorf("List() = %s, want %s", got, want)
	}
}

type lifecycleAction struct {
	stubAction
	log      *[]string
	failInit bool
}

func (a *lifecycleAction) Initialize(context.Context) error {
	*a.log = append(*a.log, "init:"+a.name)
	if a.failInit {
		return fmt.Errorf("boom")
	}
	return nil
}

func (a *lifecycleAction) Shutdown(context.Context) error {
	*a.log = append(*a.log, "shutdown:"+a.name)
	return nil
}

func TestRegistry_Lifecycle(t *testing.T) {
	var log []string
	r := newTestRegistry(t,
		&lifecycleAction{stubAction: stubAction{name: "first"}, log: &log},
		&stubAction{name: "plain"},
		&lifecycleAction{stubAction: stubAction{name: "second"}, log: &log},
	)

	if err := r.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if err := r.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	want := "init:first,init:second,shutdown:second,shutdown:first"
	if got := strings.Join(log, ","); got != want {
		t.Errorf("lifecycle order = %s, want %s", got, want)
	}
}

func TestRegistry_InitializeStopsAtFirstFailure(t *testing.T) {
	var log []string
	r := newTestRegistry(t,
		&lifecycleAction{stubAction: stubAction{name: "first"}, log: &log, failInit: true},
		&lifecycleAction{stubAction: stubAction{name: "second"}, log: &log},
	)

	err := r.Initialize(context.Background())
	if err == nil || !strings.Contains(err.Error(), "first") {
		t.Fatalf("Initialize() error = %v, want failure naming first", err)
	}
	if len(log) != 1 {
		t.Errorf("Initialize() continued after failure: %v", log)
	}
}
