package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/hexastack/agentic/channel"
	"github.com/hexastack/agentic/cli/internal/config"
	"github.com/hexastack/agentic/cli/internal/telemetry"
	httpplugin "github.com/hexastack/agentic/plugins/http"
	"github.com/hexastack/agentic/plugins/messaging"
	"github.com/hexastack/agentic/plugins/vars"
	"github.com/hexastack/agentic/runtime"
)

func newLogger(w io.Writer, cfg *config.Config, extra ...slog.Handler) *slog.Logger {
	return telemetry.NewLogger(w, cfg.Log.Level, cfg.Log.Format, extra...)
}

// buildRegistry registers every built-in action with its settings from
// actions.<name>. Messaging actions deliver through d. Settings for an action
// that does not exist are an error.
func buildRegistry(cfg *config.Config, d channel.Dispatcher) (*runtime.Registry, error) {
	httpAction, err := httpplugin.New()
	if err != nil {
		return nil, err
	}
	actions := append(messaging.Actions(d), vars.SetVars{}, httpAction)

	registry := runtime.NewRegistry()
	for _, a := range actions {
		if err := registry.Register(a, runtime.WithSettings(cfg.ActionSettings(a.Name()))); err != nil {
			return nil, fmt.Errorf("actions.%s: %w", a.Name(), err)
		}
	}

	names := make([]string, 0, len(cfg.Actions))
	for name := range cfg.Actions {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !registry.Has(name) {
			return nil, fmt.Errorf("actions.%s: no such action", name)
		}
	}
	return registry, nil
}

// startRegistry initializes the actions and returns the matching shutdown.
func startRegistry(ctx context.Context, registry *runtime.Registry) (func(context.Context) error, error) {
	if err := registry.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize actions: %w", err)
	}
	return registry.Shutdown, nil
}
