package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hexastack/agentic/channel"
	"github.com/hexastack/agentic/channel/discord"
	"github.com/hexastack/agentic/channel/telegram"
	"github.com/hexastack/agentic/channel/web"
	"github.com/hexastack/agentic/channel/webhook"
	"github.com/hexastack/agentic/cli/internal/config"
	"github.com/hexastack/agentic/cli/internal/server"
	"github.com/hexastack/agentic/cli/internal/telemetry"
	"github.com/hexastack/agentic/runtime"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the workflow directory over HTTP and the configured channels",
	Long: `Serve loads every workflow of the configured directory, then exposes them
over HTTP and connects the enabled messaging channels. Inbound messages run
the workflow named by workflows.on_message.

Example:
  agentic serve
  agentic serve --dir ./bot --config prod.yaml
`,
	Args: cobra.NoArgs,
	RunE: serve,
}

// poller is a channel that receives messages through a long-running loop.
type poller interface {
	Start(ctx context.Context) error
}

func serve(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	providers, err := telemetry.Setup(ctx, telemetry.OTLPConfig{
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		ServiceName: cfg.Telemetry.ServiceName,
		Insecure:    cfg.Telemetry.OTLPInsecure,
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer scancel()
		providers.Shutdown(sctx)
	}()

	var extra []slog.Handler
	if providers.LogHandler != nil {
		extra = append(extra, providers.LogHandler)
	}
	l := newLogger(cmd.ErrOrStderr(), cfg, extra...)

	// Channels hand inbound messages to the server, which exists only once
	// the registry built on those channels does.
	var srv *server.Server
	handle := func(ctx context.Context, msg channel.Message) {
		srv.HandleMessage(ctx, msg)
	}

	router, hub, pollers, err := buildChannels(cfg, l, handle)
	if err != nil {
		return err
	}
	if hub != nil {
		defer hub.Close()
	}

	registry, err := buildRegistry(cfg, router)
	if err != nil {
		return err
	}
	shutdownActions, err := startRegistry(ctx, registry)
	if err != nil {
		return err
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer scancel()
		if err := shutdownActions(sctx); err != nil {
			l.Warn("Action shutdown failed", "error", err)
		}
	}()

	catalog := runtime.NewCatalog(registry)
	if err := catalog.LoadDir(cfg.Workflows.Dir); err != nil {
		return err
	}
	if cfg.Workflows.OnMessage != "" {
		if _, err := catalog.Get(cfg.Workflows.OnMessage); err != nil {
			return fmt.Errorf("workflows.on_message: %w", err)
		}
	}

	observers := []runtime.Observer{
		telemetry.LogObserver(l),
		telemetry.NewTracer(providers.TracerProvider),
	}
	opts := server.Options{
		Hub:            hub,
		DefaultChannel: cfg.Channels.Default,
		OnMessage:      cfg.Workflows.OnMessage,
	}
	if cfg.Telemetry.Metrics {
		metrics := telemetry.NewMetrics()
		observers = append(observers, metrics)
		opts.Metrics = metrics.Handler()
	}

	interp := runtime.NewInterpreter(registry,
		runtime.WithLogger(l),
		runtime.WithObservers(observers...))
	srv = server.New(l, catalog, interp, opts)

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		l.Info("Serving workflows",
			"addr", cfg.Server.Addr,
			"workflows", len(catalog.List()),
			"channels", router.Channels())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer scancel()
		return httpServer.Shutdown(sctx)
	})
	for _, p := range pollers {
		g.Go(func() error { return p.Start(gctx) })
	}

	err = g.Wait()
	l.Info("Server stopped")
	return err
}

// buildChannels creates every enabled channel and registers it on a router.
// The default channel is registered first so that it becomes the router's
// fallback.
func buildChannels(cfg *config.Config, l *slog.Logger, handle channel.Handler) (*channel.Router, *web.Hub, []poller, error) {
	var (
		hub     *web.Hub
		pollers []poller
	)
	dispatchers := make(map[string]channel.Dispatcher)

	if cfg.Channels.Web.Enabled {
		hub = web.NewHub(l, web.WithHandler(handle))
		dispatchers[web.Name] = hub
	}

	if len(cfg.Channels.Webhook) > 0 {
		var wc webhook.Config
		if err := runtime.InitializeConfig(&wc, cfg.Channels.Webhook); err != nil {
			return nil, nil, nil, fmt.Errorf("channels.webhook: %w", err)
		}
		c, err := webhook.New(wc)
		if err != nil {
			return nil, nil, nil, err
		}
		dispatchers[webhook.Name] = c
	}

	if token := cfg.Channels.Telegram.Token; token != "" {
		c, err := telegram.New(telegram.Config{Token: token}, l, handle)
		if err != nil {
			return nil, nil, nil, err
		}
		dispatchers[telegram.Name] = c
		pollers = append(pollers, c)
	}

	if token := cfg.Channels.Discord.Token; token != "" {
		c, err := discord.New(discord.Config{Token: token}, l, handle)
		if err != nil {
			return nil, nil, nil, err
		}
		dispatchers[discord.Name] = c
		pollers = append(pollers, c)
	}

	if len(dispatchers) == 0 {
		return nil, nil, nil, errors.New("no channel enabled")
	}
	if _, ok := dispatchers[cfg.Channels.Default]; !ok {
		return nil, nil, nil, fmt.Errorf("default channel %q is not enabled", cfg.Channels.Default)
	}

	router := channel.NewRouter(l)
	if err := router.Register(cfg.Channels.Default, dispatchers[cfg.Channels.Default]); err != nil {
		return nil, nil, nil, err
	}
	for name, d := range dispatchers {
		if name == cfg.Channels.Default {
			continue
		}
		if err := router.Register(name, d); err != nil {
			return nil, nil, nil, err
		}
	}
	return router, hub, pollers, nil
}
