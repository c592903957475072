// Command explainer serves the explain/translate orchestrator over HTTP and
// WebSocket, or answers a single request from the command line.
//
//	explainer -config explainer.yaml               # serve
//	explainer -mode idioms ask "break a leg"       # one request, streamed to stdout
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/leofalp/explainer/core/orchestrator"
	"github.com/leofalp/explainer/core/orchestrator/middleware"
	"github.com/leofalp/explainer/core/request"
	"github.com/leofalp/explainer/core/selection"
	"github.com/leofalp/explainer/core/settings"
	"github.com/leofalp/explainer/internal/config"
	"github.com/leofalp/explainer/internal/utils"
	"github.com/leofalp/explainer/providers/ai"
	"github.com/leofalp/explainer/providers/ai/anthropic"
	"github.com/leofalp/explainer/providers/ai/gemini"
	"github.com/leofalp/explainer/providers/ai/openai"
	"github.com/leofalp/explainer/providers/ai/openrouter"
	"github.com/leofalp/explainer/providers/observability/slogobs"
	"github.com/leofalp/explainer/server"
)

func main() {
	if err := run(); err != nil {
		slog.Error("explainer failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "explainer.yaml", "path to the YAML config file (optional)")
	envFile := flag.String("env", ".env", "path to a .env file (optional)")
	mode := flag.String("mode", "", "translate mode for ask: translation, idioms, similar or learning")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	observer := slogobs.New(
		slogobs.WithFormat(slogobs.ParseFormat(cfg.Log.Format)),
		slogobs.WithLevel(slogobs.ParseLevel(cfg.Log.Level)),
	)
	logger := observer.Logger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := settings.OpenSQLite(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("opening settings store: %w", err)
	}
	defer store.Close()

	orch, err := orchestrator.New(buildRegistry(cfg), store,
		orchestrator.WithObserver(observer),
		orchestrator.WithMiddleware(middleware.NewLoggingMiddleware(logger, middleware.LogLevelStandard)),
	)
	if err != nil {
		return fmt.Errorf("building orchestrator: %w", err)
	}
	logger.Debug("Providers registered", slog.Any("providers", orch.Providers()))

	switch flag.Arg(0) {
	case "", "serve":
		srv := server.New(orch, store,
			server.WithAllowedOrigins(cfg.Server.AllowedOrigins...),
			server.WithLogger(logger),
		)
		return srv.ListenAndServe(ctx, cfg.Server.Addr)
	case "ask":
		return ask(ctx, orch, request.Mode(*mode), strings.Join(flag.Args()[1:], " "))
	default:
		return fmt.Errorf("unknown command %q", flag.Arg(0))
	}
}

// buildRegistry resolves every adapter once, sharing one client whose
// timeout bounds each transport phase, never the whole stream.
func buildRegistry(cfg config.Config) ai.Registry {
	client := utils.NewHTTPClient(cfg.HTTP.Timeout)

	return ai.NewRegistry(
		openrouter.New().WithHttpClient(client).WithBaseURL(cfg.BaseURL(openrouter.ProviderID)),
		anthropic.New().WithHttpClient(client).WithBaseURL(cfg.BaseURL(anthropic.ProviderID)),
		openai.New().WithHttpClient(client).WithBaseURL(cfg.BaseURL(openai.ProviderID)),
		gemini.New().WithHttpClient(client).WithBaseURL(cfg.BaseURL(gemini.ProviderID)),
	)
}

// ask captures text as a selection and streams the answer to stdout.
func ask(ctx context.Context, orch *orchestrator.Orchestrator, mode request.Mode, text string) error {
	captured, err := selection.Capture(selection.Raw{Text: text})
	if err != nil {
		return err
	}
	if !mode.Valid() {
		return fmt.Errorf("unknown mode %q", mode)
	}

	message := request.NewOpenMessage(captured.Payload(mode))
	_, err = orch.Handle(ctx, message, func(chunk string) {
		fmt.Print(chunk)
	})
	fmt.Println()
	if errors.Is(err, ai.ErrMissingAPIKey) {
		return fmt.Errorf("%w: save a key with SAVE_SETTINGS first", err)
	}
	return err
}
