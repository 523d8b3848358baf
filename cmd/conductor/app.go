package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/GoCodeAlone/conductor/conductor"
	"github.com/GoCodeAlone/conductor/config"
	"github.com/GoCodeAlone/conductor/events"
	"github.com/GoCodeAlone/conductor/internal/demo"
	"github.com/GoCodeAlone/conductor/journal"
	"github.com/GoCodeAlone/conductor/org"
	"github.com/GoCodeAlone/conductor/provider"
	"github.com/GoCodeAlone/conductor/provider/mock"
	"github.com/GoCodeAlone/conductor/service"
)

// app is a fully wired conductor instance.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	bus     *events.InMemoryBus
	journal *journal.Store // nil when disabled
	svc     *service.Service
	unsub   func()
}

// newLogger builds the text logger at the configured level.
func newLogger(w io.Writer, level string) *slog.Logger {
	l, _ := config.ParseLevel(level)
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
}

// newProvider builds the planning backend selected in cfg.
func newProvider(cfg config.ProviderConfig) (provider.Provider, error) {
	switch cfg.Type {
	case "anthropic":
		return provider.NewAnthropicProvider(provider.AnthropicConfig{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			BaseURL:     cfg.BaseURL,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
		}), nil
	case "openai":
		return provider.NewOpenAIProvider(provider.OpenAIConfig{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			BaseURL:     cfg.BaseURL,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
		}), nil
	case "mock":
		return mock.New(cfg.Responses...), nil
	default:
		return nil, fmt.Errorf("unknown provider type %q", cfg.Type)
	}
}

// newApp wires provider, organization, conductor, bus, journal and service.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	p, err := newProvider(cfg.Provider)
	if err != nil {
		return nil, err
	}
	gen := provider.NewGenerator(p, cfg.Provider.Timeout, logger)
	if cfg.Provider.SystemPrompt != "" {
		gen.System = cfg.Provider.SystemPrompt
	}

	a := &app{cfg: cfg, logger: logger, bus: events.NewInMemoryBus()}
	if cfg.Journal.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Journal.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
		store, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return nil, err
		}
		a.journal = store
		a.unsub = a.bus.Subscribe(events.All, store.Handler())
	}

	basePrompt := cfg.Organization.BasePrompt
	if cfg.Organization.Seed {
		basePrompt = demo.BasePrompt
	}
	o := org.New(cfg.Organization.Name, org.WithLogger(logger))
	c := conductor.New(o, basePrompt, gen, conductor.WithPublisher(a.bus), conductor.WithLogger(logger))
	a.svc = service.New(c, service.WithPublisher(a.bus), service.WithLogger(logger))

	if cfg.Organization.Seed {
		if err := demo.Seed(ctx, a.svc); err != nil {
			_ = a.Close()
			return nil, err
		}
		logger.Info("seeded demo organization",
			slog.Int("workers", len(demo.Workers)),
			slog.Int("tasks", len(demo.Tasks)),
		)
	}

	logger.Info("conductor ready",
		slog.String("organization", cfg.Organization.Name),
		slog.String("provider", p.Name()),
		slog.Bool("journal", a.journal != nil),
	)
	return a, nil
}

// Close detaches and closes the journal.
func (a *app) Close() error {
	if a.unsub != nil {
		a.unsub()
	}
	if a.journal != nil {
		return a.journal.Close()
	}
	return nil
}
