package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ErrorMarker starts every text Generator returns instead of an error.
const ErrorMarker = "ERROR:"

// DefaultSystemPrompt is the system instruction sent with every planning
// prompt unless configured otherwise.
const DefaultSystemPrompt = "You follow tasks exactly as you are told. You have extremely high IQ and is the smartest AI Agent who responds and does exactly as told."

// Generator turns a Provider into a text generation capability that never
// fails to the caller.
type Generator struct {
	Provider Provider
	System   string        // system prompt; empty sends none
	Timeout  time.Duration // 0 means no timeout beyond ctx
	Logger   *slog.Logger
}

// NewGenerator returns a Generator for p with the default system prompt.
func NewGenerator(p Provider, timeout time.Duration, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{Provider: p, System: DefaultSystemPrompt, Timeout: timeout, Logger: logger}
}

// Generate sends prompt as a single user turn and returns the reply. On any
// failure it returns a message starting with ErrorMarker instead.
func (g *Generator) Generate(ctx context.Context, prompt string) string {
	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}

	msgs := make([]Message, 0, 2)
	if g.System != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: g.System})
	}
	msgs = append(msgs, Message{Role: RoleUser, Content: prompt})

	start := time.Now()
	resp, err := g.Provider.Chat(ctx, msgs)
	if err != nil {
		g.logger().Error("generation failed",
			slog.String("provider", g.Provider.Name()),
			slog.Any("error", err),
		)
		return ErrorText(g.Provider.Name(), err)
	}
	g.logger().Debug("generation finished",
		slog.String("provider", g.Provider.Name()),
		slog.Int("input_tokens", resp.Usage.InputTokens),
		slog.Int("output_tokens", resp.Usage.OutputTokens),
		slog.Duration("took", time.Since(start)),
	)
	return resp.Content
}

func (g *Generator) logger() *slog.Logger {
	if g.Logger == nil {
		return slog.Default()
	}
	return g.Logger
}

// ErrorText renders err as marker text.
func ErrorText(providerName string, err error) string {
	return fmt.Sprintf("%s Could not generate response. Please check your %s API key and network connection. Error: %v",
		ErrorMarker, providerName, err)
}

// IsErrorText reports whether s is a failure message produced by Generate.
func IsErrorText(s string) bool {
	return strings.HasPrefix(s, ErrorMarker)
}
