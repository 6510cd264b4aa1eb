// File: internal/infra/adapters/ai/multi_adapter.go
package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"jobmatchly/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*MultiAIAdapter)(nil)

var ErrNoProvider = errors.New("no ai provider configured")

type MultiAIAdapter struct {
	defaultProvider string // e.g., "openai" or "gemini"
	byProvider      map[string]adapter.AIServiceAdapter
	modelToProvider map[string]string // model -> provider ("openai" | "gemini")
	// fallback providers are tried with their own default model when the routed one fails.
	fallback []string
	log      *zerolog.Logger
}

// NewMultiAIAdapter routes by model name. Each provider adapter is
// responsible for its own default model.
func NewMultiAIAdapter(
	defaultProvider string,
	byProvider map[string]adapter.AIServiceAdapter,
	modelToProvider map[string]string,
	fallback []string,
	logger *zerolog.Logger,
) *MultiAIAdapter {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &MultiAIAdapter{
		defaultProvider: strings.ToLower(defaultProvider),
		byProvider:      byProvider,
		modelToProvider: modelToProvider,
		fallback:        fallback,
		log:             logger,
	}
}

func (m *MultiAIAdapter) Name() string { return "multi" }

func (m *MultiAIAdapter) resolveProvider(model string) string {
	if p := m.modelToProvider[model]; p != "" {
		return strings.ToLower(p)
	}
	l := strings.ToLower(model)
	switch {
	case strings.HasPrefix(l, "gemini"):
		return "gemini"
	case strings.HasPrefix(l, "gpt"), strings.HasPrefix(l, "o1"), strings.HasPrefix(l, "o3"):
		return "openai"
	default:
		return m.defaultProvider
	}
}

func (m *MultiAIAdapter) pick(model string) (string, adapter.AIServiceAdapter) {
	prov := m.resolveProvider(model)
	if a := m.byProvider[prov]; a != nil {
		return prov, a
	}
	// last resort: first available
	for name, a := range m.byProvider {
		if a != nil {
			return name, a
		}
	}
	return "", nil
}

func (m *MultiAIAdapter) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	_, a := m.pick(model)
	if a == nil {
		return 0, ErrNoProvider
	}
	return a.CountTokens(ctx, model, messages)
}

func (m *MultiAIAdapter) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error) {
	prov, a := m.pick(model)
	if a == nil {
		return "", adapter.Usage{}, ErrNoProvider
	}
	out, usage, err := a.ChatWithUsage(ctx, model, messages)
	if err == nil {
		return out, usage, nil
	}

	errs := []error{err}
	for _, name := range m.fallback {
		fb := m.byProvider[strings.ToLower(name)]
		if fb == nil || strings.EqualFold(name, prov) {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		m.log.Warn().Err(err).Str("from", prov).Str("to", name).Msg("ai provider failed, falling back")
		out, usage, ferr := fb.ChatWithUsage(ctx, "", messages)
		if ferr == nil {
			return out, usage, nil
		}
		errs = append(errs, ferr)
	}
	return "", adapter.Usage{}, errors.Join(errs...)
}
