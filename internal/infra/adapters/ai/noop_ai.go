package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"jobmatchly/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*NoopAIAdapter)(nil)

// NoopAIAdapter implements adapter.AIServiceAdapter for local/dev runs without API keys.
// It echoes the last user message back as a Markdown document.
type NoopAIAdapter struct {
	delay time.Duration
}

func NewNoopAIAdapter() *NoopAIAdapter {
	return &NoopAIAdapter{delay: 100 * time.Millisecond}
}

func (a *NoopAIAdapter) Name() string { return "noop" }

// CountTokens approximates one token per whitespace-separated word.
func (a *NoopAIAdapter) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	n := 0
	for _, m := range messages {
		n += len(strings.Fields(m.Content))
	}
	return n, nil
}

func (a *NoopAIAdapter) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error) {
	select {
	case <-time.After(a.delay):
	case <-ctx.Done():
		return "", adapter.Usage{}, ctx.Err()
	}
	var last string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			last = messages[i].Content
			break
		}
	}
	in, _ := a.CountTokens(ctx, model, messages)
	out := fmt.Sprintf("# Draft\n\n%s\n", strings.TrimSpace(last))
	outTokens := len(strings.Fields(out))
	return out, adapter.Usage{PromptTokens: in, CompletionTokens: outTokens, TotalTokens: in + outTokens}, nil
}
