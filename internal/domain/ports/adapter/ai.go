package adapter

import "context"

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// Usage for a single completion call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// AIServiceAdapter is the port for LLM completions.
type AIServiceAdapter interface {
	Name() string
	// CountTokens returns prompt tokens for messages (best-effort when the
	// provider has no exact counter).
	CountTokens(ctx context.Context, model string, messages []Message) (int, error)
	// ChatWithUsage returns assistant text + usage as reported by the provider.
	ChatWithUsage(ctx context.Context, model string, messages []Message) (string, Usage, error)
}
