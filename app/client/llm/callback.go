package llm

import (
	"context"
	"log/slog"

	"github.com/tmc/langchaingo/callbacks"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
)

var _ callbacks.Handler = (*LogCallbackHandler)(nil)

// LogCallbackHandler reports model traffic to slog. Only errors are logged
// above debug level.
type LogCallbackHandler struct{}

func (l LogCallbackHandler) HandleText(ctx context.Context, text string) {}

func (l LogCallbackHandler) HandleLLMStart(ctx context.Context, prompts []string) {
	slog.DebugContext(ctx, "LLM start", "prompts", len(prompts))
}

func (l LogCallbackHandler) HandleLLMGenerateContentStart(ctx context.Context, ms []llms.MessageContent) {
	slog.DebugContext(ctx, "LLM generate content start", "messages", len(ms))
}

func (l LogCallbackHandler) HandleLLMGenerateContentEnd(ctx context.Context, res *llms.ContentResponse) {
	if res == nil || len(res.Choices) == 0 {
		return
	}

	slog.DebugContext(ctx, "LLM generate content end", "stop_reason", res.Choices[0].StopReason)
}

func (l LogCallbackHandler) HandleLLMError(ctx context.Context, err error) {
	slog.ErrorContext(ctx, "LLM error", "error", err)
}

func (l LogCallbackHandler) HandleChainStart(ctx context.Context, inputs map[string]any) {}

func (l LogCallbackHandler) HandleChainEnd(ctx context.Context, outputs map[string]any) {}

func (l LogCallbackHandler) HandleChainError(ctx context.Context, err error) {
	slog.ErrorContext(ctx, "Chain error", "error", err)
}

func (l LogCallbackHandler) HandleToolStart(ctx context.Context, input string) {}

func (l LogCallbackHandler) HandleToolEnd(ctx context.Context, output string) {}

func (l LogCallbackHandler) HandleToolError(ctx context.Context, err error) {
	slog.ErrorContext(ctx, "Tool error", "error", err)
}

func (l LogCallbackHandler) HandleAgentAction(ctx context.Context, action schema.AgentAction) {}

func (l LogCallbackHandler) HandleAgentFinish(ctx context.Context, finish schema.AgentFinish) {}

func (l LogCallbackHandler) HandleRetrieverStart(ctx context.Context, query string) {
	slog.DebugContext(ctx, "Retriever start", "query", query)
}

func (l LogCallbackHandler) HandleRetrieverEnd(ctx context.Context, query string, documents []schema.Document) {
	slog.DebugContext(ctx, "Retriever end", "query", query, "document_count", len(documents))
}

func (l LogCallbackHandler) HandleStreamingFunc(ctx context.Context, chunk []byte) {}
