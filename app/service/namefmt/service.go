package namefmt

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "embed"

	"salesbot/app/client/llm"
	"salesbot/app/config"

	"github.com/samber/do"
	"github.com/sashabaranov/go-openai"
)

//go:embed prompt.txt
var systemPrompt string

const (
	requestTimeout = 30 * time.Second
	temperature    = 0.1
	maxTokens      = 50
	maxNameLength  = 64
)

type Service struct {
	client *openai.Client
	model  string
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	httpClient, err := llm.NewHTTPClient(cfg.Proxy, requestTimeout)
	if err != nil {
		return nil, err
	}

	return NewWithClient(llm.NewOpenAI(cfg.OpenAI.Normalizer, httpClient), cfg.OpenAI.Normalizer.Model), nil
}

func NewWithClient(client *openai.Client, model string) *Service {
	return &Service{
		client: client,
		model:  model,
	}
}

// Normalize strips annotations from a raw owner name. The raw value is
// returned when the model fails or answers with something unusable.
func (s *Service) Normalize(ctx context.Context, raw string) string {
	if strings.TrimSpace(raw) == "" {
		return raw
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf("%q", raw),
			},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		slog.Warn("Name normalization failed", "raw", raw, "error", err)
		return raw
	}

	if len(resp.Choices) == 0 {
		return raw
	}

	name := strings.TrimSpace(resp.Choices[0].Message.Content)
	name = strings.Trim(name, "\"'`«»")
	name = strings.TrimSpace(name)

	if name == "" || len(name) > maxNameLength || strings.Contains(name, "\n") {
		return raw
	}

	slog.Debug("Normalized owner name", "raw", raw, "name", name)

	return name
}
