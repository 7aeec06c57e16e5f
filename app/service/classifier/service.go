package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "embed"

	"salesbot/app/client/llm"
	"salesbot/app/config"
	"salesbot/app/service/dialog"

	"github.com/samber/do"
	"github.com/sashabaranov/go-openai"
)

//go:embed prompt.txt
var systemPrompt string

const (
	requestTimeout = 30 * time.Second
	temperature    = 0.2
	maxTokens      = 10
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

	return NewWithClient(llm.NewOpenAI(cfg.OpenAI.Classifier, httpClient), cfg.OpenAI.Classifier.Model), nil
}

func NewWithClient(client *openai.Client, model string) *Service {
	return &Service{
		client: client,
		model:  model,
	}
}

// Classify never fails: any transport or parsing problem yields neutral.
func (s *Service) Classify(ctx context.Context, text string) dialog.Intent {
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
				Content: fmt.Sprintf("Ответ клиента:\n\n%q", text),
			},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		slog.Warn("Intent classification failed", "error", err)
		return dialog.IntentNeutral
	}

	if len(resp.Choices) == 0 {
		slog.Warn("Intent classification returned no choices")
		return dialog.IntentNeutral
	}

	intent := ParseIntent(resp.Choices[0].Message.Content)

	slog.Debug("Classified intent", "text", text, "intent", intent)

	return intent
}

// ParseIntent maps a model answer to an intent. Exact answers win; otherwise
// a keyword match is accepted only when it points in one direction.
func ParseIntent(raw string) dialog.Intent {
	result := strings.ToLower(strings.TrimSpace(raw))
	result = strings.Trim(result, "`'\".")

	if strings.Contains(result, "neutral") || strings.Contains(result, "нейтрал") {
		return dialog.IntentNeutral
	}

	switch result {
	case "true":
		return dialog.IntentPositive
	case "false":
		return dialog.IntentNegative
	}

	hasTrue := strings.Contains(result, "true") || strings.Contains(result, "да") || strings.Contains(result, "положительный")
	hasFalse := strings.Contains(result, "false") || strings.Contains(result, "нет") || strings.Contains(result, "отрицательный")

	switch {
	case hasTrue && !hasFalse:
		return dialog.IntentPositive
	case hasFalse && !hasTrue:
		return dialog.IntentNegative
	default:
		return dialog.IntentNeutral
	}
}
