package objection

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	_ "embed"

	"salesbot/app/client/llm"
	"salesbot/app/config"

	"github.com/samber/do"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"
)

//go:embed prompt.txt
var promptTemplate string

const (
	requestTimeout = 30 * time.Second
	noAnswer       = "NONE"
)

var (
	citationRe   = regexp.MustCompile(`【[^】]*】|\[\d+(?::\d+)?(?:†[^\]]*)?\]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

type Service struct {
	model    llms.Model
	kb       *KnowledgeBase
	topK     int
	template prompts.PromptTemplate
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	if !cfg.Objection.Enabled {
		return NewWithModel(nil, &KnowledgeBase{}, cfg.Objection.TopK), nil
	}

	kb, err := LoadKnowledgeBase(cfg.Objection.KnowledgeBase)
	if err != nil {
		return nil, err
	}

	httpClient, err := llm.NewHTTPClient(cfg.Proxy, requestTimeout)
	if err != nil {
		return nil, err
	}

	model, err := llm.NewLangchain(cfg.OpenAI.Objection, httpClient)
	if err != nil {
		return nil, err
	}

	slog.Info("Objection knowledge base loaded", "entries", len(kb.Entries))

	return NewWithModel(model, kb, cfg.Objection.TopK), nil
}

func NewWithModel(model llms.Model, kb *KnowledgeBase, topK int) *Service {
	return &Service{
		model:    model,
		kb:       kb,
		topK:     topK,
		template: prompts.NewPromptTemplate(promptTemplate, []string{"question", "context"}),
	}
}

// Answer returns a reply when text is an objection covered by the knowledge
// base, and an empty string otherwise.
func (s *Service) Answer(ctx context.Context, text string) (string, error) {
	if s.model == nil {
		return "", nil
	}

	entries := s.kb.Retrieve(text, s.topK)
	if len(entries) == 0 {
		return "", nil
	}

	var kbContext strings.Builder
	for i, e := range entries {
		fmt.Fprintf(&kbContext, "%d. %s: %s\n", i+1, e.Topic, e.Answer)
	}

	prompt, err := s.template.Format(map[string]any{
		"question": text,
		"context":  kbContext.String(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to format prompt: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	completion, err := llms.GenerateFromSinglePrompt(ctx, s.model, prompt,
		llms.WithTemperature(0.3),
		llms.WithMaxTokens(300),
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate answer: %w", err)
	}

	answer := Sanitize(completion)
	if answer == "" || strings.EqualFold(strings.Trim(answer, ".!"), noAnswer) {
		return "", nil
	}

	slog.Info("Answered objection", "text", text, "topics", len(entries))

	return answer, nil
}

// Sanitize removes citation markers left by retrieval models and collapses
// whitespace.
func Sanitize(text string) string {
	text = citationRe.ReplaceAllString(text, "")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
