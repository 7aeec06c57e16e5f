package classifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"salesbot/app/service/dialog"

	"github.com/sashabaranov/go-openai"
)

func TestParseIntent(t *testing.T) {
	tests := []struct {
		raw  string
		want dialog.Intent
	}{
		{"true", dialog.IntentPositive},
		{" TRUE\n", dialog.IntentPositive},
		{"false", dialog.IntentNegative},
		{"'false'", dialog.IntentNegative},
		{"neutral", dialog.IntentNeutral},
		{"Нейтрально", dialog.IntentNeutral},
		{"Ответ положительный", dialog.IntentPositive},
		{"отрицательный", dialog.IntentNegative},
		{"true or false", dialog.IntentNeutral},
		{"", dialog.IntentNeutral},
		{"не знаю", dialog.IntentNeutral},
	}

	for _, tt := range tests {
		if got := ParseIntent(tt.raw); got != tt.want {
			t.Errorf("ParseIntent(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func newTestService(t *testing.T, handler http.HandlerFunc) *Service {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("sk-test")
	cfg.BaseURL = srv.URL + "/v1"

	return NewWithClient(openai.NewClientWithConfig(cfg), "gpt-4o")
}

func completion(content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			ID:     "chatcmpl-test",
			Object: "chat.completion",
			Model:  "gpt-4o",
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{
					Role:    openai.ChatMessageRoleAssistant,
					Content: content,
				},
				FinishReason: openai.FinishReasonStop,
			}},
		})
	}
}

func TestClassify(t *testing.T) {
	var gotModel string
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotModel = req.Model

		completion("true")(w, r)
	})

	if got := s.Classify(context.Background(), "да, сдаю"); got != dialog.IntentPositive {
		t.Errorf("Classify() = %v, want positive", got)
	}
	if gotModel != "gpt-4o" {
		t.Errorf("model = %q, want gpt-4o", gotModel)
	}
}

func TestClassifyFailureIsNeutral(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	})

	if got := s.Classify(context.Background(), "да"); got != dialog.IntentNeutral {
		t.Errorf("Classify() = %v, want neutral", got)
	}
}
