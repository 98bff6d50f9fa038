// Package translate wraps the external text-translation capability some site
// extractors use for product descriptions. Translation is always best-effort:
// callers fall back to the source-language text on any error.
package translate

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Translator translates text between two languages identified by ISO codes.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// Noop returns the input unchanged, for runs with translation disabled.
type Noop struct{}

// Translate returns text as-is.
func (Noop) Translate(_ context.Context, text, _, _ string) (string, error) {
	return text, nil
}

// OpenAI translates via a chat completion.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates a Translator backed by the OpenAI API.
func NewOpenAI(apiKey string) *OpenAI {
	return &OpenAI{
		client: openai.NewClient(apiKey),
		model:  openai.GPT4oMini,
	}
}

// Translate translates text from sourceLang to targetLang. Empty input is
// returned unchanged without a network call.
func (t *OpenAI) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	resp, err := t.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: t.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleSystem,
				Content: fmt.Sprintf(
					"Translate the user's text from %s to %s. Reply with the translation only.",
					sourceLang, targetLang,
				),
			},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to translate text: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("translation returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
