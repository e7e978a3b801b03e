package oracle

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = openai.GPT3Dot5Turbo

// openAISummarizer generates summaries and explanations via the OpenAI chat
// completions API.
type openAISummarizer struct {
	client *openai.Client
	model  string
}

func newOpenAISummarizer(apiKey, model string) *openAISummarizer {
	if model == "" {
		model = defaultOpenAIModel
	}
	return &openAISummarizer{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// Generate runs one chat completion with the given system instruction.
func (s *openAISummarizer) Generate(ctx context.Context, instruction, text string) (string, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		MaxTokens:   200,
		Temperature: 0.7,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: instruction},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
