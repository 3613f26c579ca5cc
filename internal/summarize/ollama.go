package summarize

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

const (
	OllamaName         = "ollama"
	ollamaDefaultModel = "mistral"
	ollamaDefaultURL   = "http://localhost:11434"
)

// OllamaClient runs summaries on a local Ollama server via langchaingo.
type OllamaClient struct {
	llm llms.Model
}

func NewOllamaClient(cfg ServiceConfig) (*OllamaClient, error) {
	if cfg.Model == "" {
		cfg.Model = ollamaDefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = ollamaDefaultURL
	}
	llm, err := ollama.New(
		ollama.WithModel(cfg.Model),
		ollama.WithServerURL(cfg.BaseURL),
		ollama.WithHTTPClient(cfg.httpClient()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ollama: %w", err)
	}
	return &OllamaClient{llm: llm}, nil
}

func (c *OllamaClient) Name() string { return OllamaName }

// PromptBudget is smaller than the hosted providers; local models usually
// run with short context windows.
func (c *OllamaClient) PromptBudget() int { return 3000 }

func (c *OllamaClient) Complete(ctx context.Context, req Request) (Completion, error) {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, req.System),
		llms.TextParts(llms.ChatMessageTypeHuman, req.Prompt),
	}
	resp, err := c.llm.GenerateContent(ctx, content,
		llms.WithMaxTokens(req.MaxTokens),
		llms.WithTemperature(req.Temperature),
	)
	if err != nil {
		return Completion{}, fmt.Errorf("ollama: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Completion{}, errors.New("empty response from ollama")
	}
	choice := resp.Choices[0]
	tokens, _ := choice.GenerationInfo["TotalTokens"].(int)
	return Completion{Text: choice.Content, TokenCount: tokens}, nil
}

var _ Service = (*OllamaClient)(nil)
