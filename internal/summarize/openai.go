package summarize

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	OpenAIName         = "openai"
	openAIDefaultModel = openai.ChatModelGPT4oMini
)

// OpenAIClient calls the Chat Completions API through the official SDK.
type OpenAIClient struct {
	model  string
	client openai.Client
}

func NewOpenAIClient(cfg ServiceConfig) *OpenAIClient {
	if cfg.Model == "" {
		cfg.Model = openAIDefaultModel
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(cfg.httpClient()),
		// Summarizer owns retries and backoff.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIClient{
		model:  cfg.Model,
		client: openai.NewClient(opts...),
	}
}

func (c *OpenAIClient) Name() string      { return OpenAIName }
func (c *OpenAIClient) PromptBudget() int { return 8000 }

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (Completion, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.Prompt),
		},
		MaxTokens:   openai.Int(int64(req.MaxTokens)),
		Temperature: openai.Float(req.Temperature),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) && retryableStatus(apiErr.StatusCode) {
			return Completion{}, &RetryableError{StatusCode: apiErr.StatusCode, Message: apiErr.Error()}
		}
		return Completion{}, fmt.Errorf("openai api: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Completion{}, errors.New("empty response from openai")
	}
	return Completion{
		Text:       resp.Choices[0].Message.Content,
		TokenCount: int(resp.Usage.TotalTokens),
	}, nil
}

var _ Service = (*OpenAIClient)(nil)
