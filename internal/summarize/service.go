package summarize

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ServiceConfig selects and configures a remote backend.
type ServiceConfig struct {
	Provider   string // none, openai, anthropic, ollama
	Model      string
	APIKey     string
	BaseURL    string
	Timeout    time.Duration // Per HTTP request.
	HTTPClient *http.Client  // Optional (tests)
}

func (c ServiceConfig) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &http.Client{Timeout: timeout}
}

// NewService builds the backend named by cfg.Provider. An empty provider
// selects Noop.
func NewService(cfg ServiceConfig) (Service, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", NoopName, LocalName:
		return Noop{}, nil
	case OpenAIName:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("summary provider %q requires an api key", OpenAIName)
		}
		return NewOpenAIClient(cfg), nil
	case AnthropicName:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("summary provider %q requires an api key", AnthropicName)
		}
		return NewAnthropicClient(cfg), nil
	case OllamaName:
		return NewOllamaClient(cfg)
	default:
		return nil, fmt.Errorf("unknown summary provider %q", cfg.Provider)
	}
}
