package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/brandcraft/brandcraft/internal/provider"
)

// Client is the secondary text provider, reached through the go-openai SDK.
// Its retry budget is tighter than gemini's (2 attempts, backoff capped at
// 6s) because by the time it runs the primary has usually already burned
// its own retries.
type Client struct {
	client *openai.Client
	model  string
	retry  provider.RetryPolicy
}

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	Retry   provider.RetryPolicy
}

func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: missing api key: %w", provider.ErrNotConfigured)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = provider.RetryPolicy{
			MaxAttempts:     2,
			InitialInterval: 2 * time.Second,
			MaxInterval:     6 * time.Second,
		}
	}

	sdkCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		sdkCfg.BaseURL = cfg.BaseURL
	}
	sdkCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Client{
		client: openai.NewClientWithConfig(sdkCfg),
		model:  cfg.Model,
		retry:  cfg.Retry,
	}, nil
}

func (c *Client) Name() string  { return "openai" }
func (c *Client) Model() string { return c.model }

func (c *Client) GenerateText(ctx context.Context, prompt string) (*provider.Generation, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, provider.ErrEmptyPrompt
	}
	return provider.Retry(ctx, c.retry, func() (*provider.Generation, error) {
		return c.generateOnce(ctx, prompt)
	})
}

func (c *Client) generateOnce(ctx context.Context, prompt string) (*provider.Generation, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0.7,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai api error: %w", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("openai: %w", provider.ErrEmptyResponse)
	}

	return &provider.Generation{
		Text: resp.Choices[0].Message.Content,
		Usage: provider.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}
