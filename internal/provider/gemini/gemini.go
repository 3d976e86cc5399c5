package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/brandcraft/brandcraft/internal/assets"
	"github.com/brandcraft/brandcraft/internal/provider"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// Client talks to the Google Generative Language REST API. It serves both
// text generation (primary text provider) and image generation (fallback
// behind Stability for logo tasks).
type Client struct {
	apiKey     string
	model      string
	imageModel string
	baseURL    string
	httpc      *http.Client
	retry      provider.RetryPolicy
	assets     assets.Store
	log        *zap.Logger
}

type Config struct {
	APIKey     string
	Model      string
	ImageModel string
	BaseURL    string
	Timeout    time.Duration
	Retry      provider.RetryPolicy
}

func New(cfg Config, store assets.Store, log *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: missing api key: %w", provider.ErrNotConfigured)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = provider.RetryPolicy{
			MaxAttempts:     3,
			InitialInterval: 2 * time.Second,
			MaxInterval:     10 * time.Second,
		}
	}
	return &Client{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		imageModel: cfg.ImageModel,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpc:      &http.Client{Timeout: cfg.Timeout},
		retry:      cfg.Retry,
		assets:     store,
		log:        log,
	}, nil
}

func (c *Client) Name() string  { return "google" }
func (c *Client) Model() string { return c.model }

type geminiRequest struct {
	Contents         []geminiContent   `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate   `json:"candidates"`
	UsageMetadata geminiUsageMetadata `json:"usageMetadata"`
}

type geminiCandidate struct {
	Content geminiContent `json:"content"`
}

type geminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// GenerateText issues one generateContent call per attempt, retrying per
// the configured policy. A 200 with no text is a failure, not a success.
func (c *Client) GenerateText(ctx context.Context, prompt string) (*provider.Generation, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, provider.ErrEmptyPrompt
	}
	return provider.Retry(ctx, c.retry, func() (*provider.Generation, error) {
		return c.generateOnce(ctx, prompt)
	})
}

func (c *Client) generateOnce(ctx context.Context, prompt string) (*provider.Generation, error) {
	resp, err := c.generateContent(ctx, c.model, geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return nil, err
	}

	text := firstText(resp)
	if text == "" {
		return nil, fmt.Errorf("gemini: %w", provider.ErrEmptyResponse)
	}

	return &provider.Generation{
		Text: text,
		Usage: provider.Usage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      resp.UsageMetadata.TotalTokenCount,
		},
	}, nil
}

// GenerateImage is a single attempt: recovery for logo tasks happens at the
// router level, not inside the adapter.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (*provider.Image, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, provider.ErrEmptyPrompt
	}
	resp, err := c.generateContent(ctx, c.imageModel, geminiRequest{
		Contents:         []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: &generationConfig{ResponseModalities: []string{"TEXT", "IMAGE"}},
	})
	if err != nil {
		return nil, err
	}

	data := firstInlineData(resp)
	if data == "" {
		return nil, fmt.Errorf("gemini: no image payload: %w", provider.ErrEmptyResponse)
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("gemini: decode image payload: %w", err)
	}

	ref, err := c.assets.Save(ctx, raw, ".png")
	if err != nil {
		return nil, fmt.Errorf("gemini: persist image: %w", err)
	}

	return &provider.Image{
		Ref: ref,
		Usage: provider.Usage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      resp.UsageMetadata.TotalTokenCount,
		},
	}, nil
}

func (c *Client) generateContent(ctx context.Context, model string, reqBody geminiRequest) (*geminiResponse, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.log.Warn("gemini upstream error",
			zap.String("model", model),
			zap.Int("status", resp.StatusCode),
		)
		return nil, fmt.Errorf("gemini api error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var geminiResp geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&geminiResp); err != nil {
		return nil, err
	}
	return &geminiResp, nil
}

func firstText(resp *geminiResponse) string {
	for _, cand := range resp.Candidates {
		for _, part := range cand.Content.Parts {
			if part.Text != "" {
				return part.Text
			}
		}
	}
	return ""
}

func firstInlineData(resp *geminiResponse) string {
	for _, cand := range resp.Candidates {
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && part.InlineData.Data != "" {
				return part.InlineData.Data
			}
		}
	}
	return ""
}
