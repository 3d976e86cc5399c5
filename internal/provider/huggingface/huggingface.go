package huggingface

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/brandcraft/brandcraft/internal/provider"
)

const (
	defaultBaseURL = "https://api-inference.huggingface.co"
	defaultModel   = "distilbert-base-uncased-finetuned-sst-2-english"
)

// Client classifies sentiment through the Hugging Face inference API.
// There is no second sentiment provider to fall back to, so instead of
// failing it degrades to {neutral, 0.0} with the cause recorded.
type Client struct {
	apiKey  string
	model   string
	baseURL string
	httpc   *http.Client
	log     *zap.Logger
}

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

func New(cfg Config, log *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("huggingface: missing api key: %w", provider.ErrNotConfigured)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpc:   &http.Client{Timeout: cfg.Timeout},
		log:     log,
	}, nil
}

func (c *Client) Name() string  { return "huggingface" }
func (c *Client) Model() string { return c.model }

type classification struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

func (c *Client) ClassifySentiment(ctx context.Context, text string) provider.Sentiment {
	body, err := json.Marshal(map[string]string{"inputs": text})
	if err != nil {
		return c.degraded(err)
	}

	url := fmt.Sprintf("%s/models/%s", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return c.degraded(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return c.degraded(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return c.degraded(fmt.Errorf("huggingface api error (status %d): %s", resp.StatusCode, string(respBody)))
	}

	// The inference API wraps classification output in a nested list:
	// [[{"label": "POSITIVE", "score": 0.99}, ...]]
	var result [][]classification
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return c.degraded(err)
	}
	if len(result) == 0 || len(result[0]) == 0 {
		return provider.Sentiment{Label: provider.LabelNeutral, Confidence: 0}
	}

	top := result[0][0]
	return provider.Sentiment{
		Label:      provider.NormalizeLabel(top.Label),
		Confidence: top.Score,
	}
}

func (c *Client) degraded(err error) provider.Sentiment {
	c.log.Warn("sentiment degraded to neutral", zap.Error(err))
	return provider.Sentiment{
		Label:      provider.LabelNeutral,
		Confidence: 0,
		Err:        err.Error(),
	}
}
