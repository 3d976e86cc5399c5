package stability

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

	"go.uber.org/zap"

	"github.com/brandcraft/brandcraft/internal/assets"
	"github.com/brandcraft/brandcraft/internal/provider"
)

const (
	defaultBaseURL = "https://api.stability.ai"
	defaultEngine  = "stable-diffusion-xl-1024-v1-0"
)

// Client generates logos through the Stability AI text-to-image API. Each
// call is a single attempt: logo recovery is the router's job (fallback to
// the image-capable gemini adapter), not an internal retry loop.
type Client struct {
	apiKey  string
	engine  string
	baseURL string
	httpc   *http.Client
	assets  assets.Store
	log     *zap.Logger
}

type Config struct {
	APIKey  string
	Engine  string
	BaseURL string
	Timeout time.Duration
}

func New(cfg Config, store assets.Store, log *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("stability: missing api key: %w", provider.ErrNotConfigured)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Engine == "" {
		cfg.Engine = defaultEngine
	}
	if cfg.Timeout == 0 {
		// Image generation is materially slower than text.
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		apiKey:  cfg.APIKey,
		engine:  cfg.Engine,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpc:   &http.Client{Timeout: cfg.Timeout},
		assets:  store,
		log:     log,
	}, nil
}

func (c *Client) Name() string  { return "stability_ai" }
func (c *Client) Model() string { return c.engine }

type generationRequest struct {
	TextPrompts []textPrompt `json:"text_prompts"`
	CfgScale    int          `json:"cfg_scale"`
	Height      int          `json:"height"`
	Width       int          `json:"width"`
	Samples     int          `json:"samples"`
	Steps       int          `json:"steps"`
}

type textPrompt struct {
	Text string `json:"text"`
}

type generationResponse struct {
	Artifacts []artifact `json:"artifacts"`
}

type artifact struct {
	Base64 string `json:"base64"`
}

func (c *Client) GenerateImage(ctx context.Context, prompt string) (*provider.Image, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, provider.ErrEmptyPrompt
	}

	body, err := json.Marshal(generationRequest{
		TextPrompts: []textPrompt{{Text: prompt}},
		CfgScale:    7,
		Height:      1024,
		Width:       1024,
		Samples:     1,
		Steps:       30,
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1/generation/%s/text-to-image", c.baseURL, c.engine)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.log.Warn("stability upstream error", zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("stability api error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var genResp generationResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return nil, err
	}
	if len(genResp.Artifacts) == 0 || genResp.Artifacts[0].Base64 == "" {
		return nil, fmt.Errorf("stability: %w", provider.ErrEmptyResponse)
	}

	raw, err := base64.StdEncoding.DecodeString(genResp.Artifacts[0].Base64)
	if err != nil {
		return nil, fmt.Errorf("stability: decode artifact: %w", err)
	}

	ref, err := c.assets.Save(ctx, raw, ".png")
	if err != nil {
		return nil, fmt.Errorf("stability: persist image: %w", err)
	}

	// Stability reports no token usage; counts stay zero.
	return &provider.Image{Ref: ref}, nil
}
