package watsonx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/brandcraft/brandcraft/internal/provider"
)

const (
	defaultBaseURL = "https://us-south.ml.cloud.ibm.com"
	defaultIAMURL  = "https://iam.cloud.ibm.com/identity/token"
	defaultModel   = "google/flan-ul2"
	apiVersion     = "2024-05-31"
)

// Client serves advisory chat through IBM watsonx.ai text generation.
// API keys are exchanged for short-lived IAM bearer tokens, cached until
// shortly before expiry.
type Client struct {
	apiKey    string
	projectID string
	model     string
	baseURL   string
	iamURL    string
	httpc     *http.Client
	retry     provider.RetryPolicy

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

type Config struct {
	APIKey    string
	ProjectID string
	Model     string
	BaseURL   string
	IAMURL    string
	Timeout   time.Duration
	Retry     provider.RetryPolicy
}

func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" || cfg.ProjectID == "" {
		return nil, fmt.Errorf("watsonx: missing api key or project id: %w", provider.ErrNotConfigured)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.IAMURL == "" {
		cfg.IAMURL = defaultIAMURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
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
		apiKey:    cfg.APIKey,
		projectID: cfg.ProjectID,
		model:     cfg.Model,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		iamURL:    cfg.IAMURL,
		httpc:     &http.Client{Timeout: cfg.Timeout},
		retry:     cfg.Retry,
	}, nil
}

func (c *Client) Name() string  { return "ibm_watsonx" }
func (c *Client) Model() string { return c.model }

type generationRequest struct {
	ModelID    string         `json:"model_id"`
	Input      string         `json:"input"`
	ProjectID  string         `json:"project_id"`
	Parameters map[string]any `json:"parameters"`
}

type generationResponse struct {
	Results []generationResult `json:"results"`
}

type generationResult struct {
	GeneratedText       string `json:"generated_text"`
	GeneratedTokenCount int    `json:"generated_token_count"`
	InputTokenCount     int    `json:"input_token_count"`
}

func (c *Client) GenerateText(ctx context.Context, prompt string) (*provider.Generation, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, provider.ErrEmptyPrompt
	}
	return provider.Retry(ctx, c.retry, func() (*provider.Generation, error) {
		return c.generateOnce(ctx, prompt)
	})
}

func (c *Client) generateOnce(ctx context.Context, prompt string) (*provider.Generation, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(generationRequest{
		ModelID:   c.model,
		Input:     prompt,
		ProjectID: c.projectID,
		Parameters: map[string]any{
			"decoding_method": "sample",
			"max_new_tokens":  512,
			"temperature":     0.7,
		},
	})
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	endpoint := fmt.Sprintf("%s/ml/v1/text/generation?version=%s", c.baseURL, apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("watsonx api error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var genResp generationResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return nil, err
	}
	if len(genResp.Results) == 0 || genResp.Results[0].GeneratedText == "" {
		return nil, fmt.Errorf("watsonx: %w", provider.ErrEmptyResponse)
	}

	res := genResp.Results[0]
	return &provider.Generation{
		Text: res.GeneratedText,
		Usage: provider.Usage{
			PromptTokens:     res.InputTokenCount,
			CompletionTokens: res.GeneratedTokenCount,
			TotalTokens:      res.InputTokenCount + res.GeneratedTokenCount,
		},
	}, nil
}

type iamResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExp) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "urn:ibm:params:oauth:grant-type:apikey")
	form.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.iamURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("watsonx: iam token exchange: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("watsonx: iam token exchange failed (status %d)", resp.StatusCode)
	}

	var iam iamResponse
	if err := json.NewDecoder(resp.Body).Decode(&iam); err != nil {
		return "", fmt.Errorf("watsonx: decode iam response: %w", err)
	}
	if iam.AccessToken == "" {
		return "", fmt.Errorf("watsonx: iam response carried no token")
	}

	c.token = iam.AccessToken
	// Refresh a minute early so in-flight calls never ride an expired token.
	c.tokenExp = time.Now().Add(time.Duration(iam.ExpiresIn)*time.Second - time.Minute)
	return c.token, nil
}
