package billing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/brandcraft/brandcraft/internal/task"
)

// UsageLog is one metered AI call: who asked, which provider served it,
// what it consumed and what it is estimated to have cost.
type UsageLog struct {
	ID               string          `json:"id"`
	UserID           string          `json:"user_id"`
	RequestID        string          `json:"request_id"`
	Task             task.Task       `json:"task"`
	Provider         string          `json:"provider"`
	Model            string          `json:"model"`
	PromptTokens     int             `json:"prompt_tokens"`
	CompletionTokens int             `json:"completion_tokens"`
	TotalTokens      int             `json:"total_tokens"`
	CostEstimate     decimal.Decimal `json:"cost_estimate"`
	CreditsSpent     int             `json:"credits_spent"`
	LatencyMs        int64           `json:"latency_ms"`
	CreatedAt        time.Time       `json:"created_at"`
}

// ProviderCost is one row of the admin cost audit: total estimated burn
// per (provider, model).
type ProviderCost struct {
	Provider  string          `json:"provider"`
	Model     string          `json:"model"`
	Requests  int64           `json:"requests"`
	TotalCost decimal.Decimal `json:"total_cost_usd"`
}

type Store interface {
	LogUsage(ctx context.Context, log *UsageLog) error
	GetUsageByUser(ctx context.Context, userID string, from, to time.Time) ([]*UsageLog, error)
	GetTotalCostByUser(ctx context.Context, userID string, from, to time.Time) (decimal.Decimal, error)
	CostByProvider(ctx context.Context, from, to time.Time) ([]*ProviderCost, error)
}
