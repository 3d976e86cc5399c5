package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var thousand = decimal.NewFromInt(1000)

// Table estimates the monetary cost of a provider call from token counts.
// Rates are per 1000 tokens, keyed by provider/model; unknown pairs fall
// back to the default rate so a pricing gap never blocks the router.
// Decimal arithmetic keeps the figures stable for downstream cost auditing.
type Table struct {
	rates      map[string]decimal.Decimal
	defaultPer decimal.Decimal
}

// New parses a rate table of per-1k-token prices expressed as decimal
// strings (e.g. "0.00035").
func New(defaultPer1K string, rates map[string]string) (*Table, error) {
	def, err := decimal.NewFromString(defaultPer1K)
	if err != nil {
		return nil, fmt.Errorf("pricing: invalid default rate %q: %w", defaultPer1K, err)
	}

	parsed := make(map[string]decimal.Decimal, len(rates))
	for key, raw := range rates {
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("pricing: invalid rate for %s: %w", key, err)
		}
		parsed[key] = rate
	}

	return &Table{rates: parsed, defaultPer: def}, nil
}

// Estimate computes ((prompt+completion)/1000) * rate. It never errors and
// never returns a negative amount; negative token counts clamp to zero.
func (t *Table) Estimate(providerName, model string, promptTokens, completionTokens int) decimal.Decimal {
	if promptTokens < 0 {
		promptTokens = 0
	}
	if completionTokens < 0 {
		completionTokens = 0
	}

	rate := t.defaultPer
	if r, ok := t.rates[Key(providerName, model)]; ok {
		rate = r
	}

	total := decimal.NewFromInt(int64(promptTokens) + int64(completionTokens))
	return total.Div(thousand).Mul(rate)
}

// Key builds the lookup key for a (provider, model) pair.
func Key(providerName, model string) string {
	return providerName + "/" + model
}
