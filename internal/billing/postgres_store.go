package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) Store {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) LogUsage(ctx context.Context, log *UsageLog) error {
	query := `
		INSERT INTO usage_logs (user_id, request_id, task, provider, model,
			prompt_tokens, completion_tokens, total_tokens, cost_estimate, credits_spent, latency_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at
	`
	err := s.db.QueryRow(ctx, query,
		log.UserID, log.RequestID, log.Task, log.Provider, log.Model,
		log.PromptTokens, log.CompletionTokens, log.TotalTokens,
		log.CostEstimate, log.CreditsSpent, log.LatencyMs,
	).Scan(&log.ID, &log.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to log usage: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUsageByUser(ctx context.Context, userID string, from, to time.Time) ([]*UsageLog, error) {
	query := `
		SELECT id, user_id, request_id, task, provider, model,
			prompt_tokens, completion_tokens, total_tokens, cost_estimate, credits_spent, latency_ms, created_at
		FROM usage_logs
		WHERE user_id = $1 AND created_at BETWEEN $2 AND $3
		ORDER BY created_at DESC
	`
	rows, err := s.db.Query(ctx, query, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage logs: %w", err)
	}
	defer rows.Close()

	var logs []*UsageLog
	for rows.Next() {
		var l UsageLog
		err := rows.Scan(
			&l.ID, &l.UserID, &l.RequestID, &l.Task, &l.Provider, &l.Model,
			&l.PromptTokens, &l.CompletionTokens, &l.TotalTokens,
			&l.CostEstimate, &l.CreditsSpent, &l.LatencyMs, &l.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan usage log: %w", err)
		}
		logs = append(logs, &l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating usage logs: %w", err)
	}
	return logs, nil
}

func (s *PostgresStore) GetTotalCostByUser(ctx context.Context, userID string, from, to time.Time) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(cost_estimate), 0)
		FROM usage_logs
		WHERE user_id = $1 AND created_at BETWEEN $2 AND $3
	`
	var total decimal.Decimal
	err := s.db.QueryRow(ctx, query, userID, from, to).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get total cost: %w", err)
	}
	return total, nil
}

func (s *PostgresStore) CostByProvider(ctx context.Context, from, to time.Time) ([]*ProviderCost, error) {
	query := `
		SELECT provider, model, COUNT(*), COALESCE(SUM(cost_estimate), 0)
		FROM usage_logs
		WHERE created_at BETWEEN $1 AND $2
		GROUP BY provider, model
		ORDER BY SUM(cost_estimate) DESC
	`
	rows, err := s.db.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query provider costs: %w", err)
	}
	defer rows.Close()

	var costs []*ProviderCost
	for rows.Next() {
		var c ProviderCost
		if err := rows.Scan(&c.Provider, &c.Model, &c.Requests, &c.TotalCost); err != nil {
			return nil, fmt.Errorf("failed to scan provider cost: %w", err)
		}
		costs = append(costs, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating provider costs: %w", err)
	}
	return costs, nil
}
