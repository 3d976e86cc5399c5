package credits

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/brandcraft/brandcraft/internal/task"
)

var ErrInsufficientCredits = errors.New("insufficient credits")

type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Manager meters tasks against per-user credit balances. The deduction is
// a single conditional UPDATE so concurrent requests can never spend the
// same credit twice.
type Manager struct {
	db DB
}

func NewManager(db DB) *Manager {
	return &Manager{db: db}
}

// CheckAndDeduct charges the task's credit cost, returning the cost on
// success and the remaining balance. The check happens before the router
// is invoked; the router has no notion of users or credits.
func (m *Manager) CheckAndDeduct(ctx context.Context, userID string, t task.Task) (cost, remaining int, err error) {
	cost = CostFor(t)
	query := `
		UPDATE users SET credits = credits - $2
		WHERE id = $1 AND credits >= $2
		RETURNING credits
	`
	err = m.db.QueryRow(ctx, query, userID, cost).Scan(&remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, ErrInsufficientCredits
		}
		return 0, 0, fmt.Errorf("failed to deduct credits: %w", err)
	}
	return cost, remaining, nil
}

// Balance reads a user's current credit balance.
func (m *Manager) Balance(ctx context.Context, userID string) (int, error) {
	var balance int
	err := m.db.QueryRow(ctx, `SELECT credits FROM users WHERE id = $1`, userID).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}
	return balance, nil
}

// GrantMonthly tops every user of a tier back up to the plan's monthly
// allowance. Run by an external scheduler at the start of each cycle.
func (m *Manager) GrantMonthly(ctx context.Context, tier Tier) (int64, error) {
	plan, ok := Plans[tier]
	if !ok {
		return 0, fmt.Errorf("unknown tier %q", tier)
	}
	tag, err := m.db.Exec(ctx,
		`UPDATE users SET credits = $2 WHERE tier = $1 AND credits < $2`,
		tier, plan.MonthlyCredits,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to grant monthly credits: %w", err)
	}
	return tag.RowsAffected(), nil
}
