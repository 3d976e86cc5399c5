package credits

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandcraft/brandcraft/internal/task"
)

type fakeRow struct {
	remaining int
	err       error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) > 0 {
		if p, ok := dest[0].(*int); ok {
			*p = r.remaining
		}
	}
	return nil
}

type fakeDB struct {
	remaining int
	err       error
	lastArgs  []any
}

func (d *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	d.lastArgs = args
	return fakeRow{remaining: d.remaining, err: d.err}
}

func (d *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	d.lastArgs = args
	return pgconn.CommandTag{}, nil
}

func TestCheckAndDeduct_ChargesTaskCost(t *testing.T) {
	db := &fakeDB{remaining: 5}
	m := NewManager(db)

	cost, remaining, err := m.CheckAndDeduct(context.Background(), "user-1", task.Logo)
	require.NoError(t, err)
	assert.Equal(t, 5, cost, "logo costs 5 credits")
	assert.Equal(t, 5, remaining)
	assert.Equal(t, []any{"user-1", 5}, db.lastArgs)
}

func TestCheckAndDeduct_Insufficient(t *testing.T) {
	db := &fakeDB{err: pgx.ErrNoRows}
	m := NewManager(db)

	_, _, err := m.CheckAndDeduct(context.Background(), "user-1", task.Content)
	assert.ErrorIs(t, err, ErrInsufficientCredits)
}

func TestCostFor(t *testing.T) {
	assert.Equal(t, 1, CostFor(task.BrandNames))
	assert.Equal(t, 2, CostFor(task.Content))
	assert.Equal(t, 5, CostFor(task.Logo))
	assert.Equal(t, 1, CostFor(task.Assistant))
	assert.Equal(t, 1, CostFor(task.Sentiment))
	assert.Equal(t, 1, CostFor(task.Task("unknown")), "unknown tasks default to 1")
}

func TestPlans(t *testing.T) {
	assert.Equal(t, 10, Plans[TierFree].MonthlyCredits)
	assert.Equal(t, 100, Plans[TierStarter].MonthlyCredits)
	assert.Equal(t, 1000, Plans[TierPro].MonthlyCredits)
	assert.Equal(t, 100000, Plans[TierEnterprise].MonthlyCredits)
	assert.True(t, Plans[TierPro].Priority)
	assert.False(t, Plans[TierFree].Priority)
}
