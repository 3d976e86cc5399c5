package credits

import "github.com/brandcraft/brandcraft/internal/task"

type Tier string

const (
	TierFree       Tier = "free"
	TierStarter    Tier = "starter"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// Plan describes what a subscription tier is entitled to.
type Plan struct {
	MonthlyCredits int
	Priority       bool
}

var Plans = map[Tier]Plan{
	TierFree:       {MonthlyCredits: 10},
	TierStarter:    {MonthlyCredits: 100},
	TierPro:        {MonthlyCredits: 1000, Priority: true},
	TierEnterprise: {MonthlyCredits: 100000, Priority: true},
}

// taskCosts prices each task in credits.
var taskCosts = map[task.Task]int{
	task.BrandNames: 1,
	task.Content:    2,
	task.Logo:       5,
	task.Assistant:  1,
	task.Sentiment:  1,
}

// CostFor returns the credit price of a task, defaulting to 1.
func CostFor(t task.Task) int {
	if c, ok := taskCosts[t]; ok {
		return c
	}
	return 1
}
