package seeder

import (
	"context"

	"go.uber.org/zap"

	"github.com/brandcraft/brandcraft/internal/auth"
	"github.com/brandcraft/brandcraft/internal/credits"
)

const (
	TestAPIKey = "test-api-key-12345"
	TestUserID = "00000000-0000-0000-0000-000000000001"
)

// SeedDemoAccount creates a demo user with a starter credit balance and a
// known API key. Dev-only, behind RUN_SEED=true.
func SeedDemoAccount(ctx context.Context, db auth.DB, store auth.Store, log *zap.Logger) {
	_, err := db.Exec(ctx, `
		INSERT INTO users (id, email, tier, credits)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`, TestUserID, "demo@brandcraft.dev", credits.TierStarter, credits.Plans[credits.TierStarter].MonthlyCredits)
	if err != nil {
		log.Warn("seeder: demo user insert failed", zap.Error(err))
		return
	}

	apiKey := &auth.APIKey{
		UserID:  TestUserID,
		KeyHash: auth.HashKey(TestAPIKey),
		Active:  true,
	}
	if err := store.Create(ctx, apiKey); err != nil {
		log.Warn("seeder: api key may already exist, skipping", zap.Error(err))
		return
	}

	log.Info("seeder: demo account ready",
		zap.String("api_key", TestAPIKey),
		zap.String("user_id", TestUserID),
	)
}
