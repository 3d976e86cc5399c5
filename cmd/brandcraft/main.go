package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/brandcraft/brandcraft/config"
	"github.com/brandcraft/brandcraft/internal/api"
	"github.com/brandcraft/brandcraft/internal/assets"
	"github.com/brandcraft/brandcraft/internal/auth"
	"github.com/brandcraft/brandcraft/internal/billing"
	"github.com/brandcraft/brandcraft/internal/brand"
	"github.com/brandcraft/brandcraft/internal/cache"
	"github.com/brandcraft/brandcraft/internal/credits"
	"github.com/brandcraft/brandcraft/internal/logging"
	"github.com/brandcraft/brandcraft/internal/pricing"
	"github.com/brandcraft/brandcraft/internal/provider"
	"github.com/brandcraft/brandcraft/internal/provider/gemini"
	"github.com/brandcraft/brandcraft/internal/provider/huggingface"
	"github.com/brandcraft/brandcraft/internal/provider/openai"
	"github.com/brandcraft/brandcraft/internal/provider/stability"
	"github.com/brandcraft/brandcraft/internal/provider/watsonx"
	"github.com/brandcraft/brandcraft/internal/router"
	"github.com/brandcraft/brandcraft/internal/seeder"
	"github.com/brandcraft/brandcraft/internal/task"
	"github.com/brandcraft/brandcraft/internal/telemetry"
	"github.com/brandcraft/brandcraft/internal/worker"
	"github.com/brandcraft/brandcraft/pkg/ratelimit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Server.Env)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	shutdownTracer, err := telemetry.InitTracer("brandcraft", cfg.OTel.ExporterType, cfg.OTel.ExporterEndpoint)
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdownTracer()

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal("failed to ping postgres", zap.Error(err))
	}
	logger.Info("postgres connected")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to ping redis", zap.Error(err))
	}
	logger.Info("redis connected")

	assetStore, err := assets.NewDiskStore(cfg.Assets.Dir)
	if err != nil {
		logger.Fatal("failed to init asset store", zap.Error(err))
	}

	// Providers. Missing credentials degrade that provider out of its
	// chains rather than failing startup.
	textProviders := map[string]provider.TextGenerator{}
	imageProviders := map[string]provider.ImageGenerator{}

	gem, err := gemini.New(gemini.Config{
		APIKey:     cfg.Providers.Gemini.APIKey,
		BaseURL:    cfg.Providers.Gemini.BaseURL,
		Model:      cfg.Providers.Gemini.Model,
		ImageModel: cfg.Providers.Gemini.ImageModel,
	}, assetStore, logger)
	if err != nil {
		warnSkipped(logger, "google", err)
	} else {
		textProviders[gem.Name()] = gem
		imageProviders[gem.Name()] = gem
	}

	oai, err := openai.New(openai.Config{
		APIKey:  cfg.Providers.OpenAI.APIKey,
		BaseURL: cfg.Providers.OpenAI.BaseURL,
		Model:   cfg.Providers.OpenAI.Model,
	})
	if err != nil {
		warnSkipped(logger, "openai", err)
	} else {
		textProviders[oai.Name()] = oai
	}

	wx, err := watsonx.New(watsonx.Config{
		APIKey:    cfg.Providers.Watsonx.APIKey,
		ProjectID: cfg.Providers.Watsonx.ProjectID,
		Model:     cfg.Providers.Watsonx.Model,
		BaseURL:   cfg.Providers.Watsonx.BaseURL,
	})
	if err != nil {
		warnSkipped(logger, "ibm_watsonx", err)
	} else {
		textProviders[wx.Name()] = wx
	}

	stab, err := stability.New(stability.Config{
		APIKey:  cfg.Providers.Stability.APIKey,
		Engine:  cfg.Providers.Stability.Engine,
		BaseURL: cfg.Providers.Stability.BaseURL,
	}, assetStore, logger)
	if err != nil {
		warnSkipped(logger, "stability_ai", err)
	} else {
		imageProviders[stab.Name()] = stab
	}

	var sentiment provider.SentimentClassifier
	hf, err := huggingface.New(huggingface.Config{
		APIKey:  cfg.Providers.HuggingFace.APIKey,
		Model:   cfg.Providers.HuggingFace.Model,
		BaseURL: cfg.Providers.HuggingFace.BaseURL,
	}, logger)
	if err != nil {
		warnSkipped(logger, "huggingface", err)
	} else {
		sentiment = hf
	}

	chains := router.Chains{
		Text: map[task.Task][]provider.TextGenerator{
			task.BrandNames: pickText(textProviders, cfg.Routes.Text),
			task.Content:    pickText(textProviders, cfg.Routes.Text),
			task.Assistant:  pickText(textProviders, cfg.Routes.Assistant),
		},
		Images:    pickImages(imageProviders, cfg.Routes.Logo),
		Sentiment: sentiment,
	}

	prices, err := pricing.New(cfg.Pricing.DefaultPer1K, cfg.Pricing.Rates)
	if err != nil {
		logger.Fatal("invalid pricing config", zap.Error(err))
	}

	var respCache cache.Cache
	if cfg.Cache.Backend == "redis" {
		respCache = cache.NewRedis(rdb)
	} else {
		respCache = cache.NewMemory()
	}

	rt := router.New(chains, respCache, prices, cfg.Cache.TTL, logger)

	authStore := auth.NewPostgresStore(pool)
	authMiddleware := auth.NewMiddleware(authStore, rdb, logger)
	billingStore := billing.NewPostgresStore(pool)
	brandStore := brand.NewPostgresStore(pool)
	creditManager := credits.NewManager(pool)
	limiter := ratelimit.NewLimiter(rdb, cfg.RateLimit.RequestsPerMinute)
	jobs := worker.NewQueue(rdb, rt, logger)

	if os.Getenv("RUN_SEED") == "true" {
		seeder.SeedDemoAccount(ctx, pool, authStore, logger)
	}

	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	go func() {
		if err := jobs.Process(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("job worker stopped", zap.Error(err))
		}
	}()

	handler := api.NewHandler(rt, creditManager, billingStore, brandStore, limiter, jobs, logger)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","service":"brandcraft"}`))
	})

	// Generated logos are served straight off disk.
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(assetStore.Dir()))))

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)

		r.Post("/v1/branding/generate-name", handler.HandleGenerateName)
		r.Post("/v1/branding/generate-content", handler.HandleGenerateContent)
		r.Post("/v1/branding/generate-logo", handler.HandleGenerateLogo)
		r.Post("/v1/branding/sentiment", handler.HandleSentiment)
		r.Post("/v1/branding/assistant", handler.HandleAssistant)

		r.Post("/v1/contexts", handler.HandleCreateContext)
		r.Get("/v1/contexts", handler.HandleListContexts)
		r.Get("/v1/contexts/{id}", handler.HandleGetContext)
		r.Put("/v1/contexts/{id}", handler.HandleUpdateContext)
		r.Delete("/v1/contexts/{id}", handler.HandleDeleteContext)

		r.Get("/v1/usage", handler.HandleUsage)
		r.Get("/v1/admin/costs", handler.HandleProviderCosts)

		r.Post("/v1/jobs", handler.HandleCreateJob)
		r.Get("/v1/jobs/{id}", handler.HandleGetJob)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("brandcraft starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down gracefully")
	stopWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("forced shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func warnSkipped(logger *zap.Logger, name string, err error) {
	if errors.Is(err, provider.ErrNotConfigured) {
		logger.Warn("provider not configured, skipping", zap.String("provider", name))
		return
	}
	logger.Fatal("failed to init provider", zap.String("provider", name), zap.Error(err))
}

func pickText(available map[string]provider.TextGenerator, order []string) []provider.TextGenerator {
	var chain []provider.TextGenerator
	for _, name := range order {
		if p, ok := available[name]; ok {
			chain = append(chain, p)
		}
	}
	return chain
}

func pickImages(available map[string]provider.ImageGenerator, order []string) []provider.ImageGenerator {
	var chain []provider.ImageGenerator
	for _, name := range order {
		if p, ok := available[name]; ok {
			chain = append(chain, p)
		}
	}
	return chain
}
