package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Assets    AssetsConfig    `mapstructure:"assets"`
	Cache     CacheConfig     `mapstructure:"cache"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	OTel      OTelConfig      `mapstructure:"otel"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Pricing   PricingConfig   `mapstructure:"pricing"`
	Routes    RoutesConfig    `mapstructure:"routes"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AssetsConfig struct {
	Dir string `mapstructure:"dir"`
}

type CacheConfig struct {
	Backend string        `mapstructure:"backend"` // "memory" or "redis"
	TTL     time.Duration `mapstructure:"ttl"`
}

type RateLimitConfig struct {
	RequestsPerMinute int64 `mapstructure:"requests_per_minute"`
}

type OTelConfig struct {
	ExporterType     string `mapstructure:"exporter_type"` // "stdout" or "otlp"
	ExporterEndpoint string `mapstructure:"exporter_endpoint"`
}

type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

type GeminiConfig struct {
	ProviderConfig `mapstructure:",squash"`
	ImageModel     string `mapstructure:"image_model"`
}

type StabilityConfig struct {
	ProviderConfig `mapstructure:",squash"`
	Engine         string `mapstructure:"engine"`
}

type WatsonxConfig struct {
	ProviderConfig `mapstructure:",squash"`
	ProjectID      string `mapstructure:"project_id"`
}

type ProvidersConfig struct {
	Gemini      GeminiConfig    `mapstructure:"gemini"`
	OpenAI      ProviderConfig  `mapstructure:"openai"`
	HuggingFace ProviderConfig  `mapstructure:"huggingface"`
	Stability   StabilityConfig `mapstructure:"stability"`
	Watsonx     WatsonxConfig   `mapstructure:"watsonx"`
}

type PricingConfig struct {
	DefaultPer1K string            `mapstructure:"default_per_1k"`
	Rates        map[string]string `mapstructure:"rates"` // "provider/model" -> USD per 1K tokens
}

// RoutesConfig names the provider order tried per task family.
type RoutesConfig struct {
	Text      []string `mapstructure:"text"`
	Assistant []string `mapstructure:"assistant"`
	Logo      []string `mapstructure:"logo"`
}

// Load reads config.yaml (if present) and the environment, .env included.
// Provider api_key values may use the "ENV:VAR_NAME" indirection so the
// yaml file stays committable.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("assets.dir", "./static")
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl", 24*time.Hour)
	v.SetDefault("rate_limit.requests_per_minute", 60)
	v.SetDefault("otel.exporter_type", "stdout")
	v.SetDefault("otel.exporter_endpoint", "localhost:4317")
	v.SetDefault("providers.gemini.api_key", "ENV:GEMINI_API_KEY")
	v.SetDefault("providers.openai.api_key", "ENV:OPENAI_API_KEY")
	v.SetDefault("providers.huggingface.api_key", "ENV:HUGGINGFACE_API_KEY")
	v.SetDefault("providers.stability.api_key", "ENV:STABILITY_API_KEY")
	v.SetDefault("providers.watsonx.api_key", "ENV:WATSONX_API_KEY")
	v.SetDefault("providers.watsonx.project_id", "ENV:WATSONX_PROJECT_ID")
	v.SetDefault("pricing.default_per_1k", "0.002")
	v.SetDefault("routes.text", []string{"google", "openai"})
	v.SetDefault("routes.assistant", []string{"ibm_watsonx", "google"})
	v.SetDefault("routes.logo", []string{"stability_ai", "google"})

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if cfg.Postgres.DSN == "" {
		cfg.Postgres.DSN = os.Getenv("POSTGRES_DSN")
	}
	if cfg.Postgres.DSN == "" {
		return nil, fmt.Errorf("postgres.dsn (or POSTGRES_DSN) is required")
	}

	resolveEnv(&cfg.Providers.Gemini.APIKey)
	resolveEnv(&cfg.Providers.OpenAI.APIKey)
	resolveEnv(&cfg.Providers.HuggingFace.APIKey)
	resolveEnv(&cfg.Providers.Stability.APIKey)
	resolveEnv(&cfg.Providers.Watsonx.APIKey)
	resolveEnv(&cfg.Providers.Watsonx.ProjectID)

	return &cfg, nil
}

func resolveEnv(value *string) {
	if strings.HasPrefix(*value, "ENV:") {
		*value = os.Getenv(strings.TrimPrefix(*value, "ENV:"))
	}
}
