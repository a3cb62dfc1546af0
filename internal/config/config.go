package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"local"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	PostgresDSN string `env:"POSTGRES_DSN,required"`
	HealthPort  int    `env:"HEALTH_PORT" envDefault:"8080"`

	// Model providers. DeepSeek is primary, Gemini is the fallback.
	DeepSeekAPIKey  string        `env:"DEEPSEEK_API_KEY"`
	DeepSeekBaseURL string        `env:"DEEPSEEK_BASE_URL" envDefault:"https://api.deepseek.com"`
	DeepSeekModel   string        `env:"DEEPSEEK_MODEL" envDefault:"deepseek-chat"`
	GeminiAPIKey    string        `env:"GEMINI_API_KEY"`
	GeminiModel     string        `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`
	LLMTimeout      time.Duration `env:"LLM_TIMEOUT" envDefault:"120s"`
	LLMRateRPS      float64       `env:"LLM_RATE_RPS" envDefault:"1"`

	// Collection
	WebFetchRPS        float64       `env:"WEB_FETCH_RPS" envDefault:"2"`
	WebFetchTimeout    time.Duration `env:"WEB_FETCH_TIMEOUT" envDefault:"30s"`
	MaxItemsPerSource  int           `env:"MAX_ITEMS_PER_SOURCE" envDefault:"50"`
	AISearchMaxQueries int           `env:"AI_SEARCH_MAX_QUERIES" envDefault:"10"`

	// Screening
	ScreeningBatchSize int `env:"SCREENING_BATCH_SIZE" envDefault:"5"`
	ScreeningLimit     int `env:"SCREENING_LIMIT" envDefault:"100"`

	// Analysis
	AnalysisBatchSize int `env:"ANALYSIS_BATCH_SIZE" envDefault:"8"`
	AnalysisLimit     int `env:"ANALYSIS_LIMIT" envDefault:"300"`

	// Review
	ReviewLimit int `env:"REVIEW_LIMIT" envDefault:"1000"`

	// Publication
	DailyTarget int `env:"DAILY_TARGET" envDefault:"200"`

	// Frontend cache revalidation, best effort.
	RevalidateBaseURL string `env:"REVALIDATE_BASE_URL"`
	RevalidateToken   string `env:"REVALIDATE_TOKEN"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
