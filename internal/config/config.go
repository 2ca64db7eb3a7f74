package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aliscan/aliscan-cli/internal/billing"
	"github.com/aliscan/aliscan-cli/internal/cost"
	"github.com/aliscan/aliscan-cli/internal/extract"
	"github.com/aliscan/aliscan-cli/internal/ocr"
	"github.com/aliscan/aliscan-cli/internal/scorer"
	"github.com/aliscan/aliscan-cli/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig        `yaml:"store" mapstructure:"store"`
	OCR      ocr.Config         `yaml:"ocr" mapstructure:"ocr"`
	Analysis AnalysisConfig     `yaml:"analysis" mapstructure:"analysis"`
	Scorer   scorer.Config      `yaml:"scorer" mapstructure:"scorer"`
	Vocab    extract.Vocabulary `yaml:"vocabulary" mapstructure:"vocabulary"`
	Billing  BillingConfig      `yaml:"billing" mapstructure:"billing"`
	Cost     cost.Rates         `yaml:"cost" mapstructure:"cost"`
	Track    TrackConfig        `yaml:"track" mapstructure:"track"`
	Server   ServerConfig       `yaml:"server" mapstructure:"server"`
	Log      LogConfig          `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string           `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	Pool        store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// AnalysisConfig configures extraction and batch behavior.
type AnalysisConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
	BatchConcurrency    int     `yaml:"batch_concurrency" mapstructure:"batch_concurrency"`
}

// BillingConfig configures quota allowances.
type BillingConfig struct {
	Limits billing.Limits `yaml:"limits" mapstructure:"limits"`
}

// TrackConfig configures the package tracking client.
type TrackConfig struct {
	APIKey        string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	CacheTTLHours int    `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	Simulate      bool   `yaml:"simulate" mapstructure:"simulate"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ALISCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "aliscan.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("ocr.provider", "tesseract")
	v.SetDefault("ocr.tesseract_path", "tesseract")
	v.SetDefault("ocr.languages", "fra+eng")
	v.SetDefault("analysis.similarity_threshold", extract.DefaultSimilarityThreshold)
	v.SetDefault("analysis.batch_concurrency", 4)
	v.SetDefault("billing.limits.trial_credits", 20)
	v.SetDefault("billing.limits.daily_free", 5)
	v.SetDefault("billing.limits.monthly_sub", 300)
	v.SetDefault("cost.customs_pct", 20.0)
	v.SetDefault("cost.fees_pct", 5.0)
	v.SetDefault("track.base_url", "https://api.aliscan.dev/v1")
	v.SetDefault("track.cache_ttl_hours", 6)
	v.SetDefault("track.simulate", false)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	// Scoring weights and the phrase vocabulary are structured defaults; a
	// config file overrides them wholesale or not at all.
	if !v.IsSet("scorer") {
		cfg.Scorer = scorer.DefaultConfig()
	} else if err := scorer.ValidateConfig(cfg.Scorer); err != nil {
		return nil, eris.Wrap(err, "config: scorer")
	}
	if !v.IsSet("vocabulary") {
		cfg.Vocab = extract.DefaultVocabulary()
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
