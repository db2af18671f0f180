package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Server    ServerConfig    `mapstructure:"server"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite
	DSN    string `mapstructure:"dsn"`    // Connection string
}

// ProvidersConfig groups the per-engine provider settings
type ProvidersConfig struct {
	OpenAI     ProviderConfig `mapstructure:"openai"`
	Perplexity ProviderConfig `mapstructure:"perplexity"`
	Gemini     ProviderConfig `mapstructure:"gemini"`
}

// ProviderConfig holds one AI provider's API settings
type ProviderConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// SchedulerConfig holds scheduler settings
type SchedulerConfig struct {
	DailyCron  string `mapstructure:"daily_cron"`
	WeeklyCron string `mapstructure:"weekly_cron"`
}

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	OpenAIRequestsPerMinute     int `mapstructure:"openai_requests_per_minute"`
	PerplexityRequestsPerMinute int `mapstructure:"perplexity_requests_per_minute"`
	GeminiRequestsPerMinute     int `mapstructure:"gemini_requests_per_minute"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json or console
	Output string `mapstructure:"output"` // stdout or file path
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	// Load .env file if present (ignore errors if not found)
	_ = godotenv.Load()
	_ = godotenv.Load(".env.local")

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config in current directory and configs folder
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")

		// Also check user's home directory
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".citewatch"))
		}
	}

	// Environment variables
	v.SetEnvPrefix("CITEWATCH")
	v.AutomaticEnv()

	// Explicit bindings for nested keys (Viper doesn't auto-bind underscored nested keys)
	v.BindEnv("providers.openai.api_key", "CITEWATCH_OPENAI_API_KEY")
	v.BindEnv("providers.perplexity.api_key", "CITEWATCH_PERPLEXITY_API_KEY")
	v.BindEnv("providers.gemini.api_key", "CITEWATCH_GEMINI_API_KEY")
	v.BindEnv("database.driver", "CITEWATCH_DATABASE_DRIVER")
	v.BindEnv("database.dsn", "CITEWATCH_DATABASE_DSN")
	v.BindEnv("server.addr", "CITEWATCH_SERVER_ADDR")
	v.BindEnv("scheduler.daily_cron", "CITEWATCH_SCHEDULER_DAILY_CRON")
	v.BindEnv("scheduler.weekly_cron", "CITEWATCH_SCHEDULER_WEEKLY_CRON")
	v.BindEnv("logging.level", "CITEWATCH_LOGGING_LEVEL")

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/citewatch.db")

	// Provider defaults. API keys come from the environment; a missing key
	// disables that engine only, never the whole service.
	v.SetDefault("providers.openai.model", "gpt-4o-mini")
	v.SetDefault("providers.openai.max_tokens", 500)
	v.SetDefault("providers.openai.temperature", 0.2)

	v.SetDefault("providers.perplexity.model", "sonar")
	v.SetDefault("providers.perplexity.max_tokens", 500)
	v.SetDefault("providers.perplexity.temperature", 0.2)

	v.SetDefault("providers.gemini.model", "gemini-1.5-flash")
	v.SetDefault("providers.gemini.max_tokens", 500)
	v.SetDefault("providers.gemini.temperature", 0.1)

	// Server defaults
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Scheduler defaults
	v.SetDefault("scheduler.daily_cron", "0 6 * * *")  // 6am daily
	v.SetDefault("scheduler.weekly_cron", "0 7 * * 1") // 7am Monday

	// Rate limit defaults
	v.SetDefault("rate_limit.openai_requests_per_minute", 60)
	v.SetDefault("rate_limit.perplexity_requests_per_minute", 20)
	v.SetDefault("rate_limit.gemini_requests_per_minute", 60)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stdout")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Providers.OpenAI.APIKey == "" &&
		c.Providers.Perplexity.APIKey == "" &&
		c.Providers.Gemini.APIKey == "" {
		return fmt.Errorf("at least one provider api key is required")
	}
	return nil
}
