package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application. Values come from
// environment variables (ETL_ prefix) or an optional .env file, with
// defaults suitable for a local SQLite run.
type Config struct {
	// Pipeline configuration
	DataDir          string  `mapstructure:"DATA_DIR"`
	DatabaseDSN      string  `mapstructure:"DATABASE_DSN"`
	MaxRejectionRate float64 `mapstructure:"MAX_REJECTION_RATE"`
	Parallel         bool    `mapstructure:"PARALLEL"`

	// Conversion KPI bands. Which categorical values count as "high" is a
	// business policy, so it is configured rather than hard-coded.
	NutritionHighBand []string `mapstructure:"NUTRITION_HIGH_BAND"`
	ActivityHighBand  []string `mapstructure:"ACTIVITY_HIGH_BAND"`

	// Server configuration
	ServerPort  string   `mapstructure:"SERVER_PORT"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	// Redis configuration (optional KPI cache; empty addr disables caching)
	RedisAddr       string `mapstructure:"REDIS_ADDR"`
	RedisPassword   string `mapstructure:"REDIS_PASSWORD"`
	RedisDB         int    `mapstructure:"REDIS_DB"`
	CacheTTLSeconds int    `mapstructure:"CACHE_TTL_SECONDS"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetEnvPrefix("ETL")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("DATA_DIR", ".")
	v.SetDefault("DATABASE_DSN", "mspr_etl.db")
	v.SetDefault("MAX_REJECTION_RATE", 0.5)
	v.SetDefault("PARALLEL", true)
	v.SetDefault("NUTRITION_HIGH_BAND", "High")
	v.SetDefault("ACTIVITY_HIGH_BAND", "Active,Very_Active")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_TTL_SECONDS", 60)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"DATA_DIR", "DATABASE_DSN", "MAX_REJECTION_RATE", "PARALLEL",
		"NUTRITION_HIGH_BAND", "ACTIVITY_HIGH_BAND",
		"SERVER_PORT", "CORS_ORIGINS",
		"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "CACHE_TTL_SECONDS",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	// Try reading .env, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Comma-separated lists arrive as a single string from env vars.
	cfg.NutritionHighBand = splitList(v.GetString("NUTRITION_HIGH_BAND"))
	cfg.ActivityHighBand = splitList(v.GetString("ACTIVITY_HIGH_BAND"))
	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.DatabaseDSN == "" {
		return fmt.Errorf("ETL_DATABASE_DSN is required")
	}
	if c.MaxRejectionRate <= 0 || c.MaxRejectionRate > 1 {
		return fmt.Errorf("ETL_MAX_REJECTION_RATE must be in (0, 1], got %v", c.MaxRejectionRate)
	}
	if len(c.NutritionHighBand) == 0 {
		return fmt.Errorf("ETL_NUTRITION_HIGH_BAND must name at least one adherence value")
	}
	if len(c.ActivityHighBand) == 0 {
		return fmt.Errorf("ETL_ACTIVITY_HIGH_BAND must name at least one activity level")
	}
	return nil
}

// CacheEnabled reports whether a Redis KPI cache is configured.
func (c *Config) CacheEnabled() bool {
	return c.RedisAddr != ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
