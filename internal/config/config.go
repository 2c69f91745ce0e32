package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	ServerAddr string `mapstructure:"SERVER_ADDR"`
	GinMode    string `mapstructure:"GIN_MODE"`

	DatabaseDriver string `mapstructure:"DATABASE_DRIVER"`
	DatabaseURL    string `mapstructure:"DATABASE_URL"`

	JWTSecret string        `mapstructure:"JWT_SECRET"`
	TokenTTL  time.Duration `mapstructure:"TOKEN_TTL"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	StorageDriver  string `mapstructure:"STORAGE_DRIVER"`
	StorageRoot    string `mapstructure:"STORAGE_ROOT"`
	ExportDir      string `mapstructure:"EXPORT_DIR"`
	AvatarDir      string `mapstructure:"AVATAR_DIR"`
	MaxAvatarBytes int64  `mapstructure:"MAX_AVATAR_BYTES"`
	S3Bucket       string `mapstructure:"S3_BUCKET"`
	S3Region       string `mapstructure:"S3_REGION"`
	S3Endpoint     string `mapstructure:"S3_ENDPOINT"`
	S3KeyPrefix    string `mapstructure:"S3_KEY_PREFIX"`
	AWSProfile     string `mapstructure:"AWS_PROFILE"`

	AuthRateLimit  float64 `mapstructure:"AUTH_RATE_LIMIT"`
	AuthRateBurst  int     `mapstructure:"AUTH_RATE_BURST"`
	ExportSchedule string  `mapstructure:"EXPORT_SCHEDULE"`
}

var defaults = map[string]any{
	"SERVER_ADDR":      ":8080",
	"GIN_MODE":         "debug",
	"DATABASE_DRIVER":  "sqlite",
	"DATABASE_URL":     "file:indieforge.db?_pragma=foreign_keys(1)",
	"JWT_SECRET":       "",
	"TOKEN_TTL":        "30m",
	"LOG_LEVEL":        "info",
	"LOG_FORMAT":       "text",
	"STORAGE_DRIVER":   "local",
	"STORAGE_ROOT":     "data",
	"EXPORT_DIR":       "exports",
	"AVATAR_DIR":       "avatars",
	"MAX_AVATAR_BYTES": 2 << 20,
	"S3_BUCKET":        "",
	"S3_REGION":        "us-east-1",
	"S3_ENDPOINT":      "",
	"S3_KEY_PREFIX":    "indieforge",
	"AWS_PROFILE":      "",
	"AUTH_RATE_LIMIT":  5.0,
	"AUTH_RATE_BURST":  10,
	"EXPORT_SCHEDULE":  "",
}

// Load reads configuration from an optional .env file and environment variables.
// Values already present in the environment take precedence over the .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings that have no sensible default.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	switch c.StorageDriver {
	case "local":
	case "s3":
		if c.S3Bucket == "" {
			return errors.New("S3_BUCKET is required when STORAGE_DRIVER=s3")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.StorageDriver)
	}
	return nil
}
