// Package config loads seaprocure configuration from a YAML file and the
// environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds configuration for the API server and the portal CLI.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Client  ClientConfig  `yaml:"client"`
	Log     LogConfig     `yaml:"log"`
}

type ServerConfig struct {
	Addr       string        `yaml:"addr"`
	DBPath     string        `yaml:"db"`
	JWTSecret  string        `yaml:"jwt_secret"`
	AccessTTL  time.Duration `yaml:"access_ttl"`
	RefreshTTL time.Duration `yaml:"refresh_ttl"`
	// Seed creates demo users, roles and RFQ-1001 on an empty database.
	Seed bool `yaml:"seed"`
	// Maintenance is the cron schedule for session purging.
	Maintenance string `yaml:"maintenance"`
	// SeedPassword replaces the built-in demo password for seeded users.
	SeedPassword string `yaml:"seed_password"`
}

type StorageConfig struct {
	// Driver is "disk" or "s3".
	Driver          string `yaml:"driver"`
	Dir             string `yaml:"dir"`
	Bucket          string `yaml:"bucket"`
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type ClientConfig struct {
	BaseURL      string        `yaml:"base_url"`
	Portal       string        `yaml:"portal"`
	TokenFile    string        `yaml:"token_file"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Timeout      time.Duration `yaml:"timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		Server: ServerConfig{
			Addr:        ":9000",
			DBPath:      "seaprocure.db",
			AccessTTL:   15 * time.Minute,
			RefreshTTL:  15 * 24 * time.Hour,
			Maintenance: "@every 1h",
		},
		Storage: StorageConfig{
			Driver: "disk",
			Dir:    "uploads",
			Region: "auto",
		},
		Client: ClientConfig{
			BaseURL:      "http://localhost:9000",
			Portal:       "vendor",
			TokenFile:    filepath.Join(home, ".seaprocure", "tokens.yaml"),
			PollInterval: 10 * time.Second,
			Timeout:      30 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads configuration. An empty path skips the file. A .env file is
// loaded if present, then environment variables override file values.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Load .env file if present (ignore errors - file may not exist in production)
	_ = godotenv.Load()
	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Addr = getEnv("SEAPROCURE_ADDR", cfg.Server.Addr)
	cfg.Server.DBPath = getEnv("SEAPROCURE_DB", cfg.Server.DBPath)
	cfg.Server.JWTSecret = getEnv("SEAPROCURE_JWT_SECRET", cfg.Server.JWTSecret)
	cfg.Server.AccessTTL = getEnvDuration("SEAPROCURE_ACCESS_TTL", cfg.Server.AccessTTL)
	cfg.Server.RefreshTTL = getEnvDuration("SEAPROCURE_REFRESH_TTL", cfg.Server.RefreshTTL)
	cfg.Server.Seed = getEnvBool("SEAPROCURE_SEED", cfg.Server.Seed)
	cfg.Server.Maintenance = getEnv("SEAPROCURE_MAINTENANCE", cfg.Server.Maintenance)
	cfg.Server.SeedPassword = getEnv("SEAPROCURE_SEED_PASSWORD", cfg.Server.SeedPassword)

	cfg.Storage.Driver = getEnv("SEAPROCURE_STORAGE_DRIVER", cfg.Storage.Driver)
	cfg.Storage.Dir = getEnv("SEAPROCURE_STORAGE_DIR", cfg.Storage.Dir)
	cfg.Storage.Bucket = getEnv("SEAPROCURE_S3_BUCKET", cfg.Storage.Bucket)
	cfg.Storage.Endpoint = getEnv("SEAPROCURE_S3_ENDPOINT", cfg.Storage.Endpoint)
	cfg.Storage.Region = getEnv("SEAPROCURE_S3_REGION", cfg.Storage.Region)
	cfg.Storage.AccessKeyID = getEnv("SEAPROCURE_S3_ACCESS_KEY_ID", cfg.Storage.AccessKeyID)
	cfg.Storage.SecretAccessKey = getEnv("SEAPROCURE_S3_SECRET_ACCESS_KEY", cfg.Storage.SecretAccessKey)

	cfg.Client.BaseURL = getEnv("SEAPROCURE_URL", cfg.Client.BaseURL)
	cfg.Client.Portal = getEnv("SEAPROCURE_PORTAL", cfg.Client.Portal)
	cfg.Client.TokenFile = getEnv("SEAPROCURE_TOKEN_FILE", cfg.Client.TokenFile)
	cfg.Client.PollInterval = getEnvDuration("SEAPROCURE_POLL_INTERVAL", cfg.Client.PollInterval)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)
}

// Validate rejects configurations the binaries cannot run with.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case "disk", "s3":
	default:
		return fmt.Errorf("storage.driver must be disk or s3, got %q", c.Storage.Driver)
	}
	if c.Storage.Driver == "s3" && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required for the s3 driver")
	}
	switch c.Client.Portal {
	case "vendor", "customer", "tech":
	default:
		return fmt.Errorf("client.portal must be vendor, customer or tech, got %q", c.Client.Portal)
	}
	if c.Client.PollInterval <= 0 {
		return fmt.Errorf("client.poll_interval must be positive")
	}
	if c.Server.AccessTTL <= 0 || c.Server.RefreshTTL <= 0 {
		return fmt.Errorf("server token TTLs must be positive")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
