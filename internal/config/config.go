package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete verification server configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Database DatabaseConfig `yaml:"database" envconfig:"DATABASE"`
	Security SecurityConfig `yaml:"security" envconfig:"SECURITY"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// DatabaseConfig contains the Postgres connection settings
type DatabaseConfig struct {
	DSN      string `yaml:"dsn" envconfig:"DSN"`
	MaxConns int    `yaml:"max_conns" envconfig:"MAX_CONNS" default:"10"`
}

// SecurityConfig contains the pre-shared verification secrets and rate limit knobs.
// VerificationSecret and ExpectedClientDigest are distributed out of band and must
// never be compiled into the server binary.
type SecurityConfig struct {
	VerificationSecret   string        `yaml:"verification_secret" envconfig:"VERIFICATION_SECRET"`
	ExpectedClientDigest string        `yaml:"expected_client_digest" envconfig:"EXPECTED_CLIENT_DIGEST"`
	RateLimitWindow      time.Duration `yaml:"rate_limit_window" envconfig:"RATE_LIMIT_WINDOW" default:"60s"`
	RateLimitMax         int           `yaml:"rate_limit_max" envconfig:"RATE_LIMIT_MAX" default:"30"`
	RateLimitRetention   time.Duration `yaml:"rate_limit_retention" envconfig:"RATE_LIMIT_RETENTION" default:"5m"`
	GlobalRPS            float64       `yaml:"global_rps" envconfig:"GLOBAL_RPS" default:"100"`
	GlobalBurst          int           `yaml:"global_burst" envconfig:"GLOBAL_BURST" default:"50"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"stdout"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/server.log"`
}

// Load loads the server configuration from environment variables and an
// optional YAML file. Environment variables take precedence.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("LICENSING", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if path := configFilePath(); path != "" {
		fileCfg, err := loadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = merge(*fileCfg, cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// merge overlays env config on top of file config (env wins)
func merge(fileCfg, envCfg Config) Config {
	if envCfg.Server.Port == 0 {
		envCfg.Server.Port = fileCfg.Server.Port
	}
	if envCfg.Server.ReadTimeout == 0 {
		envCfg.Server.ReadTimeout = fileCfg.Server.ReadTimeout
	}
	if envCfg.Server.WriteTimeout == 0 {
		envCfg.Server.WriteTimeout = fileCfg.Server.WriteTimeout
	}
	if envCfg.Database.DSN == "" {
		envCfg.Database.DSN = fileCfg.Database.DSN
	}
	if envCfg.Security.VerificationSecret == "" {
		envCfg.Security.VerificationSecret = fileCfg.Security.VerificationSecret
	}
	if envCfg.Security.ExpectedClientDigest == "" {
		envCfg.Security.ExpectedClientDigest = fileCfg.Security.ExpectedClientDigest
	}
	return envCfg
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN is required")
	}
	if c.Security.VerificationSecret == "" {
		return fmt.Errorf("verification secret is required")
	}
	if c.Security.ExpectedClientDigest == "" {
		return fmt.Errorf("expected client digest is required")
	}
	if c.Security.RateLimitMax <= 0 {
		return fmt.Errorf("rate limit max must be positive")
	}
	if c.Security.RateLimitWindow <= 0 {
		return fmt.Errorf("rate limit window must be positive")
	}
	return nil
}

// configFilePath returns the path to the config file, if one exists
func configFilePath() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns default configuration with placeholder secrets, suitable
// for tests only.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Security: SecurityConfig{
			RateLimitWindow:    60 * time.Second,
			RateLimitMax:       30,
			RateLimitRetention: 5 * time.Minute,
			GlobalRPS:          100,
			GlobalBurst:        50,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stdout",
		},
	}
}
