package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AgentConfig represents the panel-agent configuration. The verification
// secret mirrors the server's and is baked into trusted distributions; the
// API URL may still be overridden per call by the local override file.
type AgentConfig struct {
	Port               int           `envconfig:"PORT" default:"8090"`
	APIURL             string        `envconfig:"API_URL" default:"https://api.lennox-rose.com/v1/blueprint/safetyblur/verify"`
	OverridePath       string        `envconfig:"OVERRIDE_PATH" default:"private/license.json"`
	Product            string        `envconfig:"PRODUCT" default:"safetyblur"`
	VerificationSecret string        `envconfig:"VERIFICATION_SECRET"`
	Domain             string        `envconfig:"DOMAIN"`
	OwnerName          string        `envconfig:"OWNER_NAME" default:"Unknown"`
	PanelVersion       string        `envconfig:"PANEL_VERSION" default:"Unknown"`
	StatePath          string        `envconfig:"STATE_PATH" default:"private/settings.json"`
	HeartbeatInterval  time.Duration `envconfig:"HEARTBEAT_INTERVAL" default:"5m"`
	VerifyCooldown     time.Duration `envconfig:"VERIFY_COOLDOWN" default:"5s"`
	Logging            LoggingConfig `envconfig:"LOGGING"`
}

// LoadAgent loads the panel-agent configuration from environment variables.
func LoadAgent() (*AgentConfig, error) {
	var cfg AgentConfig

	if err := envconfig.Process("SAFETYBLUR", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load agent config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("agent config validation failed: %w", err)
	}

	return &cfg, nil
}

func (c *AgentConfig) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid agent port: %d", c.Port)
	}
	if c.APIURL == "" {
		return fmt.Errorf("api url is required")
	}
	if c.VerificationSecret == "" {
		return fmt.Errorf("verification secret is required")
	}
	if c.Domain == "" {
		return fmt.Errorf("domain is required")
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat interval must be positive")
	}
	return nil
}
