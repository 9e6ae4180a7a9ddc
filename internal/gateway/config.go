package gateway

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/memeroyale/realtime/internal/session"
)

// Config holds the gateway configuration. NATSURL set to "memory"
// (or empty) selects the in-process backplane and store, which only
// works for a single server instance.
type Config struct {
	Port           string         `yaml:"port"`
	NATSURL        string         `yaml:"nats_url"`
	TimerBucket    string         `yaml:"timer_bucket"`
	AllowAnonymous bool           `yaml:"allow_anonymous"`
	AllowedOrigins []string       `yaml:"allowed_origins"`
	Session        session.Config `yaml:"session"`
}

// DefaultConfig returns the default gateway configuration.
func DefaultConfig() Config {
	return Config{
		Port:           "8080",
		NATSURL:        "nats://localhost:4222",
		TimerBucket:    "room_timers",
		AllowAnonymous: true,
		Session:        session.DefaultConfig(),
	}
}

// LoadConfig reads a yaml config file over the defaults.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}
