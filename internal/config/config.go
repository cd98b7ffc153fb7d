package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is the process configuration, read from WAKEHUB_* environment
// variables after an optional .env file is loaded.
type Config struct {
	Addr   string `envconfig:"ADDR" default:":8080"`
	DBPath string `envconfig:"DB_PATH" default:"wakehub.db"`

	// APIKey guards the whole API surface. AdminKey (or its bcrypt hash)
	// additionally gates destructive and config-mutation endpoints; when
	// neither is set the API key suffices there too.
	APIKey       string `envconfig:"API_KEY" required:"true"`
	AdminKey     string `envconfig:"ADMIN_KEY"`
	AdminKeyHash string `envconfig:"ADMIN_KEY_HASH"`

	// WebhookURL is the target of the built-in webhook action.
	WebhookURL string `envconfig:"WEBHOOK_URL"`

	// RateLimit is the global fixed-window per-IP request budget per minute.
	RateLimit int `envconfig:"RATE_LIMIT" default:"100"`

	// ReplayNotifyMinutes is the notification synthesized ahead of replayed
	// task events when the gap permits.
	ReplayNotifyMinutes int `envconfig:"REPLAY_NOTIFY_MINUTES" default:"10"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

func Load() (Config, error) {
	// .env is a developer convenience; absence is fine.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("wakehub", &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
