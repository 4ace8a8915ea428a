package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

type Config struct {
	Port                   int    `env:"PORT" envDefault:"8080"`
	DatabaseURL            string `env:"DATABASE_URL,required"`
	RedisURL               string `env:"REDIS_URL,required"`
	ShareBaseURL           string `env:"SHARE_BASE_URL" envDefault:"https://app.havenmind.io/join"`
	InviteTTLHours         int    `env:"INVITE_TTL_HOURS" envDefault:"24"`
	DefaultMaxParticipants int    `env:"DEFAULT_MAX_PARTICIPANTS" envDefault:"8"`
	// MinReadyParticipants of 0 means every current member must be ready
	// before a group session can start.
	MinReadyParticipants int    `env:"MIN_READY_PARTICIPANTS" envDefault:"0"`
	FreeTierMessageLimit int    `env:"FREE_TIER_MESSAGE_LIMIT" envDefault:"25"`
	OpenAIAPIKey         string `env:"OPENAI_API_KEY"`
	OpenAIModel          string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	StripeWebhookSecret  string `env:"STRIPE_WEBHOOK_SECRET"`
	LogLevel             string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) InviteTTL() time.Duration {
	return time.Duration(c.InviteTTLHours) * time.Hour
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate(isProduction bool) error {
	if c.DefaultMaxParticipants < 2 {
		return fmt.Errorf("DEFAULT_MAX_PARTICIPANTS must be at least 2")
	}
	if c.MinReadyParticipants < 0 {
		return fmt.Errorf("MIN_READY_PARTICIPANTS must not be negative")
	}
	if c.InviteTTLHours <= 0 {
		return fmt.Errorf("INVITE_TTL_HOURS must be positive")
	}

	if isProduction {
		if c.StripeWebhookSecret == "" {
			log.Warn().Msg("STRIPE_WEBHOOK_SECRET is empty in production: webhook signature verification disabled")
		} else if err := validateSecret("STRIPE_WEBHOOK_SECRET", c.StripeWebhookSecret); err != nil {
			return err
		}
		if c.OpenAIAPIKey == "" {
			log.Warn().Msg("OPENAI_API_KEY is empty in production: opening messages will use the static fallback")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
	}

	return nil
}

func validateSecret(name, value string) error {
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
