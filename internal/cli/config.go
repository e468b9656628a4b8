package cli

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/ragkb-chat/core/internal/core"
	"github.com/ragkb-chat/core/internal/model"
	logx "github.com/ragkb-chat/core/pkg/logger"
	pkgredis "github.com/ragkb-chat/core/pkg/redis"
)

// AppConfig defines all configurable parameters, sourced from environment
// variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// Infrastructure
	Redis pkgredis.Config

	Generation   model.GenerationConfig
	Conversation model.ConversationConfig
	Catalog      model.CatalogConfig
	Retriever    model.RetrieverConfig
	Filters      model.FilterConfig
	Presets      model.PresetStoreConfig
	Log          model.LogConfig
}

// LoadConfig loads envFile, when present, and binds the environment.
func LoadConfig(envFile string) (*AppConfig, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			logx.Debug().Err(err).Str("file", envFile).Msg("env file not loaded")
		}
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment config: %w", err)
	}
	return &cfg, nil
}

// Env parses the configured environment.
func (c *AppConfig) Env() core.Environment {
	return core.ParseEnvironment(c.Environment)
}

// ConversationTTL parses CONVERSATION_TTL.
func (c *AppConfig) ConversationTTL() (time.Duration, error) {
	ttl, err := time.ParseDuration(c.Conversation.TTL)
	if err != nil {
		return 0, fmt.Errorf("invalid CONVERSATION_TTL %q: %w", c.Conversation.TTL, err)
	}
	return ttl, nil
}

// InitLogger configures logx; quiet drops console output so it does not
// interleave with an interactive session.
func (c *AppConfig) InitLogger(quiet bool) {
	logx.Init(logx.LoggerOpts{
		Environment: c.Env(),
		File:        c.Log.File,
		MaxSizeMB:   c.Log.MaxSizeMB,
		MaxBackups:  c.Log.MaxBackups,
		Quiet:       quiet,
	})
}
