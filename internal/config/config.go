// Package config reads the lobby service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/jason-s-yu/wsglobby/internal/lobby"
	"github.com/sirupsen/logrus"
)

// Config is the full service configuration. Postgres and Redis are optional;
// without them the service cleans up nothing and provisions in memory.
type Config struct {
	Enabled       bool          `env:"LOBBY_ENABLED"        envDefault:"true"`
	MaxLobbies    int           `env:"LOBBY_MAX_LOBBIES"    envDefault:"10"`
	TimeoutSec    int           `env:"LOBBY_TIMEOUT_SEC"    envDefault:"3600"`
	MinPlayers    int           `env:"LOBBY_MIN_PLAYERS"    envDefault:"2"`
	MaxPlayers    int           `env:"LOBBY_MAX_PLAYERS"    envDefault:"20"`
	SweepInterval time.Duration `env:"LOBBY_SWEEP_INTERVAL" envDefault:"30s"`
	Port          int           `env:"LOBBY_SERVICE_PORT"   envDefault:"8080"`
	LogLevel      string        `env:"LOBBY_LOG_LEVEL"      envDefault:"info"`

	DatabaseURL string `env:"DATABASE_URL"`
	RedisAddr   string `env:"REDIS_ADDR"`
	RedisDB     int    `env:"REDIS_DB"`
	QueueName   string `env:"INSTANCE_QUEUE_NAME" envDefault:"lobby_instances"`

	// TokensEnabled makes create and join hand out signed lobby tokens, and
	// start require one. When false, start trusts a requester in the body.
	TokensEnabled bool `env:"LOBBY_TOKENS" envDefault:"true"`
	// TokenPrivateKey and TokenPublicKey are paths to a raw ed25519 key pair.
	// When set, tokens stay valid across restarts and replicas; otherwise a
	// fresh pair is generated at startup.
	TokenPrivateKey string `env:"LOBBY_TOKEN_PRIVATE_KEY"`
	TokenPublicKey  string `env:"LOBBY_TOKEN_PUBLIC_KEY"`
	// ServiceToken is the shared secret the character import process presents
	// to record accounts. Empty refuses every account assignment.
	ServiceToken string `env:"LOBBY_SERVICE_TOKEN"`
	// TokenExpireTime is a Go duration, or "never"/"0"/"" for tokens without exp.
	TokenExpireTime string `env:"TOKEN_EXPIRE_TIME"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the registry cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.MinPlayers < 1 {
		errs = append(errs, fmt.Errorf("LOBBY_MIN_PLAYERS must be at least 1, got %d", c.MinPlayers))
	}
	if c.MaxPlayers < c.MinPlayers {
		errs = append(errs, fmt.Errorf("LOBBY_MAX_PLAYERS (%d) must not be below LOBBY_MIN_PLAYERS (%d)", c.MaxPlayers, c.MinPlayers))
	}
	if c.MaxLobbies < 1 {
		errs = append(errs, fmt.Errorf("LOBBY_MAX_LOBBIES must be at least 1, got %d", c.MaxLobbies))
	}
	if c.TimeoutSec <= 0 {
		errs = append(errs, fmt.Errorf("LOBBY_TIMEOUT_SEC must be positive, got %d", c.TimeoutSec))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("LOBBY_SWEEP_INTERVAL must be positive, got %s", c.SweepInterval))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("LOBBY_LOG_LEVEL: %w", err))
	}
	if _, err := c.TokenTTL(); err != nil {
		errs = append(errs, err)
	}
	if (c.TokenPrivateKey == "") != (c.TokenPublicKey == "") {
		errs = append(errs, errors.New("LOBBY_TOKEN_PRIVATE_KEY and LOBBY_TOKEN_PUBLIC_KEY must be set together"))
	}
	return errors.Join(errs...)
}

// LobbySettings converts the config into registry limits.
func (c Config) LobbySettings() lobby.Settings {
	return lobby.Settings{
		Enabled:    c.Enabled,
		MaxLobbies: c.MaxLobbies,
		Timeout:    time.Duration(c.TimeoutSec) * time.Second,
		MinPlayers: c.MinPlayers,
		MaxPlayers: c.MaxPlayers,
	}
}

// Level returns the parsed log level, falling back to info.
func (c Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// TokenTTL returns the lobby token lifetime; zero means tokens never expire.
func (c Config) TokenTTL() (time.Duration, error) {
	switch c.TokenExpireTime {
	case "", "0", "never":
		return 0, nil
	}
	d, err := time.ParseDuration(c.TokenExpireTime)
	if err != nil {
		return 0, fmt.Errorf("TOKEN_EXPIRE_TIME: %w", err)
	}
	return d, nil
}

// HasTokenKeys reports whether a persistent token key pair is configured.
func (c Config) HasTokenKeys() bool {
	return c.TokenPrivateKey != "" && c.TokenPublicKey != ""
}

// Addr is the HTTP listen address.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
