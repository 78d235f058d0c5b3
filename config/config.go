// Package config loads settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	ErrInvalidTokenTTL = errors.New("TOKEN_TTL must be positive")
	ErrMissingAuthURL  = errors.New("AUTH_URL is required")
)

// Server configures the auth server.
type Server struct {
	HTTPAddr         string        `env:"HTTP_ADDR" envDefault:":9000"`
	RedisURL         string        `env:"REDIS_URL"`
	MongoURL         string        `env:"MONGODB_URL"`
	MongoDatabase    string        `env:"MONGODB_DATABASE" envDefault:"onchainsurveys"`
	JWTKeyFile       string        `env:"JWT_PRIVATE_KEY_FILE"`
	TokenTTL         time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
	EventsTopic      string        `env:"EVENTS_TOPIC" envDefault:"onchainsurveys.auth"`
	RequireSignature bool          `env:"REQUIRE_SIGNATURE" envDefault:"false"`
}

// Client configures the wallet-side session client.
type Client struct {
	AuthURL        string        `env:"AUTH_URL" envDefault:"http://localhost:9000"`
	SessionFile    string        `env:"SESSION_FILE" envDefault:"~/.onchainsurveys/session.json"`
	KeyFile        string        `env:"WALLET_KEY_FILE" envDefault:"~/.onchainsurveys/wallet.key"`
	SignTimeout    time.Duration `env:"SIGN_TIMEOUT" envDefault:"2m"`
	GatewayTimeout time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"30s"`
}

// Config is the full application configuration.
type Config struct {
	Server Server
	Client Client

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads the given .env files (".env" when none are named), then the environment.
// Missing .env files are ignored; real environment variables win.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	var err error
	if cfg.Client.SessionFile, err = ExpandHome(cfg.Client.SessionFile); err != nil {
		return nil, err
	}
	if cfg.Client.KeyFile, err = ExpandHome(cfg.Client.KeyFile); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks invariants env tags cannot express.
func (c *Config) Validate() error {
	if c.Server.TokenTTL <= 0 {
		return ErrInvalidTokenTTL
	}
	if strings.TrimSpace(c.Client.AuthURL) == "" {
		return ErrMissingAuthURL
	}
	return nil
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
