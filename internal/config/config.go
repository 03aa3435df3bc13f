// Package config loads server settings from the environment.
//
// A `.env` file in the working directory is read first (development only;
// a missing file is not an error), then variables are parsed into Config.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds every tunable of the server.
type Config struct {
	Port           string        `env:"PORT" envDefault:"5175"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty      bool          `env:"LOG_PRETTY" envDefault:"false"`
	DBPath         string        `env:"DB_PATH" envDefault:"./data/app.db"`
	ClientOrigin   string        `env:"CLIENT_ORIGIN" envDefault:"http://localhost:5173"`
	Environment    string        `env:"NODE_ENV" envDefault:"development"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`

	JWTSecret      string `env:"JWT_SECRET" envDefault:"dev_secret_change_me"`
	JWTExpiresDays int    `env:"JWT_EXPIRES_DAYS" envDefault:"14"`
	CookieName     string `env:"COOKIE_NAME" envDefault:"snl_token"`

	DailySalt string `env:"DAILY_SALT" envDefault:"local_dev_salt"`
}

// Load reads `.env` (if present) and parses the environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return Parse()
}

// Parse reads the current environment only.
func Parse() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return Config{}, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if c.JWTExpiresDays <= 0 {
		return Config{}, fmt.Errorf("JWT_EXPIRES_DAYS must be positive, got %d", c.JWTExpiresDays)
	}
	return c, nil
}

// Production reports whether cookies must be Secure / SameSite=None.
func (c Config) Production() bool { return c.Environment == "production" }

// Level returns the parsed log level.
func (c Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}
