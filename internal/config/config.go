package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config is the server configuration, read from the environment
// (after .env has been loaded).
type Config struct {
	Port           string `env:"PORT" envDefault:"5175"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	DBPath         string `env:"DB_PATH" envDefault:"./data/pebbles.db"`
	JWTSecret      string `env:"JWT_SECRET" envDefault:"dev_secret_change_me"`
	JWTExpiresDays int    `env:"JWT_EXPIRES_DAYS" envDefault:"14"`
	CookieName     string `env:"COOKIE_NAME" envDefault:"pebbles_token"`
	ClientOrigin   string `env:"CLIENT_ORIGIN" envDefault:"http://localhost:5173"`
	DailySalt      string `env:"DAILY_SALT" envDefault:"local_dev_salt"`
	Environment    string `env:"NODE_ENV" envDefault:"development"`
}

// Production reports whether cookies must be Secure / SameSite=None.
func (c Config) Production() bool { return c.Environment == "production" }

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Defaults returns a Config with every default applied and no environment
// lookups; handy for tests.
func Defaults() Config {
	var cfg Config
	// Parsing an empty environment only fills envDefault values.
	_ = env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{}})
	return cfg
}
