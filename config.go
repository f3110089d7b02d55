package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is the full server configuration. Values come from DefaultConfig,
// then an optional YAML file, then PONG_* environment variables, then flags.
type Config struct {
	Addr      string `yaml:"addr" env:"ADDR"`
	PublicURL string `yaml:"public_url" env:"PUBLIC_URL"`
	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT"`

	MaxConnsPerIP int `yaml:"max_conns_per_ip" env:"MAX_CONNS_PER_IP"`
	MaxConns      int `yaml:"max_conns" env:"MAX_CONNS"`

	Registry RegistryConfig `yaml:"registry" envPrefix:"REGISTRY_"`
	Game     GameConfig     `yaml:"game" envPrefix:"GAME_"`

	Auth struct {
		Secret      string        `yaml:"secret" env:"SECRET"`
		TokenExpiry time.Duration `yaml:"token_expiry" env:"TOKEN_EXPIRY"`
		Required    bool          `yaml:"required" env:"REQUIRED"`
	} `yaml:"auth" envPrefix:"AUTH_"`

	Database struct {
		Path string `yaml:"path" env:"PATH"`
	} `yaml:"database" envPrefix:"DB_"`

	Redis struct {
		Addr     string `yaml:"addr" env:"ADDR"`
		Password string `yaml:"password" env:"PASSWORD"`
		DB       int    `yaml:"db" env:"DB"`
		Channel  string `yaml:"channel" env:"CHANNEL"`
	} `yaml:"redis" envPrefix:"REDIS_"`

	OTelEndpoint string `yaml:"otel_endpoint" env:"OTEL_ENDPOINT"`
}

// DefaultConfig returns the configuration used when nothing overrides it
func DefaultConfig() Config {
	var c Config
	c.Addr = ":8080"
	c.LogLevel = "info"
	c.LogFormat = "text"
	c.MaxConnsPerIP = 5
	c.MaxConns = 1000
	c.Registry = DefaultRegistryConfig()
	c.Auth.TokenExpiry = defaultTokenExpiry
	c.Database.Path = "pong.db"
	c.Redis.Channel = "pong:outcomes"
	return c
}

// LoadConfig layers the YAML file at path (if any) and the environment over
// DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "PONG_"}); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot run with
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.Registry.MaxRooms <= 0 {
		errs = append(errs, errors.New("registry.max_rooms must be positive"))
	}
	if c.Registry.HeartbeatTimeout <= 0 {
		errs = append(errs, errors.New("registry.heartbeat_timeout must be positive"))
	}
	if _, err := ParseMode(string(c.Registry.DefaultMode)); err != nil {
		errs = append(errs, err)
	}
	if c.Auth.Required && c.Auth.Secret == "" {
		errs = append(errs, errors.New("auth.required needs auth.secret"))
	}
	if c.Game.Width > 0 && (c.Game.Height <= 0 || c.Game.ScoreToWin <= 0) {
		errs = append(errs, errors.New("game overrides need height and score_to_win"))
	}
	return errors.Join(errs...)
}
