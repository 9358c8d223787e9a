// Package config loads runtime settings from the environment, with an
// optional .env file in the working directory.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/rezonia/facturx/internal/logger"
	"github.com/rezonia/facturx/internal/tax"
)

// Config holds every setting of the CLI and the HTTP server
type Config struct {
	Server   ServerConfig
	Signing  SigningConfig
	Log      LogConfig
	Rounding string `env:"FACTURX_ROUNDING" envDefault:"line"`
	XSDDir   string `env:"FACTURX_XSD_DIR"`
	Debug    bool   `env:"FACTURX_DEBUG"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Address      string        `env:"FACTURX_ADDRESS" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"FACTURX_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout time.Duration `env:"FACTURX_WRITE_TIMEOUT" envDefault:"30s"`
}

// SigningConfig points at PEM files for XML signatures
type SigningConfig struct {
	CertFile   string `env:"FACTURX_SIGN_CERT"`
	KeyFile    string `env:"FACTURX_SIGN_KEY"`
	TrustRoots string `env:"FACTURX_TRUST_ROOTS"`
}

// Enabled reports whether a signing key pair is configured
func (s SigningConfig) Enabled() bool {
	return s.CertFile != "" && s.KeyFile != ""
}

// LogConfig mirrors logger.LogConfig with env bindings
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"console"`
	Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads the given .env files (".env" when none is named) and then the
// environment. Missing files are ignored; variables already set win.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that env tags cannot express
func (c *Config) Validate() error {
	if _, err := tax.ParseRoundingMode(c.Rounding); err != nil {
		return fmt.Errorf("FACTURX_ROUNDING: %w", err)
	}
	if (c.Signing.CertFile == "") != (c.Signing.KeyFile == "") {
		return errors.New("FACTURX_SIGN_CERT and FACTURX_SIGN_KEY must be set together")
	}
	return nil
}

// RoundingMode returns the parsed rounding mode, RoundLine when invalid
func (c *Config) RoundingMode() tax.RoundingMode {
	mode, err := tax.ParseRoundingMode(c.Rounding)
	if err != nil {
		return tax.RoundLine
	}
	return mode
}

// Logger converts the log settings for logger.Setup. Debug forces the
// debug level.
func (c *Config) Logger() logger.LogConfig {
	cfg := logger.DefaultConfig()
	cfg.Level = c.Log.Level
	cfg.Format = c.Log.Format
	cfg.Output = c.Log.Output
	if c.Debug {
		cfg.Level = "debug"
	}
	return cfg
}
