package directory

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/siherrmann/directory/helper"
)

// Config configures a Directory. It is passed explicitly to New.
type Config struct {
	Environment      string        `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"INFO"`
	APIVersion       string        `env:"API_VERSION" envDefault:"2.0.0"`
	OperationTimeout time.Duration `env:"OPERATION_TIMEOUT" envDefault:"10s"`
	// ForceReloadSQL recreates the SQL functions even if they already exist.
	ForceReloadSQL bool `env:"FORCE_RELOAD_SQL" envDefault:"false"`
	Database       helper.DatabaseConfiguration
}

var logLevels = []string{"DEBUG", "INFO", "WARN", "WARNING", "ERROR"}

// NewConfig reads the configuration from the environment, after loading
// the given .env files (".env" when none are given).
func NewConfig(envFiles ...string) (*Config, error) {
	helper.LoadEnvFiles(envFiles...)

	config := &Config{}
	if err := env.Parse(config); err != nil {
		return nil, helper.NewError("parse environment", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns the configuration with every default applied,
// ignoring the process environment.
func DefaultConfig() *Config {
	config := &Config{}
	err := env.ParseWithOptions(config, env.Options{Environment: map[string]string{}})
	if err != nil {
		// Only reachable if a default above fails to parse.
		panic(err)
	}
	return config
}

// Validate checks the configuration before any connection is made.
func (c *Config) Validate() error {
	if c.OperationTimeout <= 0 {
		return helper.NewError("configuration", fmt.Errorf("operation timeout must be positive, got %s", c.OperationTimeout))
	}
	if c.APIVersion == "" {
		return helper.NewError("configuration", fmt.Errorf("api version is required"))
	}

	validLevel := false
	for _, l := range logLevels {
		if strings.EqualFold(c.LogLevel, l) {
			validLevel = true
			break
		}
	}
	if !validLevel {
		return helper.NewError("configuration", fmt.Errorf("log level must be one of %v, got %q", logLevels, c.LogLevel))
	}

	return c.Database.Validate()
}

// IsProduction reports whether the directory runs in production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Logger returns the logger for this configuration. Production writes
// plain JSON lines, every other environment the colored pretty format.
func (c *Config) Logger(out io.Writer) *slog.Logger {
	level := helper.ParseLogLevel(c.LogLevel)
	if c.IsProduction() {
		return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level}))
	}
	return helper.NewLogger(out, level)
}
