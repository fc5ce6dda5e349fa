package helper

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// DatabaseConfiguration holds the PostgreSQL connection and pool settings.
// URL, when set, takes precedence over the discrete connection fields.
type DatabaseConfiguration struct {
	URL             string        `env:"DATABASE_URL"`
	Host            string        `env:"DB_HOST" envDefault:"localhost"`
	Port            string        `env:"DB_PORT" envDefault:"5432"`
	Database        string        `env:"DB_DATABASE" envDefault:"directory"`
	Username        string        `env:"DB_USERNAME" envDefault:"postgres"`
	Password        string        `env:"DB_PASSWORD"`
	Schema          string        `env:"DB_SCHEMA" envDefault:"public"`
	SSLMode         string        `env:"DB_SSLMODE" envDefault:"disable"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"30"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"1h"`
	ConnectTimeout  time.Duration `env:"DB_CONNECT_TIMEOUT" envDefault:"10s"`
}

// NewDatabaseConfiguration reads the database configuration from the environment.
// A .env file in the working directory is loaded first if present.
func NewDatabaseConfiguration() (*DatabaseConfiguration, error) {
	LoadEnvFiles()

	config := &DatabaseConfiguration{}
	if err := env.Parse(config); err != nil {
		return nil, NewError("parse database environment", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadEnvFiles loads the given .env files (or ".env" when none are given).
// Missing files are ignored and variables already set are not overwritten.
func LoadEnvFiles(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

// Validate checks that the configuration can produce a usable DSN and pool.
func (c *DatabaseConfiguration) Validate() error {
	if c.URL == "" {
		if c.Host == "" {
			return NewError("database configuration", fmt.Errorf("host is required"))
		}
		if c.Database == "" {
			return NewError("database configuration", fmt.Errorf("database name is required"))
		}
	}
	if c.MaxOpenConns < 1 {
		return NewError("database configuration", fmt.Errorf("max open connections must be at least 1, got %d", c.MaxOpenConns))
	}
	if c.MaxIdleConns < 0 || c.MaxIdleConns > c.MaxOpenConns {
		return NewError("database configuration", fmt.Errorf("max idle connections must be between 0 and %d, got %d", c.MaxOpenConns, c.MaxIdleConns))
	}
	return nil
}

// DSN returns the lib/pq connection string.
func (c *DatabaseConfiguration) DSN() string {
	if c.URL != "" {
		return c.URL
	}

	query := url.Values{}
	query.Set("sslmode", c.SSLMode)
	if c.Schema != "" {
		query.Set("search_path", c.Schema)
	}
	if c.ConnectTimeout > 0 {
		query.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.Database,
		RawQuery: query.Encode(),
	}
	return u.String()
}

// Database bundles the connection pool with its logger.
type Database struct {
	Name     string
	Instance *sql.DB
	Logger   *slog.Logger
}

// NewDatabase opens a pooled connection and verifies it with a ping.
func NewDatabase(name string, config *DatabaseConfiguration, logger *slog.Logger) (*Database, error) {
	if config == nil {
		return nil, NewError("database configuration validation", fmt.Errorf("database configuration is nil"))
	}
	if logger == nil {
		logger = slog.Default()
	}

	instance, err := sql.Open("postgres", config.DSN())
	if err != nil {
		return nil, NewError("open database", err)
	}

	instance.SetMaxOpenConns(config.MaxOpenConns)
	instance.SetMaxIdleConns(config.MaxIdleConns)
	instance.SetConnMaxLifetime(config.ConnMaxLifetime)

	timeout := config.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := instance.PingContext(ctx); err != nil {
		_ = instance.Close()
		return nil, NewError("ping database", err)
	}

	logger.Info("Connected to database", slog.String("name", name), slog.String("host", config.Host), slog.String("database", config.Database))

	return &Database{
		Name:     name,
		Instance: instance,
		Logger:   logger,
	}, nil
}

// Health runs a trivial query against the pool.
func (d *Database) Health(ctx context.Context) error {
	var one int
	if err := d.Instance.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
		return NewError("health query", err)
	}
	return nil
}

// Close closes the connection pool.
func (d *Database) Close() error {
	if d == nil || d.Instance == nil {
		return nil
	}
	return d.Instance.Close()
}
