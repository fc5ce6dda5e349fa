package helper

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	testDatabaseImage    = "postgres:17-alpine"
	testDatabaseName     = "database"
	testDatabaseUser     = "user"
	testDatabasePassword = "password"
)

// MustStartPostgresContainer starts a throwaway PostgreSQL container for tests.
// It returns the teardown function and the mapped host port.
func MustStartPostgresContainer() (func(ctx context.Context, opts ...testcontainers.TerminateOption) error, string, error) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(
		ctx,
		testDatabaseImage,
		postgres.WithDatabase(testDatabaseName),
		postgres.WithUsername(testDatabaseUser),
		postgres.WithPassword(testDatabasePassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, "", fmt.Errorf("error starting postgres container: %w", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, "", fmt.Errorf("error getting connection string: %w", err)
	}

	u, err := url.Parse(connStr)
	if err != nil {
		return nil, "", fmt.Errorf("error parsing connection string: %v", err)
	}

	return pgContainer.Terminate, u.Port(), nil
}

// SetTestDatabaseConfigEnvs points the DB_* environment at the test container.
func SetTestDatabaseConfigEnvs(t *testing.T, dbPort string) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_PORT", dbPort)
	t.Setenv("DB_DATABASE", testDatabaseName)
	t.Setenv("DB_USERNAME", testDatabaseUser)
	t.Setenv("DB_PASSWORD", testDatabasePassword)
	t.Setenv("DB_SCHEMA", "public")
	t.Setenv("DB_SSLMODE", "disable")
}

// NewTestDatabase connects to the test container and aborts the test binary on failure.
func NewTestDatabase(config *DatabaseConfiguration) *Database {
	logger := NewLogger(os.Stdout, slog.LevelWarn)

	db, err := NewDatabase("test_db", config, logger)
	if err != nil {
		log.Fatalf("error connecting to test database: %v", err)
	}
	return db
}
