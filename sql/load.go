package sql

import (
	"database/sql"
	"embed"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/pressly/goose/v3"
	"github.com/siherrmann/directory/helper"
)

//go:embed migrations/*.sql
var migrations embed.FS

//go:embed entities.sql
var entitiesSQL string

//go:embed relationships.sql
var relationshipsSQL string

// Function lists for verification
var EntitiesFunctions = []string{
	"insert_entity",
	"select_entity",
	"select_entity_by_name",
	"update_entity",
	"delete_entity",
}

var RelationshipsFunctions = []string{
	"lock_entity",
	"insert_relationship",
	"select_relationship",
	"update_relationship",
	"delete_relationship",
}

// Init runs all pending schema migrations (extensions, tables, indexes).
// Goose output goes to the database logger at debug level.
func Init(db *helper.Database) error {
	if db == nil || db.Instance == nil {
		return fmt.Errorf("database is nil")
	}

	logger := migrationLogger{log: db.Logger}.logger()

	goose.SetBaseFS(migrations)
	goose.SetLogger(migrationLogger{log: logger})

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("error setting migration dialect: %w", err)
	}

	before, err := goose.GetDBVersion(db.Instance)
	if err != nil {
		return fmt.Errorf("error reading schema version: %w", err)
	}

	available, err := goose.CollectMigrations("migrations", 0, goose.MaxVersion)
	if err != nil {
		return fmt.Errorf("error collecting migrations: %w", err)
	}
	last, err := available.Last()
	if err != nil {
		return fmt.Errorf("error collecting migrations: %w", err)
	}
	if before >= last.Version {
		logger.Debug("Database schema is up to date", slog.Int64("version", before))
		return nil
	}

	if err := goose.Up(db.Instance, "migrations"); err != nil {
		return fmt.Errorf("error running migrations: %w", err)
	}

	after, err := goose.GetDBVersion(db.Instance)
	if err != nil {
		return fmt.Errorf("error reading schema version: %w", err)
	}
	if after != before {
		logger.Info("Migrated database schema", slog.Int64("from", before), slog.Int64("to", after))
	}

	return nil
}

// migrationLogger adapts goose's printf logger to slog.
type migrationLogger struct {
	log *slog.Logger
}

func (l migrationLogger) logger() *slog.Logger {
	if l.log == nil {
		return slog.Default()
	}
	return l.log
}

func (l migrationLogger) Printf(format string, v ...interface{}) {
	l.logger().Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l migrationLogger) Fatalf(format string, v ...interface{}) {
	l.logger().Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
	os.Exit(1)
}

// MigrationVersion returns the current schema version.
func MigrationVersion(db *sql.DB) (int64, error) {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return 0, fmt.Errorf("error setting migration dialect: %w", err)
	}

	return goose.GetDBVersion(db)
}

// LoadEntitiesSql loads entity-related SQL functions
func LoadEntitiesSql(db *sql.DB, force bool) error {
	return loadSql(db, "entities", entitiesSQL, EntitiesFunctions, force)
}

// LoadRelationshipsSql loads relationship-related SQL functions
func LoadRelationshipsSql(db *sql.DB, force bool) error {
	return loadSql(db, "relationships", relationshipsSQL, RelationshipsFunctions, force)
}

// LoadAllSql loads all SQL functions
func LoadAllSql(db *sql.DB, force bool) error {
	if err := LoadEntitiesSql(db, force); err != nil {
		return err
	}

	if err := LoadRelationshipsSql(db, force); err != nil {
		return err
	}

	return nil
}

func loadSql(db *sql.DB, name string, script string, functions []string, force bool) error {
	if !force {
		exist, err := checkFunctions(db, functions)
		if err != nil {
			return fmt.Errorf("error checking existing %s functions: %w", name, err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(script)
	if err != nil {
		return fmt.Errorf("error executing %s SQL: %w", name, err)
	}

	exist, err := checkFunctions(db, functions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required SQL functions were created")
	}

	log.Printf("SQL %s functions loaded successfully", name)
	return nil
}

// checkFunctions verifies that all required functions exist in the database
func checkFunctions(db *sql.DB, sqlFunctions []string) (bool, error) {
	var allExist bool
	for _, f := range sqlFunctions {
		err := db.QueryRow(
			`SELECT EXISTS(SELECT 1 FROM pg_proc WHERE proname = $1);`,
			f,
		).Scan(&allExist)
		if err != nil {
			return false, fmt.Errorf("error checking existence of function %s: %w", f, err)
		}
		if !allExist {
			log.Printf("Function %s does not exist", f)
			break
		}
	}
	return allExist, nil
}
