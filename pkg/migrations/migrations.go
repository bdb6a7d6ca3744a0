// Package migrations applies the SQL schema migrations and the river queue
// schema.
package migrations

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pressly/goose/v3"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MigrateStore runs the goose migrations from migrationFolder against the
// store database, then brings the river schema up to date. dbType is the
// configured database type (pgsql or sqlite).
func MigrateStore(db *gorm.DB, migrationFolder string, dbType string, pool *pgxpool.Pool) error {
	goose.SetLogger(&gooseLogger{log: zap.S().Named("migrations")})

	fi, err := os.Stat(migrationFolder)
	if err != nil {
		return fmt.Errorf("opening migration folder: %w", err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("migration folder %s is not a directory", migrationFolder)
	}
	goose.SetBaseFS(os.DirFS(migrationFolder))

	if err := goose.SetDialect(gooseDialect(dbType)); err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if err := goose.Up(sqlDB, "."); err != nil {
		return fmt.Errorf("running schema migrations: %w", err)
	}

	// The river schema only exists on postgres deployments.
	if pool == nil {
		return nil
	}
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("river migrations: %w", err)
	}
	if _, err := migrator.Migrate(context.Background(), rivermigrate.DirectionUp, nil); err != nil {
		return fmt.Errorf("river migrations: %w", err)
	}

	return nil
}

func gooseDialect(dbType string) string {
	if dbType == "sqlite" {
		return "sqlite3"
	}
	return "postgres"
}

// gooseLogger routes goose output through zap.
type gooseLogger struct {
	log *zap.SugaredLogger
}

func (l *gooseLogger) Printf(format string, v ...interface{}) { l.log.Infof(format, v...) }
func (l *gooseLogger) Fatalf(format string, v ...interface{}) { l.log.Fatalf(format, v...) }
