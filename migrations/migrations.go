package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed *.sql
var FS embed.FS

const migrationsTable = "gallery_schema_migrations"

// Up applies every pending migration. An already up-to-date schema is
// not an error.
func Up(dsn string) error {
	return run(dsn, func(m *migrate.Migrate) error { return m.Up() })
}

// Down rolls the whole schema back.
func Down(dsn string) error {
	return run(dsn, func(m *migrate.Migrate) error { return m.Down() })
}

func run(dsn string, step func(*migrate.Migrate) error) error {
	src, err := iofs.New(FS, ".")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("open db for migration: %w", err)
	}
	driver, err := mysql.WithInstance(db, &mysql.Config{MigrationsTable: migrationsTable})
	if err != nil {
		return fmt.Errorf("mysql migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "mysql", driver)
	if err != nil {
		return fmt.Errorf("build migrator: %w", err)
	}
	if err := step(m); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
