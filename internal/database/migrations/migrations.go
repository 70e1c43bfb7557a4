package migrations

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	"kanzey-ticketing/internal/logger"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

type MigrateOptions struct {
	// MigrationsDir holds the numbered *.up.sql / *.down.sql files.
	MigrationsDir string
}

// Runner applies the schema migrations. It owns db: Close closes it.
type Runner struct {
	db       *sql.DB
	options  MigrateOptions
	log      *logger.Logger
	migrator *migrate.Migrate
}

func NewRunner(db *sql.DB, opts MigrateOptions, log *logger.Logger) *Runner {
	return &Runner{
		db:      db,
		options: opts,
		log:     log,
	}
}

func (r *Runner) Initialize() error {
	if r.migrator != nil {
		return nil
	}
	if _, err := os.Stat(r.options.MigrationsDir); os.IsNotExist(err) {
		return fmt.Errorf("migrations directory does not exist: %s", r.options.MigrationsDir)
	}

	driver, err := postgres.WithInstance(r.db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres migration driver: %w", err)
	}
	migrator, err := migrate.NewWithDatabaseInstance("file://"+r.options.MigrationsDir, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	r.migrator = migrator
	return nil
}

// MigrateUp applies every pending migration. A dirty schema is reported, not forced.
func (r *Runner) MigrateUp() error {
	if err := r.Initialize(); err != nil {
		return err
	}
	if _, dirty, err := r.migrator.Version(); err == nil && dirty {
		return errors.New("schema is dirty, fix it and run force before migrating")
	}
	if err := r.migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	r.logVersion()
	return nil
}

// MigrateDown rolls back n migrations, or all of them when n <= 0.
func (r *Runner) MigrateDown(n int) error {
	if err := r.Initialize(); err != nil {
		return err
	}
	var err error
	if n > 0 {
		err = r.migrator.Steps(-n)
	} else {
		err = r.migrator.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}
	r.logVersion()
	return nil
}

func (r *Runner) MigrateTo(version uint) error {
	if err := r.Initialize(); err != nil {
		return err
	}
	if err := r.migrator.Migrate(version); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration to version %d failed: %w", version, err)
	}
	r.logVersion()
	return nil
}

// Force sets the recorded version without running anything, clearing the dirty flag.
func (r *Runner) Force(version int) error {
	if err := r.Initialize(); err != nil {
		return err
	}
	if err := r.migrator.Force(version); err != nil {
		return fmt.Errorf("force version %d failed: %w", version, err)
	}
	return nil
}

// Version returns 0 when no migration has run yet.
func (r *Runner) Version() (uint, bool, error) {
	if err := r.Initialize(); err != nil {
		return 0, false, err
	}
	version, dirty, err := r.migrator.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (r *Runner) logVersion() {
	version, dirty, err := r.Version()
	if err != nil {
		r.log.Warn("MIGRATE", fmt.Sprintf("could not read schema version: %v", err))
		return
	}
	r.log.LogDatabase("MIGRATE", "schema_migrations", fmt.Sprintf("version %d (dirty=%t)", version, dirty))
}

func (r *Runner) Close() error {
	if r.migrator == nil {
		return r.db.Close()
	}
	sourceErr, databaseErr := r.migrator.Close()
	if sourceErr != nil {
		return fmt.Errorf("error closing migrator source: %w", sourceErr)
	}
	if databaseErr != nil {
		return fmt.Errorf("error closing migrator database: %w", databaseErr)
	}
	return nil
}
