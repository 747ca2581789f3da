package db

import (
	"errors"
	"fmt"

	"github.com/AdamBeresnev/cue-scheduler/internal/config"
	"github.com/AdamBeresnev/cue-scheduler/migrations"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

func InitDB(cfg config.DBConfig) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite3", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to DB: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)

	_, err = db.Exec("PRAGMA foreign_keys = ON;")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	log.Info().Int("max_open_conns", cfg.MaxOpenConns).Msg("database connected")
	return db, nil
}

// RunMigrations applies the embedded migrations. The migrate instance is not closed since that would close db.
func RunMigrations(db *sqlx.DB) error {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}

	driver, err := sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migrate driver instance: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err == nil {
		log.Info().Uint("version", version).Bool("dirty", dirty).Msg("migrations applied")
	}
	return nil
}

// OpenMemory returns a migrated in-memory database on a single connection, since every new connection to
// :memory: would see an empty database.
func OpenMemory() (*sqlx.DB, error) {
	db, err := InitDB(config.DBConfig{DSN: "file::memory:?_foreign_keys=on", MaxOpenConns: 1})
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
