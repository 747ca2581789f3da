package config

import "github.com/caarlos0/env/v11"

type DBConfig struct {
	// _txlock=immediate takes the write lock at BEGIN so check-then-act inside a transaction cannot interleave.
	DSN          string `env:"DB_DSN" envDefault:"cue_scheduler.db?_journal_mode=WAL&_txlock=immediate&_busy_timeout=5000&_foreign_keys=on"`
	MaxOpenConns int    `env:"DB_MAX_OPEN_CONNS" envDefault:"4"`
}

func LoadDB() (DBConfig, error) {
	var cfg DBConfig
	err := env.Parse(&cfg)
	return cfg, err
}
