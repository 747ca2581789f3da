package config

import (
	"fmt"

	"github.com/AdamBeresnev/cue-scheduler/internal/bracket"
	"github.com/joho/godotenv"
)

type AppConfig struct {
	Server     ServerConfig
	DB         DBConfig
	Log        LogConfig
	Scheduling SchedulingConfig
}

// LoadApp reads a .env file when one exists, then the environment.
func LoadApp() (AppConfig, error) {
	_ = godotenv.Load()

	serverCfg, err := LoadServer()
	if err != nil {
		return AppConfig{}, err
	}
	dbCfg, err := LoadDB()
	if err != nil {
		return AppConfig{}, err
	}
	logCfg, err := LoadLog()
	if err != nil {
		return AppConfig{}, err
	}
	schedulingCfg, err := LoadScheduling()
	if err != nil {
		return AppConfig{}, err
	}

	cfg := AppConfig{
		Server:     serverCfg,
		DB:         dbCfg,
		Log:        logCfg,
		Scheduling: schedulingCfg,
	}
	return cfg, cfg.Validate()
}

func (c AppConfig) Validate() error {
	positive := []struct {
		name  string
		value int
	}{
		{"DB_MAX_OPEN_CONNS", c.DB.MaxOpenConns},
		{"SHUTDOWN_TIMEOUT_SECONDS", c.Server.ShutdownTimeout},
		{"DEFAULT_RACE_TO", c.Scheduling.DefaultRaceTo},
		{"MAX_BRACKET_PLAYERS", c.Scheduling.MaxBracketPlayers},
		{"MIN_HISTORY_SAMPLES", c.Scheduling.MinHistorySamples},
	}
	for _, p := range positive {
		if p.value < 1 {
			return fmt.Errorf("%s must be positive, got %d", p.name, p.value)
		}
	}
	if c.Scheduling.MaxBracketPlayers > bracket.MaxPlayers {
		return fmt.Errorf("MAX_BRACKET_PLAYERS must be at most %d, got %d", bracket.MaxPlayers, c.Scheduling.MaxBracketPlayers)
	}
	if c.DB.DSN == "" {
		return fmt.Errorf("DB_DSN must not be empty")
	}
	return nil
}
