package config

import "github.com/caarlos0/env/v11"

type SchedulingConfig struct {
	DefaultRaceTo     int `env:"DEFAULT_RACE_TO" envDefault:"5"`
	MaxBracketPlayers int `env:"MAX_BRACKET_PLAYERS" envDefault:"128"`
	MinHistorySamples int `env:"MIN_HISTORY_SAMPLES" envDefault:"3"`
}

func LoadScheduling() (SchedulingConfig, error) {
	var cfg SchedulingConfig
	err := env.Parse(&cfg)
	return cfg, err
}
