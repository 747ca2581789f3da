package logging

import (
	"io"
	"os"
	"strings"

	"github.com/AdamBeresnev/cue-scheduler/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init installs the global logger described by cfg.
func Init(cfg config.LogConfig) {
	log.Logger = New(cfg, os.Stdout)
}

func New(cfg config.LogConfig, out io.Writer) zerolog.Logger {
	level := zerolog.InfoLevel
	if v := strings.TrimSpace(cfg.Level); v != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(v)); err == nil {
			level = parsed
		}
	}

	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out}
	}

	zerolog.SetGlobalLevel(level)
	logger := zerolog.New(out).With().Timestamp().Logger()
	if cfg.SampleEvery > 1 {
		logger = logger.Sample(&zerolog.BasicSampler{N: uint32(cfg.SampleEvery)})
	}
	return logger
}
