package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppDefaults(t *testing.T) {
	cfg, err := LoadApp()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, 10, cfg.Server.ShutdownTimeout)
	assert.Contains(t, cfg.DB.DSN, "_txlock=immediate")
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Log.Pretty)
	assert.Equal(t, 5, cfg.Scheduling.DefaultRaceTo)
	assert.Equal(t, 128, cfg.Scheduling.MaxBracketPlayers)
	assert.Equal(t, 3, cfg.Scheduling.MinHistorySamples)
}

func TestLoadAppParseTypes(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("DB_MAX_OPEN_CONNS", "1")
	t.Setenv("LOG_PRETTY", "true")
	t.Setenv("LOG_SAMPLE_EVERY", "5")
	t.Setenv("DEFAULT_RACE_TO", "7")

	cfg, err := LoadApp()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.HTTPAddr)
	assert.Equal(t, 1, cfg.DB.MaxOpenConns)
	assert.True(t, cfg.Log.Pretty)
	assert.Equal(t, 5, cfg.Log.SampleEvery)
	assert.Equal(t, 7, cfg.Scheduling.DefaultRaceTo)
}

func TestLoadAppRejectsNonPositive(t *testing.T) {
	testCases := []struct {
		key   string
		value string
	}{
		{"DEFAULT_RACE_TO", "0"},
		{"MAX_BRACKET_PLAYERS", "-1"},
		{"DB_MAX_OPEN_CONNS", "0"},
	}

	for _, tc := range testCases {
		t.Run(tc.key, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			_, err := LoadApp()
			assert.ErrorContains(t, err, tc.key)
		})
	}
}

func TestLoadAppRejectsMalformedNumber(t *testing.T) {
	t.Setenv("MIN_HISTORY_SAMPLES", "three")
	_, err := LoadApp()
	assert.Error(t, err)
}

func TestLoadAppCapsBracketPlayers(t *testing.T) {
	t.Setenv("MAX_BRACKET_PLAYERS", "200")
	_, err := LoadApp()
	assert.ErrorContains(t, err, "MAX_BRACKET_PLAYERS must be at most 128")

	t.Setenv("MAX_BRACKET_PLAYERS", "64")
	cfg, err := LoadApp()
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Scheduling.MaxBracketPlayers)
}
