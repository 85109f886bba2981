package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/inkwell/internal/config"
)

func TestNew(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inkwell.log")

	log, err := New(config.LoggingConfig{Level: "WARN", Format: "json", Output: path})
	require.NoError(t, err)
	require.Equal(t, zerolog.WarnLevel, log.GetLevel())

	log.Info().Msg("dropped")
	log.Warn().Str("component", "test").Msg("kept")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(data), "dropped")
	require.Contains(t, string(data), `"component":"test"`)
	require.Contains(t, string(data), `"service":"inkwell"`)
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "loud"})
	require.Error(t, err)
}
