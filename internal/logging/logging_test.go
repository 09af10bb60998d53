package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
)

func TestConfigure(t *testing.T) {
	prev, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
		zerolog.DefaultContextLogger = nil
	})

	var buf bytes.Buffer
	configure(&buf, "warn", "fitlog-api")

	log.Info().Msg("dropped")
	log.Warn().Str("user_id", "u1").Msg("kept")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	require.Equal(t, "kept", entry["message"])
	require.Equal(t, "fitlog-api", entry["service"])
	require.Equal(t, "u1", entry["user_id"])
}

func TestConfigureUnknownLevel(t *testing.T) {
	prev, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
		zerolog.DefaultContextLogger = nil
	})

	configure(&bytes.Buffer{}, "loud", "fitlog-api")
	require.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
