package logger

import (
	"bytes"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
)

func TestInitWithWriter(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	var buf bytes.Buffer
	InitWithWriter(&buf, "WARN", false)
	require.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	log.Info().Msg("oculto")
	require.Zero(t, buf.Len())

	log.Warn().Str("session", "s1").Msg("visible")
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "warn", entry["level"])
	require.Equal(t, "s1", entry["session"])
	require.Equal(t, "visible", entry["message"])

	InitWithWriter(&buf, "no-such-level", true)
	require.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
