package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNew_WritesToConfiguredOutput(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Output: &buf})

	log.Info().Msg("cache warmed")

	assert.Contains(t, buf.String(), "cache warmed")
	assert.Contains(t, buf.String(), `"level":"info"`)
}

func TestNew_LogLevels(t *testing.T) {
	testCases := []struct {
		name     string
		level    string
		expected zerolog.Level
	}{
		{"debug", "debug", zerolog.DebugLevel},
		{"info", "info", zerolog.InfoLevel},
		{"warn", "warn", zerolog.WarnLevel},
		{"error", "error", zerolog.ErrorLevel},
		{"mixed case", " DEBUG ", zerolog.DebugLevel},
		{"unknown defaults to info", "verbose", zerolog.InfoLevel},
		{"empty defaults to info", "", zerolog.InfoLevel},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			New(Config{Level: tc.level, Output: &bytes.Buffer{}})
			assert.Equal(t, tc.expected, zerolog.GlobalLevel())
		})
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func TestNew_PrettyOutput(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Pretty: true, Output: &buf})

	log.Info().Msg("pretty line")

	out := buf.String()
	assert.Contains(t, out, "pretty line")
	assert.NotContains(t, out, `"message"`)
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	log := Component(zerolog.New(&buf), "ssi-client")

	log.Info().Msg("hello")

	assert.Contains(t, buf.String(), `"component":"ssi-client"`)
}
