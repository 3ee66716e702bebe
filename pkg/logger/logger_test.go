package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func readLogFile(dir string) ([]byte, error) {
	return os.ReadFile(filepath.Join(dir, "sentinel.log"))
}

func TestNew_DefaultConfig(t *testing.T) {
	l := New(Config{Level: "info", Format: "json"})
	assert.NotNil(t, l)

	var buf bytes.Buffer
	l = l.Output(&buf)
	l.Info().Msg("test message")

	assert.Contains(t, buf.String(), "test message")
}

func TestNew_AllLogLevels(t *testing.T) {
	cases := []struct {
		level    string
		expected zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"unknown", zerolog.InfoLevel},
	}

	for _, tc := range cases {
		t.Run(tc.level, func(t *testing.T) {
			New(Config{Level: tc.level, Format: "json"})
			assert.Equal(t, tc.expected, zerolog.GlobalLevel())
		})
	}
}

func TestNew_TextFormat(t *testing.T) {
	l := New(Config{Level: "info", Format: "text"})

	var buf bytes.Buffer
	l = l.Output(&buf)
	l.Info().Msg("hello")

	assert.Contains(t, buf.String(), "hello")
}

func TestNew_WritesToLogDir(t *testing.T) {
	dir := t.TempDir()
	l := New(Config{Level: "info", Format: "json", Dir: dir})
	l.Info().Msg("to file")

	data, err := readLogFile(dir)
	assert.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}
