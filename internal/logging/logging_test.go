package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestBuildWritesToBothOutputs(t *testing.T) {
	var console, file bytes.Buffer
	log := build(&console, &file, "warn")

	log.Info().Msg("hidden")
	log.Warn().Str("source", "mic").Msg("visible")

	assert.NotContains(t, console.String(), "hidden")
	assert.Contains(t, console.String(), "visible")
	assert.Contains(t, file.String(), `"source":"mic"`)
}

func TestBuildWithoutFile(t *testing.T) {
	var console bytes.Buffer
	log := build(&console, nil, "info")
	log.Info().Msg("console only")
	assert.Contains(t, console.String(), "console only")
}

func TestFileWriterRotatesUnderStateDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "heronote.log")
	w := fileWriter(path)
	require.NotNil(t, w)

	_, err := w.Write([]byte("line\n"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "line\n", string(data))
}

func TestPathIsNamespaced(t *testing.T) {
	assert.Equal(t, "heronote.log", filepath.Base(Path()))
}
