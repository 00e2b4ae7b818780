package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	assert.Equal(t, BackendPortAudio, cfg.Audio.Backend)
	assert.Equal(t, 100*time.Millisecond, cfg.PollInterval())
	assert.Equal(t, 2*time.Second, cfg.RingDuration())
	assert.Equal(t, 512, cfg.Audio.FramesPerBuffer)
	assert.False(t, cfg.RecordingEnabled())
	assert.Equal(t, "debug_audio", filepath.Base(cfg.Debug.AudioOutputDir))
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := Default()
	cfg.LogLevel = "debug"
	cfg.Audio.Backend = BackendMiniaudio
	cfg.Audio.DeviceName = "USB Mic"
	cfg.Audio.PollIntervalMs = 200
	cfg.Debug.Enabled = true
	cfg.Debug.SaveAudioFiles = true
	cfg.Debug.AudioOutputDir = "/tmp/rec"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
	assert.True(t, loaded.RecordingEnabled())
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"audio":{"device_name":"Built-in"}}`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Built-in", cfg.Audio.DeviceName)
	assert.Equal(t, BackendPortAudio, cfg.Audio.Backend)
	assert.Equal(t, 100, cfg.Audio.PollIntervalMs)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("HERONOTE_AUDIO_BACKEND", BackendMiniaudio)
	t.Setenv("HERONOTE_AUDIO_POLL_INTERVAL_MS", "250")

	cfg, err := Load(filepath.Join(t.TempDir(), "none.json"))
	require.NoError(t, err)
	assert.Equal(t, BackendMiniaudio, cfg.Audio.Backend)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval())
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"audio":`), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "miniaudio", mutate: func(c *Config) { c.Audio.Backend = BackendMiniaudio }},
		{name: "unknown backend", mutate: func(c *Config) { c.Audio.Backend = "alsa" }, wantErr: true},
		{name: "poll lower bound", mutate: func(c *Config) { c.Audio.PollIntervalMs = 50 }},
		{name: "poll upper bound", mutate: func(c *Config) { c.Audio.PollIntervalMs = 500 }},
		{name: "poll too fast", mutate: func(c *Config) { c.Audio.PollIntervalMs = 49 }, wantErr: true},
		{name: "poll too slow", mutate: func(c *Config) { c.Audio.PollIntervalMs = 501 }, wantErr: true},
		{name: "ring too small", mutate: func(c *Config) { c.Audio.RingBufferMs = 999 }, wantErr: true},
		{name: "negative frames", mutate: func(c *Config) { c.Audio.FramesPerBuffer = -1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPathsAreNamespaced(t *testing.T) {
	assert.Equal(t, "config.json", filepath.Base(Path()))
	assert.Equal(t, "heronote", filepath.Base(filepath.Dir(Path())))
	assert.Equal(t, "heronote", filepath.Base(DataPath()))
}
