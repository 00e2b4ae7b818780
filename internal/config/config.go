package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	BackendPortAudio = "portaudio"
	BackendMiniaudio = "miniaudio"

	MinPollInterval = 50 * time.Millisecond
	MaxPollInterval = 500 * time.Millisecond

	minRingBufferMs = 1000
)

type Config struct {
	LogLevel string      `json:"log_level" mapstructure:"log_level"`
	Audio    AudioConfig `json:"audio" mapstructure:"audio"`
	Debug    DebugConfig `json:"debug" mapstructure:"debug"`
}

type AudioConfig struct {
	Backend         string `json:"backend" mapstructure:"backend"`             // "portaudio" or "miniaudio"
	DeviceName      string `json:"device_name" mapstructure:"device_name"`     // empty means the default input
	SampleFormat    string `json:"sample_format" mapstructure:"sample_format"` // empty means device native
	PollIntervalMs  int    `json:"poll_interval_ms" mapstructure:"poll_interval_ms"`
	RingBufferMs    int    `json:"ring_buffer_ms" mapstructure:"ring_buffer_ms"`
	FramesPerBuffer int    `json:"frames_per_buffer" mapstructure:"frames_per_buffer"`
}

type DebugConfig struct {
	Enabled        bool   `json:"enabled" mapstructure:"enabled"`
	SaveAudioFiles bool   `json:"save_audio_files" mapstructure:"save_audio_files"`
	AudioOutputDir string `json:"audio_output_dir" mapstructure:"audio_output_dir"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Audio: AudioConfig{
			Backend:         BackendPortAudio,
			PollIntervalMs:  100,
			RingBufferMs:    2000,
			FramesPerBuffer: 512,
		},
		Debug: DebugConfig{
			AudioOutputDir: filepath.Join(DataPath(), "debug_audio"),
		},
	}
}

// Load reads defaults, then the JSON file at path (or the platform config
// path when empty), then HERONOTE_* environment overrides such as
// HERONOTE_AUDIO_BACKEND. A missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetConfigType("json")
	if path == "" {
		path = Path()
	}
	v.SetConfigFile(path)

	v.SetEnvPrefix("HERONOTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("audio.backend", d.Audio.Backend)
	v.SetDefault("audio.device_name", d.Audio.DeviceName)
	v.SetDefault("audio.sample_format", d.Audio.SampleFormat)
	v.SetDefault("audio.poll_interval_ms", d.Audio.PollIntervalMs)
	v.SetDefault("audio.ring_buffer_ms", d.Audio.RingBufferMs)
	v.SetDefault("audio.frames_per_buffer", d.Audio.FramesPerBuffer)
	v.SetDefault("debug.enabled", d.Debug.Enabled)
	v.SetDefault("debug.save_audio_files", d.Debug.SaveAudioFiles)
	v.SetDefault("debug.audio_output_dir", d.Debug.AudioOutputDir)
}

// Validate rejects values the capture pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Audio.Backend {
	case BackendPortAudio, BackendMiniaudio:
	default:
		return fmt.Errorf("unknown audio backend %q", c.Audio.Backend)
	}
	if d := c.PollInterval(); d < MinPollInterval || d > MaxPollInterval {
		return fmt.Errorf("poll interval %s outside [%s, %s]", d, MinPollInterval, MaxPollInterval)
	}
	if c.Audio.RingBufferMs < minRingBufferMs {
		return fmt.Errorf("ring buffer of %dms is below the %dms minimum", c.Audio.RingBufferMs, minRingBufferMs)
	}
	if c.Audio.FramesPerBuffer < 0 {
		return fmt.Errorf("frames per buffer must not be negative, got %d", c.Audio.FramesPerBuffer)
	}
	return nil
}

// PollInterval is how often a capture goroutine wakes to check its stop flag.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Audio.PollIntervalMs) * time.Millisecond
}

// RingDuration is how much audio each capture ring holds.
func (c *Config) RingDuration() time.Duration {
	return time.Duration(c.Audio.RingBufferMs) * time.Millisecond
}

// RecordingEnabled reports whether captured chunks go to the WAV sink.
func (c *Config) RecordingEnabled() bool {
	return c.Debug.Enabled && c.Debug.SaveAudioFiles
}

// Save writes the config as JSON to path, or the platform config path when
// empty.
func (c *Config) Save(path string) error {
	if path == "" {
		path = Path()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Path returns the platform-specific config file path
func Path() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("APPDATA")
	default: // linux
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.config"
		}
	}

	return filepath.Join(base, "heronote", "config.json")
}

// DataPath returns the platform-specific data directory
func DataPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("LOCALAPPDATA")
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.local/share"
		}
	}

	return filepath.Join(base, "heronote")
}
