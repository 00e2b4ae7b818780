package audio

import (
	"errors"
	"fmt"

	"github.com/petems/heronote/internal/config"
	"github.com/petems/heronote/internal/permissions"
	"github.com/rs/zerolog"
)

// Host opens capture sessions on one audio backend.
type Host interface {
	// ListDevices returns input and output endpoints with default flags.
	ListDevices() ([]Device, error)
	// Probe runs the cheap acquisition checks for src without opening a
	// stream, so callers can fail fast.
	Probe(src Source) error
	// Open acquires the resource for src and negotiates its native format.
	// The returned session belongs to the calling goroutine.
	Open(src Source) (*Session, error)
	Close() error
}

// NewHost initializes the backend named in cfg.
func NewHost(cfg config.AudioConfig, log zerolog.Logger) (Host, error) {
	enc, err := ParseEncoding(cfg.SampleFormat)
	if err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case config.BackendMiniaudio:
		return newMiniaudioHost(cfg, enc, log)
	case config.BackendPortAudio, "":
		return newPortAudioHost(cfg, enc, log)
	}
	return nil, fmt.Errorf("unknown audio backend %q", cfg.Backend)
}

func probeMicrophone() error {
	if err := permissions.EnsureMicrophone(); err != nil {
		if errors.Is(err, permissions.ErrMicrophoneDenied) {
			return &Error{Kind: KindPermissionDenied, Err: err}
		}
		return deviceError(err)
	}
	return nil
}
