//go:build !darwin && !windows

package audio

import (
	"runtime"

	"github.com/rs/zerolog"
)

func probeSystem() error {
	return platformNotSupported("system audio capture on " + runtime.GOOS)
}

func openSystem(zerolog.Logger) (*Session, error) {
	return nil, probeSystem()
}
