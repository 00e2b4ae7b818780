//go:build windows

package audio

import (
	"github.com/gen2brain/malgo"
	"github.com/rs/zerolog"
)

const loopbackDeviceName = "WASAPI loopback"

func probeSystem() error { return nil }

// openSystem taps the default render endpoint through WASAPI loopback. The
// session owns its own WASAPI context.
func openSystem(log zerolog.Logger) (*Session, error) {
	ctx, err := malgo.InitContext([]malgo.Backend{malgo.BackendWasapi}, malgo.ContextConfig{}, miniaudioLogger(log))
	if err != nil {
		return nil, deviceError(err)
	}
	release := func() {
		_ = ctx.Uninit()
		ctx.Free()
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Loopback)
	deviceConfig.Capture.Format = malgo.FormatUnknown
	deviceConfig.Capture.Channels = 0
	deviceConfig.SampleRate = 0

	return openMalgoSession(ctx.Context, deviceConfig, SourceSystem, loopbackDeviceName, release, log)
}
