//go:build darwin

package audio

import (
	"errors"

	"github.com/petems/heronote/internal/audio/coreaudio"
	"github.com/rs/zerolog"
)

// tapDeviceName names the private aggregate device. It carries tapMarker so
// device listings skip it.
const tapDeviceName = "heronote " + tapMarker

func probeSystem() error {
	if !coreaudio.Supported() {
		return platformNotSupported("system audio capture requires macOS 14.2")
	}
	return nil
}

// openSystem creates a global process tap wrapped in a private aggregate
// device and negotiates the tap's format.
func openSystem(log zerolog.Logger) (*Session, error) {
	if err := probeSystem(); err != nil {
		return nil, err
	}

	tap, err := coreaudio.OpenTap(tapDeviceName)
	if err != nil {
		if errors.Is(err, coreaudio.ErrNoOutputDevice) {
			return nil, &Error{Kind: KindNoDeviceFound, Err: err}
		}
		return nil, deviceError(err)
	}

	format, err := tapFormat(tap.Format())
	if err != nil {
		_ = tap.Close()
		return nil, err
	}

	return NewSession(SourceSystem, tapDeviceName, format, &tapDriver{tap: tap}, log), nil
}

func tapFormat(f coreaudio.Format) (Format, error) {
	enc := EncodingUnknown
	switch {
	case f.BigEndian:
	case f.Float && f.BitsPerChannel == 32:
		enc = EncodingFloat32
	case f.Float && f.BitsPerChannel == 64:
		enc = EncodingFloat64
	case f.SignedInteger && f.BitsPerChannel == 16:
		enc = EncodingInt16
	case f.SignedInteger && f.BitsPerChannel == 24:
		enc = EncodingInt24
	case f.SignedInteger && f.BitsPerChannel == 32:
		enc = EncodingInt32
	}
	if enc == EncodingUnknown || f.Channels < 1 || f.SampleRate <= 0 {
		return Format{}, unsupportedFormat(f.String())
	}
	return Format{Encoding: enc, Channels: f.Channels, SampleRate: uint32(f.SampleRate)}, nil
}

type tapDriver struct {
	tap *coreaudio.Tap
}

func (d *tapDriver) Start(cb *Callback) error {
	return d.tap.Start(func(data []byte, rate float64) {
		cb.DeliverBytes(data, uint32(rate))
	})
}

func (d *tapDriver) Close() error {
	return d.tap.Close()
}
