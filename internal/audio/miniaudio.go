package audio

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/gen2brain/malgo"
	"github.com/petems/heronote/internal/config"
	"github.com/rs/zerolog"
)

var errDeviceStopped = errors.New("device stopped")

type miniaudioHost struct {
	ctx             *malgo.AllocatedContext
	deviceName      string
	format          malgo.FormatType
	framesPerBuffer uint32
	log             zerolog.Logger
}

func newMiniaudioHost(cfg config.AudioConfig, enc Encoding, log zerolog.Logger) (*miniaudioHost, error) {
	format, err := malgoFormat(enc)
	if err != nil {
		return nil, err
	}

	log = log.With().Str("backend", config.BackendMiniaudio).Logger()
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, miniaudioLogger(log))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize miniaudio: %w", err)
	}

	return &miniaudioHost{
		ctx:             ctx,
		deviceName:      cfg.DeviceName,
		format:          format,
		framesPerBuffer: uint32(max(cfg.FramesPerBuffer, 0)),
		log:             log,
	}, nil
}

func miniaudioLogger(log zerolog.Logger) func(string) {
	return func(message string) {
		log.Debug().Msg(strings.TrimSpace(message))
	}
}

func malgoFormat(enc Encoding) (malgo.FormatType, error) {
	switch enc {
	case EncodingUnknown:
		return malgo.FormatUnknown, nil
	case EncodingUint8:
		return malgo.FormatU8, nil
	case EncodingInt16:
		return malgo.FormatS16, nil
	case EncodingInt24:
		return malgo.FormatS24, nil
	case EncodingInt32:
		return malgo.FormatS32, nil
	case EncodingFloat32:
		return malgo.FormatF32, nil
	}
	return malgo.FormatUnknown, unsupportedFormat(enc.String() + " with miniaudio")
}

func encodingFromMalgo(f malgo.FormatType) Encoding {
	switch f {
	case malgo.FormatU8:
		return EncodingUint8
	case malgo.FormatS16:
		return EncodingInt16
	case malgo.FormatS24:
		return EncodingInt24
	case malgo.FormatS32:
		return EncodingInt32
	case malgo.FormatF32:
		return EncodingFloat32
	}
	return EncodingUnknown
}

func (h *miniaudioHost) ListDevices() ([]Device, error) {
	inputs, err := h.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, deviceError(fmt.Errorf("failed to list capture devices: %w", err))
	}
	outputs, err := h.ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, deviceError(fmt.Errorf("failed to list playback devices: %w", err))
	}

	result := make([]Device, 0, len(inputs)+len(outputs))
	for i := range inputs {
		name := inputs[i].Name()
		if isTapDevice(name) {
			continue
		}
		result = append(result, Device{Name: name, Type: DeviceInput, Default: inputs[i].IsDefault != 0})
	}
	for i := range outputs {
		result = append(result, Device{Name: outputs[i].Name(), Type: DeviceOutput, Default: outputs[i].IsDefault != 0})
	}
	return result, nil
}

// findInput returns the configured capture device. A nil info with no error
// means the backend default.
func (h *miniaudioHost) findInput() (*malgo.DeviceInfo, string, error) {
	infos, err := h.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, "", deviceError(fmt.Errorf("failed to enumerate devices: %w", err))
	}
	if len(infos) == 0 {
		return nil, "", ErrNoDeviceFound
	}

	if h.deviceName == "" {
		for i := range infos {
			if infos[i].IsDefault != 0 {
				return nil, infos[i].Name(), nil
			}
		}
		return nil, "default", nil
	}

	for i := range infos {
		if infos[i].Name() == h.deviceName {
			return &infos[i], h.deviceName, nil
		}
	}
	return nil, "", deviceNotAvailable(h.deviceName, nil)
}

func (h *miniaudioHost) Probe(src Source) error {
	if src == SourceSystem {
		return probeSystem()
	}
	if err := probeMicrophone(); err != nil {
		return err
	}
	_, _, err := h.findInput()
	return err
}

func (h *miniaudioHost) Open(src Source) (*Session, error) {
	if src == SourceSystem {
		return openSystem(h.log)
	}
	if err := probeMicrophone(); err != nil {
		return nil, err
	}

	info, name, err := h.findInput()
	if err != nil {
		return nil, err
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = h.format
	deviceConfig.Capture.Channels = 0
	deviceConfig.SampleRate = 0
	deviceConfig.PeriodSizeInFrames = h.framesPerBuffer
	if info != nil {
		deviceConfig.Capture.DeviceID = info.ID.Pointer()
	}

	return openMalgoSession(h.ctx.Context, deviceConfig, SourceMicrophone, name, nil, h.log)
}

func (h *miniaudioHost) Close() error {
	err := h.ctx.Uninit()
	h.ctx.Free()
	return err
}

// malgoDriver owns one miniaudio device. Its callbacks run on the miniaudio
// audio thread.
type malgoDriver struct {
	device  *malgo.Device
	cb      atomic.Pointer[Callback]
	closing atomic.Bool
	release func()
}

// openMalgoSession initializes the device with native format negotiation.
// release, when set, frees resources the session owns beyond the device.
func openMalgoSession(ctx malgo.Context, deviceConfig malgo.DeviceConfig, src Source, name string, release func(), log zerolog.Logger) (*Session, error) {
	drv := &malgoDriver{release: release}
	device, err := malgo.InitDevice(ctx, deviceConfig, malgo.DeviceCallbacks{
		Data: drv.onData,
		Stop: drv.onStop,
	})
	if err != nil {
		drv.releaseOwned()
		return nil, deviceNotAvailable(name, err)
	}
	drv.device = device

	format := Format{
		Encoding:   encodingFromMalgo(device.CaptureFormat()),
		Channels:   int(device.CaptureChannels()),
		SampleRate: device.SampleRate(),
	}
	if format.Encoding == EncodingUnknown {
		device.Uninit()
		drv.releaseOwned()
		return nil, unsupportedFormat(fmt.Sprintf("miniaudio format %d", device.CaptureFormat()))
	}

	return NewSession(src, name, format, drv, log), nil
}

func (d *malgoDriver) onData(_, input []byte, _ uint32) {
	cb := d.cb.Load()
	if cb == nil {
		return
	}
	cb.DeliverBytes(input, d.device.SampleRate())
}

func (d *malgoDriver) onStop() {
	if d.closing.Load() {
		return
	}
	if cb := d.cb.Load(); cb != nil {
		cb.Fail(errDeviceStopped)
	}
}

func (d *malgoDriver) Start(cb *Callback) error {
	d.cb.Store(cb)
	if err := d.device.Start(); err != nil {
		d.cb.Store(nil)
		return fmt.Errorf("failed to start device: %w", err)
	}
	return nil
}

func (d *malgoDriver) Close() error {
	d.closing.Store(true)
	var err error
	if d.device.IsStarted() {
		err = d.device.Stop()
	}
	d.device.Uninit()
	d.cb.Store(nil)
	d.releaseOwned()
	return err
}

func (d *malgoDriver) releaseOwned() {
	if d.release != nil {
		d.release()
		d.release = nil
	}
}
