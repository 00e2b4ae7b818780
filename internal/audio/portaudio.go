package audio

import (
	"errors"
	"fmt"

	"github.com/gordonklaus/portaudio"
	"github.com/petems/heronote/internal/config"
	"github.com/rs/zerolog"
)

// PortAudio converts to whatever sample type the callback asks for, so only
// the typed paths are offered.
var portAudioEncodings = map[Encoding]bool{
	EncodingInt16:   true,
	EncodingInt32:   true,
	EncodingFloat32: true,
}

type portAudioHost struct {
	deviceName      string
	encoding        Encoding
	framesPerBuffer int
	log             zerolog.Logger
}

func newPortAudioHost(cfg config.AudioConfig, enc Encoding, log zerolog.Logger) (*portAudioHost, error) {
	if enc == EncodingUnknown {
		enc = EncodingFloat32
	}
	if !portAudioEncodings[enc] {
		return nil, unsupportedFormat(enc.String() + " with portaudio")
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return &portAudioHost{
		deviceName:      cfg.DeviceName,
		encoding:        enc,
		framesPerBuffer: cfg.FramesPerBuffer,
		log:             log.With().Str("backend", config.BackendPortAudio).Logger(),
	}, nil
}

func (h *portAudioHost) ListDevices() ([]Device, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, deviceError(fmt.Errorf("failed to list devices: %w", err))
	}

	var defaultIn, defaultOut string
	if d, err := portaudio.DefaultInputDevice(); err == nil && d != nil {
		defaultIn = d.Name
	}
	if d, err := portaudio.DefaultOutputDevice(); err == nil && d != nil {
		defaultOut = d.Name
	}

	result := make([]Device, 0, len(devices))
	for _, d := range devices {
		if d.MaxInputChannels > 0 && !isTapDevice(d.Name) {
			result = append(result, Device{Name: d.Name, Type: DeviceInput, Default: d.Name == defaultIn})
		}
		if d.MaxOutputChannels > 0 {
			result = append(result, Device{Name: d.Name, Type: DeviceOutput, Default: d.Name == defaultOut})
		}
	}
	return result, nil
}

func (h *portAudioHost) findInput() (*portaudio.DeviceInfo, error) {
	if h.deviceName == "" {
		device, err := portaudio.DefaultInputDevice()
		if err != nil || device == nil {
			return nil, &Error{Kind: KindNoDeviceFound, Err: err}
		}
		return device, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, deviceError(fmt.Errorf("failed to enumerate devices: %w", err))
	}
	for _, d := range devices {
		if d.Name == h.deviceName && d.MaxInputChannels > 0 {
			return d, nil
		}
	}
	return nil, deviceNotAvailable(h.deviceName, nil)
}

func (h *portAudioHost) Probe(src Source) error {
	if src == SourceSystem {
		return probeSystem()
	}
	if err := probeMicrophone(); err != nil {
		return err
	}
	_, err := h.findInput()
	return err
}

func (h *portAudioHost) Open(src Source) (*Session, error) {
	if src == SourceSystem {
		return openSystem(h.log)
	}
	if err := probeMicrophone(); err != nil {
		return nil, err
	}

	device, err := h.findInput()
	if err != nil {
		return nil, err
	}

	channels := min(device.MaxInputChannels, 2)
	params := portaudio.LowLatencyParameters(device, nil)
	params.Input.Channels = channels
	if h.framesPerBuffer > 0 {
		params.FramesPerBuffer = h.framesPerBuffer
	}

	drv := &portAudioDriver{params: params, encoding: h.encoding}
	if err := portaudio.IsFormatSupported(params, drv.callback(nil)); err != nil {
		return nil, &Error{Kind: KindUnsupportedFormat, Detail: h.encoding.String(), Err: err}
	}

	format := Format{
		Encoding:   h.encoding,
		Channels:   channels,
		SampleRate: uint32(params.SampleRate),
	}
	return NewSession(SourceMicrophone, device.Name, format, drv, h.log), nil
}

func (h *portAudioHost) Close() error {
	return portaudio.Terminate()
}

type portAudioDriver struct {
	params   portaudio.StreamParameters
	encoding Encoding
	stream   *portaudio.Stream
}

// callback builds the typed PortAudio callback for the session encoding.
// PortAudio streams run at a fixed rate, so no rate is reported.
func (d *portAudioDriver) callback(cb *Callback) interface{} {
	switch d.encoding {
	case EncodingInt16:
		return func(in []int16) { cb.DeliverInt16(in) }
	case EncodingInt32:
		return func(in []int32) { cb.DeliverInt32(in) }
	default:
		return func(in []float32) { cb.DeliverFloat32(in) }
	}
}

func (d *portAudioDriver) Start(cb *Callback) error {
	stream, err := portaudio.OpenStream(d.params, d.callback(cb))
	if err != nil {
		return fmt.Errorf("failed to open audio stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start audio stream: %w", err)
	}
	d.stream = stream
	return nil
}

func (d *portAudioDriver) Close() error {
	if d.stream == nil {
		return nil
	}
	stream := d.stream
	d.stream = nil
	return errors.Join(stream.Stop(), stream.Close())
}
