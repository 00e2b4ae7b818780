package audio

import (
	"errors"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/petems/heronote/internal/ringbuf"
	"github.com/rs/zerolog"
)

// blockFrames bounds how many frames the callback normalizes at once. Larger
// device buffers are processed in several blocks so scratch space stays fixed.
const blockFrames = 1024

// Driver is the backend half of a session: it owns the OS resource and feeds
// the Callback from the OS audio thread once started.
type Driver interface {
	// Start begins delivery into cb. It is called at most once.
	Start(cb *Callback) error
	// Close stops delivery and releases the OS resource. After Close returns
	// the driver never touches cb again.
	Close() error
}

// Session is one opened capture resource with its negotiated format. It is
// owned by the goroutine that opened it.
type Session struct {
	id     uuid.UUID
	source Source
	device string
	format Format
	driver Driver
	log    zerolog.Logger

	activated bool
	closed    bool
}

// NewSession wraps an opened driver. Backends call this from Host.Open once
// the native format is known.
func NewSession(source Source, device string, format Format, driver Driver, log zerolog.Logger) *Session {
	id := uuid.New()
	return &Session{
		id:     id,
		source: source,
		device: device,
		format: format,
		driver: driver,
		log: log.With().
			Str("source", source.String()).
			Str("session", id.String()).
			Logger(),
	}
}

func (s *Session) ID() uuid.UUID      { return s.id }
func (s *Session) Source() Source     { return s.source }
func (s *Session) DeviceName() string { return s.device }
func (s *Session) Format() Format     { return s.format }

// NativeSampleRate is the rate negotiated when the session was opened.
func (s *Session) NativeSampleRate() uint32 { return s.format.SampleRate }

// Activate installs the real-time callback feeding p and starts the device.
func (s *Session) Activate(p *ringbuf.Producer) (*ActiveSession, error) {
	if s.closed {
		return nil, deviceError(errors.New("session closed"))
	}
	if s.activated {
		return nil, streamBuildError(errors.New("session already active"))
	}

	cb, err := newCallback(s.format, p, s.log)
	if err != nil {
		return nil, err
	}
	if err := s.driver.Start(cb); err != nil {
		var aerr *Error
		if errors.As(err, &aerr) {
			return nil, err
		}
		return nil, streamBuildError(err)
	}
	s.activated = true

	s.log.Info().
		Str("device", s.device).
		Str("encoding", s.format.Encoding.String()).
		Int("channels", s.format.Channels).
		Uint32("sample_rate", s.format.SampleRate).
		Msg("capture session active")

	return &ActiveSession{session: s, cb: cb}, nil
}

// Close releases the driver. It is safe to call more than once.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.driver.Close(); err != nil {
		return deviceError(err)
	}
	return nil
}

// ActiveSession is a session whose callback is installed.
type ActiveSession struct {
	session *Session
	cb      *Callback
}

// SampleRate is the latest rate observed by the callback.
func (a *ActiveSession) SampleRate() uint32 { return a.cb.SampleRate() }

// Err reports why delivery ended, if the backend signalled a failure.
func (a *ActiveSession) Err() error { return a.cb.Err() }

// Close stops the device and marks the ring finished.
func (a *ActiveSession) Close() error {
	err := a.session.Close()
	a.cb.producer.Close()
	return err
}

// Callback is the real-time side of a session. Its Deliver methods run on the
// OS audio thread: they never block and never allocate.
type Callback struct {
	format   Format
	decode   decodeFunc
	producer *ringbuf.Producer
	log      zerolog.Logger

	rate atomic.Uint32

	scratch []float32 // interleaved, blockFrames*channels
	mono    []float32 // blockFrames

	err atomic.Pointer[Error]
}

func newCallback(f Format, p *ringbuf.Producer, log zerolog.Logger) (*Callback, error) {
	if f.Channels < 1 || f.SampleRate == 0 {
		return nil, unsupportedFormat(f.String())
	}
	decode, err := decoderFor(f.Encoding)
	if err != nil {
		return nil, err
	}
	cb := &Callback{
		format:   f,
		decode:   decode,
		producer: p,
		log:      log,
		scratch:  make([]float32, blockFrames*f.Channels),
		mono:     make([]float32, blockFrames),
	}
	cb.rate.Store(f.SampleRate)
	return cb, nil
}

// SampleRate returns the current device rate.
func (cb *Callback) SampleRate() uint32 { return cb.rate.Load() }

// ObserveRate records the rate the device reports. A change is logged once.
func (cb *Callback) ObserveRate(rate uint32) {
	if rate == 0 {
		return
	}
	if old := cb.rate.Swap(rate); old != rate {
		cb.log.Info().
			Uint32("from", old).
			Uint32("to", rate).
			Msg("sample rate changed")
	}
}

// DeliverBytes normalizes a buffer of little-endian samples in the session's
// native encoding. rate is the device rate at delivery, or 0 if unknown.
// Bytes past the last whole frame are ignored.
func (cb *Callback) DeliverBytes(data []byte, rate uint32) {
	cb.ObserveRate(rate)

	frameBytes := cb.format.frameBytes()
	block := blockFrames * frameBytes
	for len(data) >= frameBytes {
		n := min(len(data), block)
		n -= n % frameBytes
		k := cb.decode(cb.scratch, data[:n])
		cb.push(cb.scratch[:k])
		data = data[n:]
	}
}

// DeliverInt16 handles backends that hand over typed 16-bit buffers.
func (cb *Callback) DeliverInt16(in []int16) {
	ch := cb.format.Channels
	for len(in) >= ch {
		n := min(len(in), blockFrames*ch)
		n -= n % ch
		for i, v := range in[:n] {
			cb.scratch[i] = Int16ToFloat32(v)
		}
		cb.push(cb.scratch[:n])
		in = in[n:]
	}
}

// DeliverInt32 handles backends that hand over typed 32-bit integer buffers.
func (cb *Callback) DeliverInt32(in []int32) {
	ch := cb.format.Channels
	for len(in) >= ch {
		n := min(len(in), blockFrames*ch)
		n -= n % ch
		for i, v := range in[:n] {
			cb.scratch[i] = Int32ToFloat32(v)
		}
		cb.push(cb.scratch[:n])
		in = in[n:]
	}
}

// DeliverFloat32 handles float buffers. Mono input goes to the ring as is.
func (cb *Callback) DeliverFloat32(in []float32) {
	ch := cb.format.Channels
	if ch == 1 {
		cb.producer.Push(in)
		return
	}
	for len(in) >= ch {
		n := min(len(in), blockFrames*ch)
		n -= n % ch
		cb.push(in[:n])
		in = in[n:]
	}
}

func (cb *Callback) push(interleaved []float32) {
	if cb.format.Channels == 1 {
		cb.producer.Push(interleaved)
		return
	}
	k := DownmixInterleaved(cb.mono, interleaved, cb.format.Channels)
	cb.producer.Push(cb.mono[:k])
}

// Fail ends the stream after the backend lost the device. Only the first
// error is kept.
func (cb *Callback) Fail(err error) {
	cb.err.CompareAndSwap(nil, &Error{Kind: KindStream, Err: err})
	cb.producer.Close()
}

// Err returns the failure recorded by Fail, if any.
func (cb *Callback) Err() error {
	if e := cb.err.Load(); e != nil {
		return e
	}
	return nil
}
