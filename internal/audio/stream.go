package audio

import (
	"context"
	"fmt"
	"time"

	"github.com/petems/heronote/internal/ringbuf"
	"github.com/rs/zerolog"
)

const (
	// DefaultRingDuration is how much audio the ring absorbs while the
	// consumer is not scheduled.
	DefaultRingDuration = 2 * time.Second
	// MinRingDuration is the smallest ring the stream accepts.
	MinRingDuration = time.Second

	defaultMaxChunk = 4096
	// Rings are sized for at least this rate so a live switch to a higher
	// rate does not immediately overflow.
	minRingRate = 48000

	dropLogInterval = time.Second
)

// Chunk is one delivery of mono samples. Samples is owned by the receiver.
type Chunk struct {
	Samples    []float32
	SampleRate uint32
	// RateChanged is set on the first chunk drained after the device
	// switched rate. Consumers that care about continuity start over here.
	RateChanged bool
}

// StreamOptions tunes NewStream. Zero values pick defaults.
type StreamOptions struct {
	RingDuration time.Duration
	MaxChunk     int
}

func (o StreamOptions) withDefaults() StreamOptions {
	if o.RingDuration == 0 {
		o.RingDuration = DefaultRingDuration
	}
	if o.RingDuration < MinRingDuration {
		o.RingDuration = MinRingDuration
	}
	if o.MaxChunk <= 0 {
		o.MaxChunk = defaultMaxChunk
	}
	return o
}

// Stream pulls normalized samples out of an active session. It belongs to one
// goroutine, and closing it is the only way the session is torn down.
type Stream struct {
	session  *Session
	active   *ActiveSession
	consumer *ringbuf.Consumer
	maxChunk int
	log      zerolog.Logger

	lastRate      uint32
	loggedDropped uint64
	lastDropLog   time.Time

	closed bool
}

// NewStream activates s behind a fresh ring. The stream takes ownership of s:
// on error s is closed.
func NewStream(s *Session, opts StreamOptions) (*Stream, error) {
	opts = opts.withDefaults()

	rate := max(s.NativeSampleRate(), minRingRate)
	capacity := int(uint64(rate) * uint64(opts.RingDuration.Milliseconds()) / 1000)
	producer, consumer := ringbuf.New(capacity)

	active, err := s.Activate(producer)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	return &Stream{
		session:  s,
		active:   active,
		consumer: consumer,
		maxChunk: opts.MaxChunk,
		log:      s.log,
		lastRate: s.NativeSampleRate(),
	}, nil
}

// Session returns the session the stream owns.
func (st *Stream) Session() *Session { return st.session }

// SampleRate is the latest rate observed by the device callback.
func (st *Stream) SampleRate() uint32 { return st.active.SampleRate() }

// Dropped returns how many samples overflowed the ring so far.
func (st *Stream) Dropped() uint64 { return st.consumer.Dropped() }

// Poll never blocks. It returns one of:
//
//   - a non-empty chunk and a nil channel when samples were pending;
//   - an empty chunk and a channel that is signalled when more samples (or
//     the end of the stream) arrive;
//   - ErrStreamEnded, wrapping the backend failure if there was one.
func (st *Stream) Poll() (Chunk, <-chan struct{}, error) {
	if st.closed {
		return Chunk{}, nil, ErrStreamEnded
	}

	for {
		// Read closed before draining: everything pushed before the close is
		// then visible to the drain.
		closed := st.consumer.Closed()
		if chunk, ok := st.drain(); ok {
			return chunk, nil, nil
		}
		if closed {
			if err := st.active.Err(); err != nil {
				return Chunk{}, nil, fmt.Errorf("%w: %w", ErrStreamEnded, err)
			}
			return Chunk{}, nil, ErrStreamEnded
		}

		wait, ready := st.consumer.Arm()
		if !ready {
			return Chunk{}, wait, nil
		}
	}
}

// Next blocks until a chunk is available, the stream ends or ctx is done.
func (st *Stream) Next(ctx context.Context) (Chunk, error) {
	for {
		chunk, wait, err := st.Poll()
		if err != nil || wait == nil {
			return chunk, err
		}
		select {
		case <-wait:
		case <-ctx.Done():
			return Chunk{}, ctx.Err()
		}
	}
}

func (st *Stream) drain() (Chunk, bool) {
	st.noteDrops()

	avail := st.consumer.Len()
	if avail == 0 {
		return Chunk{}, false
	}
	samples := make([]float32, min(avail, st.maxChunk))
	n := st.consumer.PopInto(samples)

	rate := st.active.SampleRate()
	changed := rate != st.lastRate
	st.lastRate = rate

	return Chunk{Samples: samples[:n], SampleRate: rate, RateChanged: changed}, true
}

func (st *Stream) noteDrops() {
	total := st.consumer.Dropped()
	if total == st.loggedDropped {
		return
	}
	now := time.Now()
	if now.Sub(st.lastDropLog) < dropLogInterval {
		return
	}
	st.log.Warn().
		Uint64("dropped", total-st.loggedDropped).
		Uint64("dropped_total", total).
		Msg("ring buffer full, samples dropped")
	st.loggedDropped = total
	st.lastDropLog = now
}

// Close stops the device and releases the session. Further polls report
// ErrStreamEnded.
func (st *Stream) Close() error {
	if st.closed {
		return nil
	}
	st.closed = true
	return st.active.Close()
}
