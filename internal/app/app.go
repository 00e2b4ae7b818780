package app

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/petems/heronote/internal/audio"
	"github.com/petems/heronote/internal/config"
	"github.com/petems/heronote/internal/metrics"
	"github.com/petems/heronote/internal/recorder"
	"github.com/rs/zerolog"
)

// Sink receives every chunk a capture delivers.
type Sink interface {
	Write(chunk audio.Chunk) error
	Close() error
}

// SinkFactory opens a sink when a capture starts. Returning a nil sink means
// chunks are only counted.
type SinkFactory func(src audio.Source, sampleRate uint32) (Sink, error)

type Config struct {
	Host    audio.Host
	Config  *config.Config
	Logger  zerolog.Logger
	Metrics *metrics.Registry // Optional - created when nil
	Sinks   SinkFactory       // Optional - WAV recorder when recording is enabled
}

// App coordinates start and stop of every capture source. Each running source
// is owned by one goroutine locked to its OS thread; other goroutines only
// flip atomic flags.
type App struct {
	host    audio.Host
	cfg     *config.Config
	log     zerolog.Logger
	metrics *metrics.Registry
	sinks   SinkFactory

	mu     sync.Mutex // serializes Start, Stop and Shutdown
	states [2]sourceState
	wg     sync.WaitGroup
}

func New(cfg Config) *App {
	a := &App{
		host:    cfg.Host,
		cfg:     cfg.Config,
		log:     cfg.Logger,
		metrics: cfg.Metrics,
		sinks:   cfg.Sinks,
	}
	if a.cfg == nil {
		a.cfg = config.Default()
	}
	if a.metrics == nil {
		a.metrics = metrics.New()
	}
	if a.sinks == nil && a.cfg.RecordingEnabled() {
		a.sinks = a.recorderSink
	}
	return a
}

func (a *App) recorderSink(src audio.Source, rate uint32) (Sink, error) {
	return recorder.New(a.cfg.Debug.AudioOutputDir, src, rate, a.log)
}

func (a *App) state(src audio.Source) (*sourceState, error) {
	if int(src) < 0 || int(src) >= len(a.states) {
		return nil, fmt.Errorf("unknown audio source %d", int(src))
	}
	return &a.states[src], nil
}

// Start begins capturing src. It returns once the capture goroutine holds the
// device, or with the acquisition error unchanged, in which case src is Idle
// again.
func (a *App) Start(src audio.Source) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	st, err := a.state(src)
	if err != nil {
		return err
	}
	if !st.transition(PhaseIdle, PhaseStarting) {
		return &StateError{Source: src, Err: ErrAlreadyRunning}
	}

	if err := a.host.Probe(src); err != nil {
		st.set(PhaseIdle)
		a.log.Error().Err(err).Str("source", src.String()).Msg("Capture pre-flight failed")
		return err
	}

	st.stopRequested.Store(false)
	ready := make(chan error, 1)
	a.wg.Add(1)
	go a.capture(src, st, ready)

	if err := <-ready; err != nil {
		a.log.Error().Err(err).Str("source", src.String()).Msg("Failed to start capture")
		return err
	}
	return nil
}

// Stop asks the capture goroutine of src to finish. It does not wait: the
// goroutine sees the request within one poll interval.
func (a *App) Stop(src audio.Source) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopLocked(src)
}

func (a *App) stopLocked(src audio.Source) error {
	st, err := a.state(src)
	if err != nil {
		return err
	}
	if !st.transition(PhaseRunning, PhaseStopRequested) {
		return &StateError{Source: src, Err: ErrNotRunning}
	}
	st.stopRequested.Store(true)
	a.log.Info().Str("source", src.String()).Msg("Stop requested")
	return nil
}

// IsRunning reports whether the capture goroutine of src is delivering.
func (a *App) IsRunning(src audio.Source) bool {
	st, err := a.state(src)
	if err != nil {
		return false
	}
	return st.running.Load()
}

// Phase returns the lifecycle phase of src.
func (a *App) Phase(src audio.Source) Phase {
	st, err := a.state(src)
	if err != nil {
		return PhaseIdle
	}
	return st.load()
}

// Metrics exposes the per-source counters.
func (a *App) Metrics() *metrics.Registry { return a.metrics }

func (a *App) ListDevices() ([]audio.Device, error) {
	return a.host.ListDevices()
}

// Shutdown stops every running source and waits for their goroutines.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	for _, src := range audio.Sources {
		if a.Phase(src) == PhaseRunning {
			_ = a.stopLocked(src)
		}
	}
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// capture owns the session and stream of src for their whole lifetime.
func (a *App) capture(src audio.Source, st *sourceState, ready chan<- error) {
	defer a.wg.Done()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	log := a.log.With().Str("source", src.String()).Logger()

	session, err := a.host.Open(src)
	if err != nil {
		st.set(PhaseIdle)
		ready <- err
		return
	}
	stream, err := audio.NewStream(session, audio.StreamOptions{RingDuration: a.cfg.RingDuration()})
	if err != nil {
		st.set(PhaseIdle)
		ready <- err
		return
	}

	sink := a.openSink(src, stream.SampleRate(), log)

	a.metrics.Started(src, session.DeviceName(), stream.SampleRate())
	st.running.Store(true)
	st.set(PhaseRunning)
	ready <- nil

	log.Info().
		Str("device", session.DeviceName()).
		Str("session", session.ID().String()).
		Uint32("sample_rate", stream.SampleRate()).
		Msg("Capture started")

	a.run(src, st, stream, sink, log)

	if err := stream.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close capture stream")
	}
	if sink != nil {
		if err := sink.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close sink")
		}
	}
	a.metrics.Stopped(src)
	st.running.Store(false)
	st.set(PhaseIdle)

	log.Info().Uint64("dropped", stream.Dropped()).Msg("Capture stopped")
}

func (a *App) openSink(src audio.Source, rate uint32, log zerolog.Logger) Sink {
	if a.sinks == nil {
		return nil
	}
	sink, err := a.sinks(src, rate)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open sink, continuing without it")
		return nil
	}
	return sink
}

// run polls the stream until a stop is requested or the stream ends. Each
// wait is bounded by the poll interval so the stop flag is seen in time.
func (a *App) run(src audio.Source, st *sourceState, stream *audio.Stream, sink Sink, log zerolog.Logger) {
	interval := a.cfg.PollInterval()
	timer := time.NewTimer(interval)
	defer timer.Stop()

	var dropped uint64

	for !st.stopRequested.Load() {
		chunk, wait, err := stream.Poll()
		if err != nil {
			log.Warn().Err(err).Msg("Capture stream ended unexpectedly")
			return
		}

		if wait == nil {
			total := stream.Dropped()
			a.metrics.Record(src, len(chunk.Samples), chunk.SampleRate, total-dropped)
			dropped = total
			if sink != nil {
				if err := sink.Write(chunk); err != nil {
					log.Error().Err(err).Msg("Sink write failed, disabling sink")
					_ = sink.Close()
					sink = nil
				}
			}
			continue
		}

		timer.Reset(interval)
		select {
		case <-wait:
		case <-timer.C:
		}
	}
}
