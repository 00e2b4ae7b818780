// Package metrics keeps per-source capture counters that can be read from any
// goroutine without blocking the capture loop.
package metrics

import (
	"sync/atomic"

	"github.com/petems/heronote/internal/audio"
)

// SourceMetrics is a point-in-time view of one source.
type SourceMetrics struct {
	Source           audio.Source `json:"source"`
	DeviceName       string       `json:"device_name"`
	Capturing        bool         `json:"capturing"`
	SampleRate       uint32       `json:"sample_rate"`
	SamplesProcessed uint64       `json:"samples_processed"`
	SamplesDropped   uint64       `json:"samples_dropped"`
}

type counters struct {
	device    atomic.Pointer[string]
	capturing atomic.Bool
	rate      atomic.Uint32
	processed atomic.Uint64
	dropped   atomic.Uint64
}

// Registry holds counters for every source.
type Registry struct {
	sources [2]counters
}

func New() *Registry {
	return &Registry{}
}

func (r *Registry) get(src audio.Source) *counters {
	if int(src) < 0 || int(src) >= len(r.sources) {
		return nil
	}
	return &r.sources[src]
}

// Started resets the source counters for a new capture.
func (r *Registry) Started(src audio.Source, device string, rate uint32) {
	c := r.get(src)
	if c == nil {
		return
	}
	c.device.Store(&device)
	c.rate.Store(rate)
	c.processed.Store(0)
	c.dropped.Store(0)
	c.capturing.Store(true)
}

// Stopped marks the source idle. Counters keep their last values.
func (r *Registry) Stopped(src audio.Source) {
	if c := r.get(src); c != nil {
		c.capturing.Store(false)
	}
}

// Record accounts for one delivered chunk and the samples dropped since the
// previous one.
func (r *Registry) Record(src audio.Source, samples int, rate uint32, dropped uint64) {
	c := r.get(src)
	if c == nil {
		return
	}
	c.processed.Add(uint64(samples))
	c.rate.Store(rate)
	c.dropped.Add(dropped)
}

// Snapshot reads the counters of one source.
func (r *Registry) Snapshot(src audio.Source) SourceMetrics {
	c := r.get(src)
	if c == nil {
		return SourceMetrics{Source: src}
	}
	m := SourceMetrics{
		Source:           src,
		Capturing:        c.capturing.Load(),
		SampleRate:       c.rate.Load(),
		SamplesProcessed: c.processed.Load(),
		SamplesDropped:   c.dropped.Load(),
	}
	if d := c.device.Load(); d != nil {
		m.DeviceName = *d
	}
	return m
}

// All returns a snapshot of every source.
func (r *Registry) All() []SourceMetrics {
	out := make([]SourceMetrics, 0, len(audio.Sources))
	for _, src := range audio.Sources {
		out = append(out, r.Snapshot(src))
	}
	return out
}

// Reset starts a new reporting window: sample counters go back to zero while
// device, rate and capturing state are kept.
func (r *Registry) Reset() {
	for i := range r.sources {
		c := &r.sources[i]
		c.processed.Store(0)
		c.dropped.Store(0)
	}
}
