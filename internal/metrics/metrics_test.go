package metrics

import (
	"sync"
	"testing"

	"github.com/petems/heronote/internal/audio"
	"github.com/stretchr/testify/assert"
)

func TestRegistryLifecycle(t *testing.T) {
	r := New()

	r.Started(audio.SourceMicrophone, "USB Mic", 48000)
	r.Record(audio.SourceMicrophone, 480, 48000, 0)
	r.Record(audio.SourceMicrophone, 480, 44100, 12)

	m := r.Snapshot(audio.SourceMicrophone)
	assert.True(t, m.Capturing)
	assert.Equal(t, "USB Mic", m.DeviceName)
	assert.Equal(t, uint32(44100), m.SampleRate)
	assert.Equal(t, uint64(960), m.SamplesProcessed)
	assert.Equal(t, uint64(12), m.SamplesDropped)

	r.Stopped(audio.SourceMicrophone)
	m = r.Snapshot(audio.SourceMicrophone)
	assert.False(t, m.Capturing)
	assert.Equal(t, uint64(960), m.SamplesProcessed)

	assert.False(t, r.Snapshot(audio.SourceSystem).Capturing)
}

func TestRegistryStartedResetsCounters(t *testing.T) {
	r := New()
	r.Started(audio.SourceSystem, "tap", 48000)
	r.Record(audio.SourceSystem, 100, 48000, 5)

	r.Started(audio.SourceSystem, "tap", 48000)
	m := r.Snapshot(audio.SourceSystem)
	assert.Zero(t, m.SamplesProcessed)
	assert.Zero(t, m.SamplesDropped)
}

func TestRegistryReset(t *testing.T) {
	r := New()
	r.Started(audio.SourceMicrophone, "mic", 16000)
	r.Record(audio.SourceMicrophone, 10, 16000, 1)

	r.Reset()
	m := r.Snapshot(audio.SourceMicrophone)
	assert.True(t, m.Capturing)
	assert.Equal(t, "mic", m.DeviceName)
	assert.Equal(t, uint32(16000), m.SampleRate)
	assert.Zero(t, m.SamplesProcessed)
	assert.Zero(t, m.SamplesDropped)
	assert.Len(t, r.All(), 2)

	r.Record(audio.SourceMicrophone, 4, 16000, 2)
	m = r.Snapshot(audio.SourceMicrophone)
	assert.Equal(t, uint64(4), m.SamplesProcessed)
	assert.Equal(t, uint64(2), m.SamplesDropped)
}

func TestRegistryAccumulatesDrops(t *testing.T) {
	r := New()
	r.Started(audio.SourceSystem, "tap", 48000)
	r.Record(audio.SourceSystem, 10, 48000, 3)
	r.Record(audio.SourceSystem, 10, 48000, 0)
	r.Record(audio.SourceSystem, 10, 48000, 4)
	assert.Equal(t, uint64(7), r.Snapshot(audio.SourceSystem).SamplesDropped)
}

func TestRegistryIgnoresUnknownSource(t *testing.T) {
	r := New()
	r.Started(audio.Source(7), "x", 1)
	r.Record(audio.Source(7), 1, 1, 1)
	assert.Equal(t, SourceMetrics{Source: audio.Source(7)}, r.Snapshot(audio.Source(7)))
}

func TestRegistryConcurrentRecord(t *testing.T) {
	r := New()
	r.Started(audio.SourceMicrophone, "mic", 48000)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				r.Record(audio.SourceMicrophone, 1, 48000, 0)
				_ = r.Snapshot(audio.SourceMicrophone)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(8000), r.Snapshot(audio.SourceMicrophone).SamplesProcessed)
}
