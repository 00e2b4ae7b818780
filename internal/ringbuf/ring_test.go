package ringbuf

import (
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(from, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(from + i)
	}
	return out
}

func TestNewRoundsCapacityUp(t *testing.T) {
	tests := []struct {
		requested int
		want      int
	}{
		{requested: 0, want: 1},
		{requested: 1, want: 1},
		{requested: 3, want: 4},
		{requested: 1000, want: 1024},
		{requested: 48000, want: 65536},
	}

	for _, tt := range tests {
		p, c := New(tt.requested)
		assert.Equal(t, tt.want, p.Cap(), "requested %d", tt.requested)
		assert.Equal(t, tt.want, c.Cap(), "requested %d", tt.requested)
	}
}

func TestPushBelowCapacityNeverDrops(t *testing.T) {
	p, c := New(16)

	assert.Equal(t, 5, p.Push(seq(0, 5)))
	assert.Equal(t, 10, p.Push(seq(5, 10)))
	assert.Zero(t, p.Dropped())
	assert.Equal(t, 15, c.Len())

	dst := make([]float32, 32)
	n := c.PopInto(dst)
	require.Equal(t, 15, n)
	assert.Equal(t, seq(0, 15), dst[:n])
}

func TestPushOverCapacityDropsExcess(t *testing.T) {
	p, c := New(8)

	require.Equal(t, 3, p.Push(seq(0, 3)))

	// 5 slots remain, so 12-5 samples must go.
	accepted := p.Push(seq(3, 12))
	assert.Equal(t, 5, accepted)
	assert.Equal(t, uint64(7), p.Dropped())
	assert.Equal(t, uint64(7), c.Dropped())

	dst := make([]float32, 8)
	n := c.PopInto(dst)
	require.Equal(t, 8, n)
	assert.Equal(t, seq(0, 8), dst, "accepted prefix must be preserved in order")
}

func TestPushIntoFullRingAcceptsNothing(t *testing.T) {
	p, _ := New(4)
	require.Equal(t, 4, p.Push(seq(0, 4)))

	assert.Equal(t, 0, p.Push(seq(4, 3)))
	assert.Equal(t, uint64(3), p.Dropped())
}

func TestPopIntoRespectsDestinationSize(t *testing.T) {
	p, c := New(16)
	p.Push(seq(0, 10))

	dst := make([]float32, 4)
	require.Equal(t, 4, c.PopInto(dst))
	assert.Equal(t, seq(0, 4), dst)
	require.Equal(t, 4, c.PopInto(dst))
	assert.Equal(t, seq(4, 4), dst)
	require.Equal(t, 2, c.PopInto(dst))
	assert.Equal(t, seq(8, 2), dst[:2])
	assert.Equal(t, 0, c.PopInto(dst))
}

func TestWrapAround(t *testing.T) {
	p, c := New(8)
	dst := make([]float32, 8)

	next := 0
	for round := 0; round < 20; round++ {
		n := 3 + round%5
		require.Equal(t, n, p.Push(seq(next, n)))
		got := c.PopInto(dst)
		require.Equal(t, n, got)
		assert.Equal(t, seq(next, n), dst[:got])
		next += n
	}
	assert.Zero(t, p.Dropped())
}

func TestPushEmptySliceIsNoop(t *testing.T) {
	p, c := New(4)
	assert.Equal(t, 0, p.Push(nil))
	assert.Zero(t, c.Wake().Notifications())
}

func TestPushDoesNotAllocate(t *testing.T) {
	p, c := New(1024)
	samples := seq(0, 128)
	dst := make([]float32, 1024)

	allocs := testing.AllocsPerRun(100, func() {
		p.Push(samples)
		c.PopInto(dst)
	})
	assert.Zero(t, allocs)
}

func TestConcurrentProducerConsumerPreservesOrder(t *testing.T) {
	const total = 200_000
	p, c := New(1024)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		next := 0
		for next < total {
			n := min(64, total-next, p.Free())
			if n == 0 {
				runtime.Gosched()
				continue
			}
			assert.Equal(t, n, p.Push(seq(next, n)))
			next += n
		}
		p.Close()
	}()

	dst := make([]float32, 256)
	expected := 0
	deadline := time.After(10 * time.Second)
	for expected < total {
		n := c.PopInto(dst)
		for i := 0; i < n; i++ {
			require.Equal(t, float32(expected), dst[i])
			expected++
		}
		if n > 0 {
			continue
		}
		wait, ready := c.Arm()
		if ready {
			continue
		}
		select {
		case <-wait:
		case <-deadline:
			t.Fatalf("consumer starved at %d of %d", expected, total)
		}
	}
	wg.Wait()
	assert.Zero(t, p.Dropped())
}

func TestProducerFree(t *testing.T) {
	p, c := New(8)
	assert.Equal(t, 8, p.Free())

	p.Push(seq(0, 5))
	assert.Equal(t, 3, p.Free())

	dst := make([]float32, 2)
	c.PopInto(dst)
	assert.Equal(t, 5, p.Free())

	p.Push(seq(5, 5))
	assert.Zero(t, p.Free())
	assert.Zero(t, p.Dropped())
}
