// Package ringbuf hands float32 samples from a real-time audio callback to a
// single consumer goroutine without locking on the data path.
//
// A ring has exactly two roles. The Producer is owned by the audio callback:
// Push never blocks and never allocates, and when the ring is full the excess
// is dropped and counted. The Consumer is owned by one goroutine: PopInto
// drains without blocking, and Arm parks the consumer on the WakeCell when the
// ring is empty. Calling either side from any other goroutine is undefined.
package ringbuf

import (
	"sync/atomic"
)

// cacheLine keeps the producer and consumer indices on separate lines.
type cacheLine [64]byte

type ring struct {
	data []float32
	mask uint64

	_    cacheLine
	head atomic.Uint64 // next write position, written by the producer
	_    cacheLine
	tail atomic.Uint64 // next read position, written by the consumer
	_    cacheLine

	dropped atomic.Uint64
	closed  atomic.Bool
	wake    *WakeCell
}

// New allocates a ring holding at least capacity samples and returns its two
// ends. Capacity is rounded up to the next power of two.
func New(capacity int) (*Producer, *Consumer) {
	if capacity < 1 {
		capacity = 1
	}
	size := 1
	for size < capacity {
		size <<= 1
	}

	r := &ring{
		data: make([]float32, size),
		mask: uint64(size - 1),
		wake: NewWakeCell(),
	}
	return &Producer{r: r}, &Consumer{r: r}
}

func (r *ring) len() int {
	return int(r.head.Load() - r.tail.Load())
}

// Producer is the write end. It belongs to the real-time callback.
type Producer struct {
	r *ring
}

// Push copies as many samples as fit and returns how many were accepted.
// The rest are dropped and added to the drop counter. A push that stores at
// least one sample notifies the WakeCell, which coalesces repeated notices.
func (p *Producer) Push(samples []float32) int {
	r := p.r
	if len(samples) == 0 {
		return 0
	}

	head := r.head.Load()
	tail := r.tail.Load()
	free := len(r.data) - int(head-tail)

	n := len(samples)
	if n > free {
		r.dropped.Add(uint64(n - free))
		n = free
	}
	if n == 0 {
		return 0
	}

	start := int(head & r.mask)
	first := copy(r.data[start:], samples[:n])
	if first < n {
		copy(r.data, samples[first:n])
	}
	r.head.Store(head + uint64(n))

	r.wake.Notify()
	return n
}

// Close marks the stream as finished and wakes a parked consumer. Samples
// already in the ring can still be drained.
func (p *Producer) Close() {
	if p.r.closed.CompareAndSwap(false, true) {
		p.r.wake.Notify()
	}
}

// Cap returns the ring capacity in samples.
func (p *Producer) Cap() int { return len(p.r.data) }

// Dropped returns the number of samples rejected because the ring was full.
func (p *Producer) Dropped() uint64 { return p.r.dropped.Load() }

// Free is how many samples the next Push accepts at least. The consumer only
// ever grows it.
func (p *Producer) Free() int { return len(p.r.data) - p.r.len() }

// Consumer is the read end. It belongs to one goroutine.
type Consumer struct {
	r *ring
}

// PopInto drains up to len(dst) samples into dst and returns the count.
// Zero means nothing is pending right now.
func (c *Consumer) PopInto(dst []float32) int {
	r := c.r
	tail := r.tail.Load()
	head := r.head.Load()

	n := int(head - tail)
	if n > len(dst) {
		n = len(dst)
	}
	if n == 0 {
		return 0
	}

	start := int(tail & r.mask)
	first := copy(dst[:n], r.data[start:])
	if first < n {
		copy(dst[first:n], r.data)
	}
	r.tail.Store(tail + uint64(n))
	return n
}

// Arm registers the consumer on the WakeCell after it found the ring empty.
// When data (or a close) landed in the meantime it returns ready=true and no
// channel; otherwise the returned channel is signalled by the next push.
func (c *Consumer) Arm() (<-chan struct{}, bool) {
	return c.r.wake.Arm(c.ready)
}

func (c *Consumer) ready() bool {
	return c.r.len() > 0 || c.r.closed.Load()
}

// Len returns the number of samples waiting to be drained.
func (c *Consumer) Len() int { return c.r.len() }

// Cap returns the ring capacity in samples.
func (c *Consumer) Cap() int { return len(c.r.data) }

// Closed reports whether the producer side has finished.
func (c *Consumer) Closed() bool { return c.r.closed.Load() }

// Dropped returns the number of samples the producer had to discard.
func (c *Consumer) Dropped() uint64 { return c.r.dropped.Load() }

// Wake exposes the ring's WakeCell for diagnostics.
func (c *Consumer) Wake() *WakeCell { return c.r.wake }
