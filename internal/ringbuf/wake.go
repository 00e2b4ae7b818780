package ringbuf

import (
	"sync"
	"sync/atomic"
)

// WakeCell lets the real-time producer wake a parked consumer without
// blocking. The critical section is O(1) and only ever contended by the two
// ring roles.
//
// pending is set by the first notification after the consumer armed and
// cleared when the consumer arms again, so any burst of pushes in between
// issues a single notification.
type WakeCell struct {
	mu      sync.Mutex
	pending bool
	waiting bool
	ch      chan struct{}

	issued atomic.Uint64
}

// NewWakeCell returns an idle cell.
func NewWakeCell() *WakeCell {
	return &WakeCell{ch: make(chan struct{}, 1)}
}

// Notify records that data is pending and signals the consumer if it is
// parked. It returns false when the notification was coalesced into an
// earlier one.
func (w *WakeCell) Notify() bool {
	w.mu.Lock()
	if w.pending {
		w.mu.Unlock()
		return false
	}
	w.pending = true
	if w.waiting {
		w.waiting = false
		select {
		case w.ch <- struct{}{}:
		default:
		}
	}
	w.mu.Unlock()

	w.issued.Add(1)
	return true
}

// Arm parks the consumer. ready is evaluated under the same lock the producer
// takes in Notify, so a push that lands between the consumer's empty check and
// this call is either seen by ready or wakes the returned channel.
func (w *WakeCell) Arm(ready func() bool) (<-chan struct{}, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if ready() {
		return nil, true
	}

	w.pending = false
	w.waiting = true
	select {
	case <-w.ch:
	default:
	}
	return w.ch, false
}

// Notifications returns how many notifications have been issued.
func (w *WakeCell) Notifications() uint64 {
	return w.issued.Load()
}
