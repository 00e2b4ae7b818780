package ringbuf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBurstOfPushesIssuesOneNotification(t *testing.T) {
	p, c := New(1024)

	for i := 0; i < 50; i++ {
		p.Push(seq(i*4, 4))
	}
	assert.Equal(t, uint64(1), c.Wake().Notifications())

	// Consumer drains and parks; the next burst is worth one more.
	dst := make([]float32, 1024)
	require.Equal(t, 200, c.PopInto(dst))
	wait, ready := c.Arm()
	require.False(t, ready)
	require.NotNil(t, wait)

	for i := 0; i < 10; i++ {
		p.Push(seq(0, 4))
	}
	assert.Equal(t, uint64(2), c.Wake().Notifications())

	select {
	case <-wait:
	default:
		t.Fatal("parked consumer was not signalled")
	}
}

func TestArmSeesDataPushedBeforeArming(t *testing.T) {
	p, c := New(16)

	// A push lands after the consumer's empty check but before it arms.
	p.Push(seq(0, 2))

	wait, ready := c.Arm()
	assert.True(t, ready)
	assert.Nil(t, wait)
}

func TestArmIgnoresStaleSignal(t *testing.T) {
	p, c := New(16)
	dst := make([]float32, 16)

	wait, ready := c.Arm()
	require.False(t, ready)
	p.Push(seq(0, 1))
	require.Equal(t, 1, c.PopInto(dst))

	// The first signal was never received; re-arming must discard it so the
	// consumer actually parks.
	_ = wait
	wait, ready = c.Arm()
	require.False(t, ready)

	select {
	case <-wait:
		t.Fatal("stale signal leaked into a fresh arm")
	default:
	}
}

func TestCloseWakesParkedConsumer(t *testing.T) {
	p, c := New(16)

	wait, ready := c.Arm()
	require.False(t, ready)

	go func() {
		time.Sleep(10 * time.Millisecond)
		p.Close()
	}()

	select {
	case <-wait:
	case <-time.After(time.Second):
		t.Fatal("close did not wake the consumer")
	}
	assert.True(t, c.Closed())

	_, ready = c.Arm()
	assert.True(t, ready, "a closed ring is always ready")
}

func TestNotifyWithoutWaiterDoesNotBlock(t *testing.T) {
	w := NewWakeCell()
	assert.True(t, w.Notify())
	assert.False(t, w.Notify())
	assert.Equal(t, uint64(1), w.Notifications())
}
