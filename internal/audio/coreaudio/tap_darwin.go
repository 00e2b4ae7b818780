//go:build darwin

package coreaudio

/*
#cgo CFLAGS: -fobjc-arc -mmacosx-version-min=13.0
#cgo LDFLAGS: -framework CoreAudio -framework Foundation
#include <stdlib.h>
#include "tap_darwin.h"
*/
import "C"

import (
	"errors"
	"math"
	"runtime/cgo"
	"sync/atomic"
	"unsafe"
)

var (
	// ErrUnsupported is returned before macOS 14.2, which introduced taps.
	ErrUnsupported = errors.New("coreaudio: process taps are not supported on this macOS version")
	// ErrNoOutputDevice means there is no default output device to tap.
	ErrNoOutputDevice = errors.New("coreaudio: no default output device")
)

// Supported reports whether the running macOS can create process taps.
func Supported() bool {
	return C.hn_tap_supported() != 0
}

// Tap is a global system-output tap behind a private aggregate device.
type Tap struct {
	ref    *C.hn_tap
	handle cgo.Handle
	format Format

	rate    atomic.Uint64 // float64 bits, updated by the nominal rate listener
	handler atomic.Pointer[func(data []byte, rate float64)]
}

// OpenTap creates the tap and its aggregate device and reads the tap format.
// No audio flows until Start.
func OpenTap(name string) (*Tap, error) {
	t := &Tap{}
	t.handle = cgo.NewHandle(t)

	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	var (
		ref    *C.hn_tap
		format C.hn_tap_format
		cerr   *C.char
	)
	rc := C.hn_tap_open(C.uintptr_t(t.handle), cname, &ref, &format, &cerr)
	if rc != C.HN_TAP_OK {
		t.handle.Delete()
		return nil, tapError(rc, cerr)
	}

	t.ref = ref
	t.format = Format{
		SampleRate:     float64(format.sample_rate),
		Channels:       int(format.channels),
		BitsPerChannel: int(format.bits_per_channel),
		Float:          format.is_float != 0,
		SignedInteger:  format.is_signed != 0,
		BigEndian:      format.is_big_endian != 0,
	}
	t.rate.Store(math.Float64bits(t.format.SampleRate))
	return t, nil
}

// Format returns the tap format read at open time.
func (t *Tap) Format() Format { return t.format }

// SampleRate returns the aggregate device's current nominal rate.
func (t *Tap) SampleRate() float64 {
	return math.Float64frombits(t.rate.Load())
}

// Start installs fn as the IOProc handler and starts the device. fn runs on
// the CoreAudio IO thread; data is only valid for the duration of the call.
func (t *Tap) Start(fn func(data []byte, rate float64)) error {
	if t.ref == nil {
		return errors.New("coreaudio: tap closed")
	}
	t.handler.Store(&fn)

	var cerr *C.char
	if rc := C.hn_tap_start(t.ref, &cerr); rc != C.HN_TAP_OK {
		t.handler.Store(nil)
		return tapError(rc, cerr)
	}
	return nil
}

// Close stops the IOProc and destroys the aggregate device and the tap.
func (t *Tap) Close() error {
	if t.ref == nil {
		return nil
	}
	C.hn_tap_close(t.ref)
	t.ref = nil
	t.handler.Store(nil)
	t.handle.Delete()
	return nil
}

func tapError(rc C.int, cerr *C.char) error {
	var msg string
	if cerr != nil {
		msg = C.GoString(cerr)
		C.free(unsafe.Pointer(cerr))
	}
	switch rc {
	case C.HN_TAP_UNSUPPORTED:
		return ErrUnsupported
	case C.HN_TAP_NO_OUTPUT:
		if msg != "" {
			return errors.Join(ErrNoOutputDevice, errors.New(msg))
		}
		return ErrNoOutputDevice
	}
	if msg == "" {
		msg = "unknown error"
	}
	return errors.New("coreaudio: " + msg)
}

//export hnTapDeliver
func hnTapDeliver(handle C.uintptr_t, data unsafe.Pointer, size C.uint32_t) {
	t, ok := cgo.Handle(handle).Value().(*Tap)
	if !ok {
		return
	}
	fn := t.handler.Load()
	if fn == nil {
		return
	}
	(*fn)(unsafe.Slice((*byte)(data), int(size)), t.SampleRate())
}

//export hnTapRateChanged
func hnTapRateChanged(handle C.uintptr_t, rate C.double) {
	if t, ok := cgo.Handle(handle).Value().(*Tap); ok {
		t.rate.Store(math.Float64bits(float64(rate)))
	}
}
