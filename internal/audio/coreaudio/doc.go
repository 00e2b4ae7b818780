// Package coreaudio captures the macOS system output mix through a CoreAudio
// process tap. The tap is wrapped in a private aggregate device because the
// HAL only exposes tapped audio through a device IOProc.
//
// Everything except Format is darwin only.
package coreaudio

import "fmt"

// Format is the stream description reported by the tap. Non-interleaved
// taps deliver their first channel buffer only and report one channel.
type Format struct {
	SampleRate     float64
	Channels       int
	BitsPerChannel int
	Float          bool
	SignedInteger  bool
	BigEndian      bool
}

func (f Format) String() string {
	kind := "int"
	if f.Float {
		kind = "float"
	}
	return fmt.Sprintf("%s%d %dch %.0fHz", kind, f.BitsPerChannel, f.Channels, f.SampleRate)
}
