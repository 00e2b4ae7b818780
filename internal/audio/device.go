package audio

import (
	"fmt"
	"strings"
)

// Source selects what a capture listens to.
type Source int

const (
	SourceMicrophone Source = iota
	SourceSystem
)

// Sources lists every capturable source.
var Sources = []Source{SourceMicrophone, SourceSystem}

// String returns the short name used in logs and file names.
func (s Source) String() string {
	switch s {
	case SourceMicrophone:
		return "mic"
	case SourceSystem:
		return "speaker"
	}
	return fmt.Sprintf("source(%d)", int(s))
}

// Label is the human readable name used in user-facing messages.
func (s Source) Label() string {
	switch s {
	case SourceMicrophone:
		return "Microphone"
	case SourceSystem:
		return "Speaker"
	}
	return s.String()
}

// ParseSource accepts the short names plus a few aliases.
func ParseSource(name string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mic", "microphone", "input":
		return SourceMicrophone, nil
	case "speaker", "system", "loopback", "output":
		return SourceSystem, nil
	}
	return 0, fmt.Errorf("unknown audio source %q", name)
}

// DeviceType tells input devices from output devices.
type DeviceType int

const (
	DeviceInput DeviceType = iota
	DeviceOutput
)

func (t DeviceType) String() string {
	if t == DeviceOutput {
		return "output"
	}
	return "input"
}

// Device represents an audio endpoint reported by the host.
type Device struct {
	Name    string
	Type    DeviceType
	Default bool
}

// tapMarker tags the private aggregate device created for system capture. It
// never shows up as a selectable input.
const tapMarker = "TAP"

func isTapDevice(name string) bool {
	return strings.Contains(name, tapMarker)
}
