// Package permissions checks the OS privacy gates that must be open before
// audio capture can start.
package permissions

import "errors"

// Status mirrors the platform authorization states.
type Status int

const (
	StatusNotDetermined Status = 0
	StatusRestricted    Status = 1
	StatusDenied        Status = 2
	StatusAuthorized    Status = 3
)

func (s Status) String() string {
	switch s {
	case StatusNotDetermined:
		return "not determined"
	case StatusRestricted:
		return "restricted"
	case StatusDenied:
		return "denied"
	case StatusAuthorized:
		return "authorized"
	}
	return "unknown"
}

// ErrMicrophoneDenied means the user or a policy refused microphone access.
var ErrMicrophoneDenied = errors.New("microphone permission not granted")

// EnsureMicrophone fails when microphone access has been refused. When the
// user has not decided yet the system prompt is triggered and capture is
// allowed to proceed; the OS delivers silence until access is granted.
func EnsureMicrophone() error {
	return evaluate(CheckMicrophone(), RequestMicrophone)
}

func evaluate(status Status, request func()) error {
	switch status {
	case StatusAuthorized:
		return nil
	case StatusNotDetermined:
		request()
		return nil
	default:
		return ErrMicrophoneDenied
	}
}
