package audio

import "errors"

// ErrorKind classifies capture failures.
type ErrorKind int

const (
	KindNoDeviceFound ErrorKind = iota + 1
	KindDeviceNotAvailable
	KindStreamBuild
	KindStream
	KindDevice
	KindUnsupportedFormat
	KindPermissionDenied
	KindPlatformNotSupported
)

// Error is returned by every capture operation in this package. Match a kind
// with errors.Is against the exported sentinels:
//
//	if errors.Is(err, audio.ErrNoDeviceFound) { ... }
type Error struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNoDeviceFound:
		return "No audio device found"
	case KindDeviceNotAvailable:
		return "Device not available: " + e.detail()
	case KindStreamBuild:
		return "Failed to build audio stream: " + e.detail()
	case KindStream:
		return "Stream error: " + e.detail()
	case KindDevice:
		return "Device error: " + e.detail()
	case KindUnsupportedFormat:
		if d := e.detail(); d != "" {
			return "Unsupported sample format: " + d
		}
		return "Unsupported sample format"
	case KindPermissionDenied:
		return "Permission denied for audio capture"
	case KindPlatformNotSupported:
		return "Platform not supported: " + e.detail()
	}
	return "audio error: " + e.detail()
}

func (e *Error) detail() string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind when target is a bare sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Detail == "" && t.Err == nil
}

var (
	ErrNoDeviceFound        = &Error{Kind: KindNoDeviceFound}
	ErrDeviceNotAvailable   = &Error{Kind: KindDeviceNotAvailable}
	ErrStreamBuild          = &Error{Kind: KindStreamBuild}
	ErrStream               = &Error{Kind: KindStream}
	ErrDevice               = &Error{Kind: KindDevice}
	ErrUnsupportedFormat    = &Error{Kind: KindUnsupportedFormat}
	ErrPermissionDenied     = &Error{Kind: KindPermissionDenied}
	ErrPlatformNotSupported = &Error{Kind: KindPlatformNotSupported}
)

// ErrStreamEnded is returned by Stream.Poll once no more chunks will arrive.
var ErrStreamEnded = errors.New("audio stream ended")

func deviceNotAvailable(name string, err error) error {
	return &Error{Kind: KindDeviceNotAvailable, Detail: name, Err: err}
}

func streamBuildError(err error) error {
	return &Error{Kind: KindStreamBuild, Err: err}
}

func deviceError(err error) error {
	return &Error{Kind: KindDevice, Err: err}
}

func unsupportedFormat(detail string) error {
	return &Error{Kind: KindUnsupportedFormat, Detail: detail}
}

func platformNotSupported(what string) error {
	return &Error{Kind: KindPlatformNotSupported, Detail: what}
}
