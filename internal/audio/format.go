package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"unsafe"
)

// Encoding is the native sample encoding delivered by a device.
type Encoding int

const (
	EncodingUnknown Encoding = iota
	EncodingInt16
	EncodingInt24
	EncodingInt32
	EncodingFloat32
	EncodingFloat64
	EncodingUint8
)

func (e Encoding) String() string {
	switch e {
	case EncodingInt16:
		return "s16"
	case EncodingInt24:
		return "s24"
	case EncodingInt32:
		return "s32"
	case EncodingFloat32:
		return "f32"
	case EncodingFloat64:
		return "f64"
	case EncodingUint8:
		return "u8"
	}
	return "unknown"
}

// Width returns the size of one sample in bytes.
func (e Encoding) Width() int {
	switch e {
	case EncodingUint8:
		return 1
	case EncodingInt16:
		return 2
	case EncodingInt24:
		return 3
	case EncodingInt32, EncodingFloat32:
		return 4
	case EncodingFloat64:
		return 8
	}
	return 0
}

// ParseEncoding reads the names used in configuration. An empty name means
// "whatever the device prefers" and returns EncodingUnknown.
func ParseEncoding(name string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "native":
		return EncodingUnknown, nil
	case "s16", "int16":
		return EncodingInt16, nil
	case "s24", "int24":
		return EncodingInt24, nil
	case "s32", "int32":
		return EncodingInt32, nil
	case "f32", "float32":
		return EncodingFloat32, nil
	case "f64", "float64":
		return EncodingFloat64, nil
	case "u8", "uint8":
		return EncodingUint8, nil
	}
	return EncodingUnknown, fmt.Errorf("unknown sample format %q", name)
}

// Format describes what a session delivers.
type Format struct {
	Encoding   Encoding
	Channels   int
	SampleRate uint32
}

func (f Format) frameBytes() int {
	return f.Encoding.Width() * f.Channels
}

func (f Format) String() string {
	return fmt.Sprintf("%s %dch %dHz", f.Encoding, f.Channels, f.SampleRate)
}

// decodeFunc turns little-endian native bytes into normalized interleaved
// floats. len(src) is a whole number of samples and len(dst) is large enough.
type decodeFunc func(dst []float32, src []byte) int

// decoderFor picks the decode path once per session.
func decoderFor(enc Encoding) (decodeFunc, error) {
	switch enc {
	case EncodingInt16:
		return decodeInt16, nil
	case EncodingInt24:
		return decodeInt24, nil
	case EncodingInt32:
		return decodeInt32, nil
	case EncodingFloat32:
		return decodeFloat32, nil
	case EncodingFloat64:
		return decodeFloat64, nil
	case EncodingUint8:
		return decodeUint8, nil
	}
	return nil, unsupportedFormat(enc.String())
}

var littleEndianHost = func() bool {
	x := uint16(1)
	return *(*byte)(unsafe.Pointer(&x)) == 1
}()

// view reinterprets b as a slice of T when the platform and alignment allow
// it. Callers fall back to byte-wise decoding when ok is false.
func view[T int16 | int32 | float32 | float64](b []byte) (s []T, ok bool) {
	var zero T
	size := int(unsafe.Sizeof(zero))
	if !littleEndianHost || len(b) < size {
		return nil, false
	}
	if uintptr(unsafe.Pointer(&b[0]))%unsafe.Alignof(zero) != 0 {
		return nil, false
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&b[0])), len(b)/size), true
}

func decodeInt16(dst []float32, src []byte) int {
	if in, ok := view[int16](src); ok {
		for i, v := range in {
			dst[i] = Int16ToFloat32(v)
		}
		return len(in)
	}
	n := len(src) / 2
	for i := 0; i < n; i++ {
		dst[i] = Int16ToFloat32(int16(binary.LittleEndian.Uint16(src[2*i:])))
	}
	return n
}

func decodeInt24(dst []float32, src []byte) int {
	n := len(src) / 3
	for i := 0; i < n; i++ {
		b := src[3*i : 3*i+3]
		v := int32(uint32(b[0])<<8|uint32(b[1])<<16|uint32(b[2])<<24) >> 8
		dst[i] = Int24ToFloat32(v)
	}
	return n
}

func decodeInt32(dst []float32, src []byte) int {
	if in, ok := view[int32](src); ok {
		for i, v := range in {
			dst[i] = Int32ToFloat32(v)
		}
		return len(in)
	}
	n := len(src) / 4
	for i := 0; i < n; i++ {
		dst[i] = Int32ToFloat32(int32(binary.LittleEndian.Uint32(src[4*i:])))
	}
	return n
}

func decodeFloat32(dst []float32, src []byte) int {
	if in, ok := view[float32](src); ok {
		return copy(dst, in)
	}
	n := len(src) / 4
	for i := 0; i < n; i++ {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[4*i:]))
	}
	return n
}

func decodeFloat64(dst []float32, src []byte) int {
	if in, ok := view[float64](src); ok {
		for i, v := range in {
			dst[i] = Float64ToFloat32(v)
		}
		return len(in)
	}
	n := len(src) / 8
	for i := 0; i < n; i++ {
		dst[i] = Float64ToFloat32(math.Float64frombits(binary.LittleEndian.Uint64(src[8*i:])))
	}
	return n
}

func decodeUint8(dst []float32, src []byte) int {
	for i, v := range src {
		dst[i] = Uint8ToFloat32(v)
	}
	return len(src)
}
