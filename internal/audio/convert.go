package audio

import "math"

const (
	maxInt24 = 1<<23 - 1
	minInt24 = -1 << 23
)

// Int16ToFloat32 maps a signed 16-bit sample into [-1, 1].
func Int16ToFloat32(s int16) float32 {
	if s == math.MinInt16 {
		return -1
	}
	return float32(s) / math.MaxInt16
}

// Int24ToFloat32 maps a sign-extended 24-bit sample into [-1, 1].
func Int24ToFloat32(s int32) float32 {
	if s <= minInt24 {
		return -1
	}
	if s >= maxInt24 {
		return 1
	}
	return float32(s) / maxInt24
}

// Int32ToFloat32 maps a signed 32-bit sample into [-1, 1].
func Int32ToFloat32(s int32) float32 {
	if s == math.MinInt32 {
		return -1
	}
	return float32(float64(s) / math.MaxInt32)
}

// Uint8ToFloat32 maps an offset-binary 8-bit sample into [-1, 1].
func Uint8ToFloat32(s uint8) float32 {
	if s == 0 {
		return -1
	}
	return float32(int(s)-128) / 127
}

// Float64ToFloat32 narrows a 64-bit float sample.
func Float64ToFloat32(s float64) float32 {
	return float32(s)
}

// DownmixInterleaved averages each interleaved frame of src into one sample of
// dst and returns the number of frames written. With one channel src is copied
// as is. Trailing samples that do not fill a frame are ignored.
func DownmixInterleaved(dst, src []float32, channels int) int {
	if channels <= 1 {
		return copy(dst, src)
	}

	frames := len(src) / channels
	if frames > len(dst) {
		frames = len(dst)
	}
	for f := 0; f < frames; f++ {
		frame := src[f*channels : (f+1)*channels]
		var sum float64
		for _, s := range frame {
			sum += float64(s)
		}
		dst[f] = float32(sum / float64(channels))
	}
	return frames
}
