package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInt16ToFloat32(t *testing.T) {
	assert.Equal(t, float32(-1), Int16ToFloat32(math.MinInt16))
	assert.Equal(t, float32(-1), Int16ToFloat32(-math.MaxInt16))
	assert.Equal(t, float32(1), Int16ToFloat32(math.MaxInt16))
	assert.Equal(t, float32(0), Int16ToFloat32(0))

	for s := math.MinInt16; s <= math.MaxInt16; s++ {
		v := Int16ToFloat32(int16(s))
		require.True(t, v >= -1 && v <= 1, "sample %d mapped to %f", s, v)
	}
}

func TestInt32ToFloat32(t *testing.T) {
	assert.Equal(t, float32(-1), Int32ToFloat32(math.MinInt32))
	assert.Equal(t, float32(1), Int32ToFloat32(math.MaxInt32))
	assert.Equal(t, float32(0), Int32ToFloat32(0))

	for _, s := range []int32{math.MinInt32 + 1, -1 << 30, -1, 1, 1 << 30, math.MaxInt32 - 1} {
		v := Int32ToFloat32(s)
		assert.True(t, v >= -1 && v <= 1, "sample %d mapped to %f", s, v)
	}
}

func TestInt24ToFloat32(t *testing.T) {
	assert.Equal(t, float32(-1), Int24ToFloat32(minInt24))
	assert.Equal(t, float32(1), Int24ToFloat32(maxInt24))
	assert.Equal(t, float32(0), Int24ToFloat32(0))
}

func TestUint8ToFloat32(t *testing.T) {
	assert.Equal(t, float32(-1), Uint8ToFloat32(0))
	assert.Equal(t, float32(0), Uint8ToFloat32(128))
	assert.Equal(t, float32(1), Uint8ToFloat32(255))
	for s := 0; s <= 255; s++ {
		v := Uint8ToFloat32(uint8(s))
		require.True(t, v >= -1 && v <= 1, "sample %d mapped to %f", s, v)
	}
}

func TestFloat64ToFloat32(t *testing.T) {
	assert.Equal(t, float32(-1), Float64ToFloat32(-1))
	assert.Equal(t, float32(0.5), Float64ToFloat32(0.5))
	assert.Equal(t, float32(1), Float64ToFloat32(1))
}

func TestDownmixInterleavedMono(t *testing.T) {
	input := []float32{0.1, 0.2, 0.3, 0.4}
	got := make([]float32, len(input))

	n := DownmixInterleaved(got, input, 1)
	require.Equal(t, len(input), n)
	assert.Equal(t, input, got)
}

func TestDownmixInterleavedStereo(t *testing.T) {
	input := []float32{
		0.0, 1.0,
		0.5, 0.5,
		1.0, 0.0,
		-0.5, 0.5,
	}
	expected := []float32{0.5, 0.5, 0.5, 0.0}

	got := make([]float32, 4)
	n := DownmixInterleaved(got, input, 2)
	require.Equal(t, len(expected), n)
	assert.Equal(t, expected, got)
}

func TestDownmixInterleavedMoreChannels(t *testing.T) {
	input := []float32{
		1, 3, 5,
		2, 4, 6,
	}

	got := make([]float32, 2)
	n := DownmixInterleaved(got, input, 3)
	require.Equal(t, 2, n)
	assert.Equal(t, []float32{3, 4}, got)
}

func TestDownmixIdenticalChannelsIsIdentity(t *testing.T) {
	values := []float32{-1, -0.7071, -0.1, 0, 0.1, 0.3333333, 0.999, 1}
	for channels := 1; channels <= 8; channels++ {
		for _, v := range values {
			frame := make([]float32, channels)
			for i := range frame {
				frame[i] = v
			}
			out := make([]float32, 1)
			require.Equal(t, 1, DownmixInterleaved(out, frame, channels))
			assert.Equal(t, v, out[0], "%d channels of %f", channels, v)
		}
	}
}

func TestDownmixIgnoresPartialFrameAndShortDst(t *testing.T) {
	input := []float32{1, 1, 0.5, 0.5, 0.25}

	got := make([]float32, 4)
	assert.Equal(t, 2, DownmixInterleaved(got, input, 2))

	short := make([]float32, 1)
	assert.Equal(t, 1, DownmixInterleaved(short, input, 2))
	assert.Equal(t, float32(1), short[0])
}
