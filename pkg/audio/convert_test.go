package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFloat32ToPCM16_ClampsAndRounds(t *testing.T) {
	assert.Equal(t, int16(32767), Float32ToPCM16(1.0))
	assert.Equal(t, int16(32767), Float32ToPCM16(2.0)) // clamps above 1
	assert.Equal(t, int16(-32768), Float32ToPCM16(-1.0))
	assert.Equal(t, int16(-32768), Float32ToPCM16(-5.0)) // clamps below -1
	assert.Equal(t, int16(0), Float32ToPCM16(0))
}

func TestFloat32ToPCM16_NegativeVsNonNegativeScale(t *testing.T) {
	// 0.5 * 32767 = 16383.5 -> exact .5 ties round down to 16383 (spec §8 property 7)
	assert.Equal(t, int16(16383), Float32ToPCM16(0.5))
	// -0.5 * 32768 = -16384
	assert.Equal(t, int16(-16384), Float32ToPCM16(-0.5))
}

func TestFloat32ToPCM16_SpecRoundTripProperty(t *testing.T) {
	// spec §8 testable property 7.
	cases := []struct {
		in   float32
		want int16
	}{
		{-1, -32768},
		{-0.5, -16384},
		{0, 0},
		{0.5, 16383},
		{1, 32767},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Float32ToPCM16(c.in), "input %v", c.in)
	}
}

func TestPCM16ToFloat32_RoundTrip(t *testing.T) {
	for _, s := range []int16{0, 1, -1, 32767, -32768, 16384, -16384} {
		f := PCM16ToFloat32(s)
		assert.GreaterOrEqual(t, f, float32(-1))
		assert.LessOrEqual(t, f, float32(1))
	}
}

func TestConvertSamples(t *testing.T) {
	out := ConvertSamples([]float32{0, 1, -1})
	assert.Equal(t, []int16{0, 32767, -32768}, out)
}
