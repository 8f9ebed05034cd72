package audio

import "math"

// Float32ToPCM16 converts a single float32 sample in [-1, 1] to a signed
// 16-bit integer using the clamp-and-round rule from spec §4.3: the sample
// is first clamped to [-1, 1], then negatives are scaled by 32768 and
// non-negatives by 32767, rounding to nearest with exact .5 ties rounding
// down (0.5 -> 16383, not 16384).
func Float32ToPCM16(s float32) int16 {
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	if s < 0 {
		return int16(round(float64(s) * 32768))
	}
	return int16(round(float64(s) * 32767))
}

// PCM16ToFloat32 converts a signed 16-bit sample to float32 in [-1, 1],
// inverting Float32ToPCM16's scale split.
func PCM16ToFloat32(s int16) float32 {
	if s < 0 {
		return float32(s) / 32768
	}
	return float32(s) / 32767
}

// round rounds to the nearest integer, with an exact .5 fraction rounding
// down rather than away from zero (spec §8 property 7: 0.5 -> 16383).
func round(v float64) float64 {
	return math.Ceil(v - 0.5)
}

// ConvertSamples converts a float32 buffer to PCM16 in bulk, applying
// Float32ToPCM16 per sample.
func ConvertSamples(in []float32) []int16 {
	out := make([]int16, len(in))
	for i, s := range in {
		out[i] = Float32ToPCM16(s)
	}
	return out
}
