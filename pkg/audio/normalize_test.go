package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizer_PassthroughWhenAlreadyTarget(t *testing.T) {
	n := NewNormalizer(Format{SampleRate: 16000, Channels: 1})
	f := NewPCM16Frame([]int16{1, 2, 3}, 0, 16000, 1)
	got := n.Normalize(f)
	assert.Equal(t, []int16{1, 2, 3}, got.PCM16)
	assert.Equal(t, 16000, got.SampleRate)
	assert.Equal(t, 1, got.Channels)
}

func TestNormalizer_DownmixStereoToMono(t *testing.T) {
	n := NewNormalizer(Format{SampleRate: 16000, Channels: 1})
	// two stereo frames: (10,20) and (30,40) -> mono averages 15, 35
	f := NewPCM16Frame([]int16{10, 20, 30, 40}, 0, 16000, 2)
	got := n.Normalize(f)
	assert.Equal(t, 1, got.Channels)
	assert.Equal(t, []int16{15, 35}, got.PCM16)
}

func TestNormalizer_ResampleUpsamplesLength(t *testing.T) {
	n := NewNormalizer(Format{SampleRate: 32000, Channels: 1})
	f := NewPCM16Frame([]int16{0, 100, 200, 300}, 0, 16000, 1)
	got := n.Normalize(f)
	assert.Equal(t, 32000, got.SampleRate)
	assert.Len(t, got.PCM16, 8)
	assert.Equal(t, int16(0), got.PCM16[0])
	assert.Equal(t, int16(300), got.PCM16[len(got.PCM16)-1])
}

func TestNormalizer_FromFloatFrame(t *testing.T) {
	n := NewNormalizer(Format{SampleRate: 16000, Channels: 1})
	f := NewFloat32Frame([]float32{0, 1, -1}, 0, 16000, 1)
	got := n.Normalize(f)
	assert.Equal(t, []int16{0, 32767, -32768}, got.PCM16)
}
