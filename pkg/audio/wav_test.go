package audio

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeWAV_HeaderLayout(t *testing.T) {
	pcm := []int16{1, -2, 3, -4}
	out := EncodeWAV(pcm, 16000, 1)

	require.Len(t, out, 44+len(pcm)*2)
	assert.Equal(t, "RIFF", string(out[0:4]))
	assert.Equal(t, uint32(44+len(pcm)*2-8), binary.LittleEndian.Uint32(out[4:8]))
	assert.Equal(t, "WAVE", string(out[8:12]))
	assert.Equal(t, "fmt ", string(out[12:16]))
	assert.Equal(t, uint32(16), binary.LittleEndian.Uint32(out[16:20]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(out[20:22]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(out[22:24]))
	assert.Equal(t, uint32(16000), binary.LittleEndian.Uint32(out[24:28]))
	assert.Equal(t, uint32(16000*1*2), binary.LittleEndian.Uint32(out[28:32]))
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(out[32:34]))
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(out[34:36]))
	assert.Equal(t, "data", string(out[36:40]))
	assert.Equal(t, uint32(len(pcm)*2), binary.LittleEndian.Uint32(out[40:44]))

	for i, s := range pcm {
		got := int16(binary.LittleEndian.Uint16(out[44+i*2 : 44+i*2+2]))
		assert.Equal(t, s, got)
	}
}

func TestEncodeWAV_StereoByteRate(t *testing.T) {
	out := EncodeWAV([]int16{1, 2, 3, 4}, 8000, 2)
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(out[22:24]))
	assert.Equal(t, uint32(8000*2*2), binary.LittleEndian.Uint32(out[28:32]))
	assert.Equal(t, uint16(4), binary.LittleEndian.Uint16(out[32:34]))
}
