package audio

import (
	"encoding/binary"
)

// wavHeaderSize is the constant 44-byte PCM16 WAV header size (spec §6.1).
const wavHeaderSize = 44

// EncodeWAV wraps PCM16 samples in a constant 44-byte WAV header, little
// endian, mono or multi-channel interleaved, per spec §6.1's byte layout.
// Used by the recording exporter and the HTTP chunking aggregator's batch
// submissions.
func EncodeWAV(pcm []int16, sampleRate, channels int) []byte {
	dataSize := uint32(len(pcm) * 2)
	totalSize := wavHeaderSize + int(dataSize) - 8
	byteRate := uint32(sampleRate * channels * 2)
	blockAlign := uint16(channels * 2)

	out := make([]byte, wavHeaderSize+len(pcm)*2)

	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(totalSize))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1)
	binary.LittleEndian.PutUint16(out[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], byteRate)
	binary.LittleEndian.PutUint16(out[32:34], blockAlign)
	binary.LittleEndian.PutUint16(out[34:36], 16)
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], dataSize)

	for i, s := range pcm {
		binary.LittleEndian.PutUint16(out[wavHeaderSize+i*2:wavHeaderSize+i*2+2], uint16(s))
	}
	return out
}
