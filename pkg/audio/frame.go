// Package audio defines the frame types that flow through the saraudio
// pipeline, the float<->PCM16 conversion rules, and the WAV byte layout
// used by both recordings export and the HTTP chunking aggregator.
package audio

// Encoding identifies how Frame.Samples stores its data.
type Encoding int

const (
	// EncodingPCM16 stores samples as signed 16-bit integers.
	EncodingPCM16 Encoding = iota
	// EncodingFloat32 stores samples as 32-bit floats in [-1, 1].
	EncodingFloat32
)

// Frame is the unit of audio admitted to the pipeline. A Frame is produced by
// the capture source; every consumer receives a logically independent view
// and must not mutate it after emission.
type Frame struct {
	PCM16       []int16
	Float32     []float32
	Encoding    Encoding
	TimestampMs int64
	SampleRate  int
	Channels    int
}

// NewPCM16Frame builds a Frame carrying signed 16-bit samples.
func NewPCM16Frame(samples []int16, tsMs int64, sampleRate, channels int) Frame {
	return Frame{PCM16: samples, Encoding: EncodingPCM16, TimestampMs: tsMs, SampleRate: sampleRate, Channels: channels}
}

// NewFloat32Frame builds a Frame carrying float32 samples in [-1, 1].
func NewFloat32Frame(samples []float32, tsMs int64, sampleRate, channels int) Frame {
	return Frame{Float32: samples, Encoding: EncodingFloat32, TimestampMs: tsMs, SampleRate: sampleRate, Channels: channels}
}

// Len returns the number of samples (across all channels) the frame carries.
func (f Frame) Len() int {
	switch f.Encoding {
	case EncodingFloat32:
		return len(f.Float32)
	default:
		return len(f.PCM16)
	}
}

// AsFloat32 returns the frame's samples as float32, converting from PCM16 if
// necessary. Never mutates the frame.
func (f Frame) AsFloat32() []float32 {
	if f.Encoding == EncodingFloat32 {
		return f.Float32
	}
	out := make([]float32, len(f.PCM16))
	for i, s := range f.PCM16 {
		out[i] = PCM16ToFloat32(s)
	}
	return out
}

// AsPCM16 returns the frame's samples as signed 16-bit integers, converting
// from float32 if necessary via the clamp-and-round rule in spec §4.3.
func (f Frame) AsPCM16() []int16 {
	if f.Encoding == EncodingPCM16 {
		return f.PCM16
	}
	out := make([]int16, len(f.Float32))
	for i, s := range f.Float32 {
		out[i] = Float32ToPCM16(s)
	}
	return out
}

// Format describes a target sample rate and channel count a NormalizedFrame
// is guaranteed to match.
type Format struct {
	SampleRate int
	Channels   int
}

// NormalizedFrame is a Frame whose encoding is guaranteed PCM16 and whose
// sample rate/channels match a declared target Format. Same lifetime rules
// as Frame: mutation after emission is forbidden.
type NormalizedFrame struct {
	PCM16       []int16
	TimestampMs int64
	SampleRate  int
	Channels    int
}

// Frame converts a NormalizedFrame back into the generic Frame shape, for
// code paths (e.g. the assembler) that accept either.
func (n NormalizedFrame) Frame() Frame {
	return NewPCM16Frame(n.PCM16, n.TimestampMs, n.SampleRate, n.Channels)
}
