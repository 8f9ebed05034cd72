package audio

// Normalizer converts arbitrary incoming Frames to NormalizedFrames matching
// a single target Format, via linear-interpolation resampling and
// channel-averaging downmixing. Grounded on the teacher's audio converter
// (pkg/voice/internal/audio), generalised to the saraudio Frame model.
type Normalizer struct {
	target Format
}

// NewNormalizer returns a Normalizer that converts every Frame pushed through
// Normalize to the given target sample rate and channel count.
func NewNormalizer(target Format) *Normalizer {
	return &Normalizer{target: target}
}

// Normalize converts f to a NormalizedFrame matching the Normalizer's target
// Format. Downmixing happens before resampling so the resampler always
// operates on the final channel count.
func (n *Normalizer) Normalize(f Frame) NormalizedFrame {
	pcm := f.AsPCM16()
	channels := f.Channels
	if channels <= 0 {
		channels = 1
	}

	if channels != n.target.Channels {
		pcm = downmix(pcm, channels, n.target.Channels)
		channels = n.target.Channels
	}

	sampleRate := f.SampleRate
	if sampleRate > 0 && sampleRate != n.target.SampleRate {
		pcm = resampleLinear(pcm, channels, sampleRate, n.target.SampleRate)
	}

	return NormalizedFrame{
		PCM16:       pcm,
		TimestampMs: f.TimestampMs,
		SampleRate:  n.target.SampleRate,
		Channels:    n.target.Channels,
	}
}

// downmix converts interleaved PCM16 from fromChannels to toChannels by
// averaging (fan-in) or duplicating (fan-out) across channels per frame.
func downmix(pcm []int16, fromChannels, toChannels int) []int16 {
	if fromChannels == toChannels || fromChannels <= 0 || toChannels <= 0 {
		return pcm
	}
	frames := len(pcm) / fromChannels
	out := make([]int16, frames*toChannels)

	if toChannels == 1 {
		for i := 0; i < frames; i++ {
			var sum int32
			for c := 0; c < fromChannels; c++ {
				sum += int32(pcm[i*fromChannels+c])
			}
			out[i] = int16(sum / int32(fromChannels))
		}
		return out
	}

	// Fan one channel out to toChannels, or average fromChannels down to the
	// first channel and duplicate across the rest.
	for i := 0; i < frames; i++ {
		var sum int32
		for c := 0; c < fromChannels; c++ {
			sum += int32(pcm[i*fromChannels+c])
		}
		avg := int16(sum / int32(fromChannels))
		for c := 0; c < toChannels; c++ {
			out[i*toChannels+c] = avg
		}
	}
	return out
}

// resampleLinear resamples interleaved PCM16 from fromRate to toRate using
// linear interpolation between neighboring frames, independently per
// channel.
func resampleLinear(pcm []int16, channels, fromRate, toRate int) []int16 {
	if fromRate <= 0 || toRate <= 0 || fromRate == toRate || channels <= 0 {
		return pcm
	}
	inFrames := len(pcm) / channels
	if inFrames == 0 {
		return pcm
	}
	outFrames := int(float64(inFrames) * float64(toRate) / float64(fromRate))
	if outFrames <= 0 {
		return nil
	}
	out := make([]int16, outFrames*channels)
	ratio := float64(inFrames-1) / float64(maxInt(outFrames-1, 1))

	for i := 0; i < outFrames; i++ {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)
		next := idx + 1
		if next >= inFrames {
			next = inFrames - 1
		}
		for c := 0; c < channels; c++ {
			a := float64(pcm[idx*channels+c])
			b := float64(pcm[next*channels+c])
			out[i*channels+c] = int16(a + (b-a)*frac)
		}
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
