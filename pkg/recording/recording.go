// Package recording implements the Recording Assembler (spec §4.3): three
// independent PCM16 accumulators (cleaned, full, masked) with session
// bounds and a frozen sample-rate/channel-count format.
package recording

import "github.com/teunlao/saraudio-sub000/pkg/audio"

// Snapshot is the value returned by each accumulator getter.
type Snapshot struct {
	PCM        []int16
	SampleRate int
	Channels   int
}

// Options selects which accumulators are active.
type Options struct {
	Full    bool
	Masked  bool
	Cleaned bool
}

// Assembler accumulates full/masked/cleaned PCM16 streams across a
// recording session.
type Assembler struct {
	opts Options

	startMs *int64
	endMs   int64

	sampleRate int
	channels   int
	formatSet  bool

	full    []int16
	masked  []int16
	cleaned []int16

	speechActive bool
}

// New returns an Assembler with the given accumulators enabled.
func New(opts Options) *Assembler {
	return &Assembler{opts: opts}
}

// Begin sets the session start timestamp iff it is unset; later calls are
// no-ops.
func (a *Assembler) Begin(ms int64) {
	if a.startMs == nil {
		v := ms
		a.startMs = &v
	}
}

// End explicitly sets the session end timestamp.
func (a *Assembler) End(ms int64) {
	a.endMs = ms
}

// SetSpeechActive toggles whether the masked accumulator should append real
// samples (true) or zero-fill (false) for subsequent frames. The recorder
// façade drives this from segment start/end.
func (a *Assembler) SetSpeechActive(active bool) {
	a.speechActive = active
}

// OnFrame advances the session end to the frame's timestamp and appends to
// every enabled accumulator per spec §4.3's rules.
func (a *Assembler) OnFrame(frame audio.Frame) {
	a.endMs = frame.TimestampMs
	a.freezeFormat(frame.SampleRate, frame.Channels)

	pcm := frame.AsPCM16()

	if a.opts.Full {
		a.full = append(a.full, pcm...)
	}
	if a.opts.Masked {
		if a.speechActive {
			a.masked = append(a.masked, pcm...)
		} else {
			a.masked = append(a.masked, make([]int16, len(pcm))...)
		}
	}
}

// OnSegment appends a finalized segment's PCM16 to the cleaned accumulator.
// Segments are assumed non-overlapping and are concatenated in the order
// they are observed.
func (a *Assembler) OnSegment(pcm []int16) {
	if !a.opts.Cleaned {
		return
	}
	a.cleaned = append(a.cleaned, pcm...)
}

func (a *Assembler) freezeFormat(sampleRate, channels int) {
	if a.formatSet {
		return
	}
	if sampleRate == 0 && channels == 0 {
		return
	}
	a.sampleRate = sampleRate
	a.channels = channels
	a.formatSet = true
}

// Full returns the full accumulator's snapshot, or nil if disabled.
func (a *Assembler) Full() *Snapshot {
	return a.snapshot(a.opts.Full, a.full)
}

// Masked returns the masked accumulator's snapshot, or nil if disabled.
func (a *Assembler) Masked() *Snapshot {
	return a.snapshot(a.opts.Masked, a.masked)
}

// Cleaned returns the cleaned accumulator's snapshot, or nil if disabled.
func (a *Assembler) Cleaned() *Snapshot {
	return a.snapshot(a.opts.Cleaned, a.cleaned)
}

func (a *Assembler) snapshot(enabled bool, pcm []int16) *Snapshot {
	if !enabled {
		return nil
	}
	out := make([]int16, len(pcm))
	copy(out, pcm)
	return &Snapshot{PCM: out, SampleRate: a.sampleRate, Channels: a.channels}
}

// StartMs returns the session start timestamp and whether it has been set.
func (a *Assembler) StartMs() (int64, bool) {
	if a.startMs == nil {
		return 0, false
	}
	return *a.startMs, true
}

// EndMs returns the session end timestamp.
func (a *Assembler) EndMs() int64 {
	return a.endMs
}
