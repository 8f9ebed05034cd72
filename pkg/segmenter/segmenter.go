// Package segmenter implements the VAD-driven segmentation pipeline stage
// (spec §4.2): it turns a continuous frame stream plus "vad" bus events
// into bounded speech Segments with pre-roll and hangover.
package segmenter

import (
	"context"
	"math"

	"github.com/teunlao/saraudio-sub000/internal/o11y"
	"github.com/teunlao/saraudio-sub000/pkg/audio"
	"github.com/teunlao/saraudio-sub000/pkg/eventbus"
	"github.com/teunlao/saraudio-sub000/pkg/pipeline"
	"github.com/teunlao/saraudio-sub000/pkg/ringbuffer"
	"github.com/teunlao/saraudio-sub000/pkg/transcript"
)

// Config configures a Segmenter. Both fields clamp to >= 0.
type Config struct {
	PreRollMs  int
	HangoverMs int
}

// DefaultConfig matches spec §4.2 defaults: 250ms pre-roll, 400ms hangover.
func DefaultConfig() Config {
	return Config{PreRollMs: 250, HangoverMs: 400}
}

func (c Config) clamp() Config {
	if c.PreRollMs < 0 {
		c.PreRollMs = 0
	}
	if c.HangoverMs < 0 {
		c.HangoverMs = 0
	}
	return c
}

// SpeechStartEvent is emitted on the pipeline's "speechStart" event.
type SpeechStartEvent struct {
	TimestampMs int64
}

// SpeechEndEvent is emitted on the pipeline's "speechEnd" event.
type SpeechEndEvent struct {
	TimestampMs int64
}

// Segmenter is a pipeline.Stage that buffers pre-roll audio, listens to
// "vad" events, and emits bounded transcript.Segment values.
type Segmenter struct {
	cfg Config

	preRoll           *ringbuffer.Ring
	preRollSampleRate int
	preRollChannels   int
	preRollMsApplied  int

	sampleRate int
	channels   int

	active              bool
	segID               string
	startMs             int64
	segBuf              []float32
	pendingSilenceSince *int64

	unsubVAD eventbus.Unsubscribe
}

// New returns a Segmenter configured with cfg (clamped).
func New(cfg Config) *Segmenter {
	return &Segmenter{cfg: cfg.clamp()}
}

// Reconfigure updates preRollMs/hangoverMs for hot reconfiguration. A
// changed preRollMs invalidates the pre-roll ring buffer; it is rebuilt
// lazily on the next handled frame.
func (s *Segmenter) Reconfigure(cfg Config) {
	cfg = cfg.clamp()
	if cfg.PreRollMs != s.cfg.PreRollMs {
		s.preRoll = nil
	}
	s.cfg = cfg
}

// Setup subscribes to the pipeline's "vad" event.
func (s *Segmenter) Setup(ctx pipeline.StageContext) error {
	s.unsubVAD = ctx.On("vad", func(payload any) {
		score, ok := payload.(transcript.VADScore)
		if !ok {
			return
		}
		s.handleVAD(ctx, score)
	})
	return nil
}

// Teardown unsubscribes from the event bus.
func (s *Segmenter) Teardown(ctx pipeline.StageContext) error {
	if s.unsubVAD != nil {
		s.unsubVAD()
		s.unsubVAD = nil
	}
	return nil
}

func (s *Segmenter) handleVAD(ctx pipeline.StageContext, score transcript.VADScore) {
	if score.Speech {
		s.pendingSilenceSince = nil
		if !s.active {
			s.startSegment(ctx, score.TimestampMs)
		}
		return
	}
	if s.active && s.pendingSilenceSince == nil {
		ts := score.TimestampMs
		s.pendingSilenceSince = &ts
	}
}

func (s *Segmenter) startSegment(ctx pipeline.StageContext, tsMs int64) {
	s.segID = ctx.CreateID()
	s.startMs = tsMs
	if s.preRoll != nil {
		s.segBuf = append([]float32(nil), s.preRoll.Snapshot()...)
	} else {
		s.segBuf = nil
	}
	s.active = true
	ctx.Emit("speechStart", SpeechStartEvent{TimestampMs: tsMs})
}

// Handle feeds the frame into the pre-roll buffer and, if a segment is
// active, into the segment accumulator; it finalizes the segment once the
// hangover window following a pending silence elapses.
func (s *Segmenter) Handle(ctx pipeline.StageContext, frame audio.Frame) error {
	if frame.SampleRate > 0 {
		s.sampleRate = frame.SampleRate
	}
	if frame.Channels > 0 {
		s.channels = frame.Channels
	}
	s.ensurePreRoll()

	samples := frame.AsFloat32()
	if s.preRoll != nil {
		s.preRoll.Write(samples)
	}

	if !s.active {
		return nil
	}

	s.segBuf = append(s.segBuf, samples...)

	if s.pendingSilenceSince != nil && frame.TimestampMs-*s.pendingSilenceSince >= int64(s.cfg.HangoverMs) {
		s.finalize(ctx, frame.TimestampMs)
	}
	return nil
}

func (s *Segmenter) ensurePreRoll() {
	if s.preRoll != nil && s.preRollSampleRate == s.sampleRate && s.preRollChannels == s.channels && s.preRollMsApplied == s.cfg.PreRollMs {
		return
	}
	if s.sampleRate <= 0 {
		return
	}
	channels := s.channels
	if channels <= 0 {
		channels = 1
	}
	capSamples := int(math.Ceil(float64(s.sampleRate) * float64(channels) * float64(s.cfg.PreRollMs) / 1000))
	s.preRoll = ringbuffer.New(capSamples)
	s.preRollSampleRate = s.sampleRate
	s.preRollChannels = channels
	s.preRollMsApplied = s.cfg.PreRollMs
}

// Flush finalizes an active segment immediately, using pendingSilenceSince
// as the end timestamp if set, else the current clock.
func (s *Segmenter) Flush(ctx pipeline.StageContext) error {
	if !s.active {
		return nil
	}
	end := ctx.Now()
	if s.pendingSilenceSince != nil {
		end = *s.pendingSilenceSince
	}
	s.finalize(ctx, end)
	return nil
}

func (s *Segmenter) finalize(ctx pipeline.StageContext, endMs int64) {
	pcm := audio.ConvertSamples(s.segBuf)
	seg := transcript.Segment{
		ID:         s.segID,
		StartMs:    s.startMs,
		EndMs:      endMs,
		DurationMs: endMs - s.startMs,
		SampleRate: s.sampleRate,
		Channels:   s.channels,
		PCM:        pcm,
	}

	ctx.Emit("speechEnd", SpeechEndEvent{TimestampMs: endMs})
	ctx.Emit("segment", seg)
	o11y.RecordSegmentEmitted(context.Background())

	s.active = false
	s.segID = ""
	s.segBuf = nil
	s.pendingSilenceSince = nil
}
