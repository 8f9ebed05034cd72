// Package recorder implements the Recorder façade (spec §4.4): it owns a
// Pipeline and a Recording Assembler plus a capture source reference,
// fans each inbound frame out to raw/speech/normalized subscribers, and
// exposes the cleaned/full/masked recordings as WAV byte getters.
package recorder

import (
	"reflect"

	"github.com/teunlao/saraudio-sub000/pkg/audio"
	"github.com/teunlao/saraudio-sub000/pkg/eventbus"
	"github.com/teunlao/saraudio-sub000/pkg/pipeline"
	"github.com/teunlao/saraudio-sub000/pkg/recording"
	"github.com/teunlao/saraudio-sub000/pkg/segmenter"
	"github.com/teunlao/saraudio-sub000/pkg/transcript"
)

// lateSubscriberReplay is N in spec §4.4 step 6: the number of most-recent
// normalized frames buffered so a subscriber attaching mid-stream still
// sees recent context.
const lateSubscriberReplay = 5

// Source is the capture source collaborator: an external producer of raw
// Frames. Device selection, sample-rate conversion, and VAD computation are
// out of scope (spec §1) and live entirely on the Source/stage side.
type Source interface {
	OnFrame(handler func(audio.Frame)) (unsubscribe func())
}

// SegmenterSetting chooses the segmenter stage for a Recorder. The zero
// value means "use the runtime default segmenter"; set Disabled to turn
// segmentation off entirely, or Controller to supply a custom stage.
type SegmenterSetting struct {
	Disabled   bool
	Options    *segmenter.Config
	Controller *pipeline.StageController
}

// Config is the Recorder's configuration surface (spec §4.4).
type Config struct {
	Stages       []pipeline.StageInput
	Segmenter    SegmenterSetting
	TargetFormat *audio.Format
	Produce      recording.Options
}

// Recorder wires a capture Source through a Pipeline and a Recording
// Assembler, and fans out raw/speech/normalized frame events plus vad,
// segment, and error events from the pipeline bus.
type Recorder struct {
	pipeline   *pipeline.Pipeline
	assembler  *recording.Assembler
	source     Source
	unsubSrc   func()
	cfg        Config
	normalizer *audio.Normalizer

	speechActive bool
	readyFired   bool

	rawBus        *eventbus.Bus
	speechBus     *eventbus.Bus
	normalizedBus *eventbus.Bus
	readyBus      *eventbus.Bus

	replayBuf []audio.NormalizedFrame
}

// New returns a Recorder bound to source, with the given Produce options
// for its assembler. Call Configure before Start to install stages/segmenter.
func New(source Source, produce recording.Options) *Recorder {
	r := &Recorder{
		pipeline:      pipeline.New(),
		assembler:     recording.New(produce),
		source:        source,
		cfg:           Config{Produce: produce},
		rawBus:        eventbus.New(),
		speechBus:     eventbus.New(),
		normalizedBus: eventbus.New(),
		readyBus:      eventbus.New(),
	}
	r.pipeline.Bus().On("speechStart", func(any) { r.speechActive = true; r.assembler.SetSpeechActive(true) })
	r.pipeline.Bus().On("speechEnd", func(any) { r.speechActive = false; r.assembler.SetSpeechActive(false) })
	r.pipeline.Bus().On("segment", func(payload any) {
		if seg, ok := payload.(transcript.Segment); ok {
			r.assembler.OnSegment(seg.PCM)
		}
	})
	return r
}

// Configure installs cfg wholesale and rebuilds the pipeline's stage list.
func (r *Recorder) Configure(cfg Config) error {
	r.cfg = cfg
	if cfg.TargetFormat != nil {
		r.normalizer = audio.NewNormalizer(*cfg.TargetFormat)
	} else {
		r.normalizer = nil
	}
	return r.refreshPipeline()
}

// Update merges cfg into the current configuration and refreshes the
// pipeline only when Stages or Segmenter actually changed.
func (r *Recorder) Update(cfg Config) error {
	merged := r.cfg
	if cfg.Stages != nil {
		merged.Stages = cfg.Stages
	}
	if !reflect.DeepEqual(cfg.Segmenter, SegmenterSetting{}) {
		merged.Segmenter = cfg.Segmenter
	}
	if cfg.TargetFormat != nil {
		merged.TargetFormat = cfg.TargetFormat
	}
	if cfg.Produce != (recording.Options{}) {
		merged.Produce = cfg.Produce
	}

	changed := !reflect.DeepEqual(merged.Stages, r.cfg.Stages) || !reflect.DeepEqual(merged.Segmenter, r.cfg.Segmenter)
	r.cfg = merged
	if cfg.TargetFormat != nil {
		r.normalizer = audio.NewNormalizer(*merged.TargetFormat)
	}
	if changed {
		return r.refreshPipeline()
	}
	return nil
}

// refreshPipeline builds the final stage list from cfg.Stages plus the
// segmenter stage (appended last, so it observes the fully processed frame
// stream) and applies it via Pipeline.Configure.
func (r *Recorder) refreshPipeline() error {
	inputs := append([]pipeline.StageInput(nil), r.cfg.Stages...)

	switch {
	case r.cfg.Segmenter.Controller != nil:
		inputs = append(inputs, pipeline.Controlled(r.cfg.Segmenter.Controller))
	case r.cfg.Segmenter.Disabled:
		// segmentation off: no stage appended.
	default:
		opts := segmenter.DefaultConfig()
		if r.cfg.Segmenter.Options != nil {
			opts = *r.cfg.Segmenter.Options
		}
		inputs = append(inputs, pipeline.Controlled(&pipeline.StageController{
			ID:     "segmenter",
			Create: func() pipeline.Stage { return segmenter.New(opts) },
			Configure: func(existing pipeline.Stage) error {
				if seg, ok := existing.(*segmenter.Segmenter); ok {
					seg.Reconfigure(opts)
				}
				return nil
			},
		}))
	}

	return r.pipeline.Configure(inputs)
}

// OnFrame is the capture-source entry point implementing the 9-step
// sequence in spec §4.4.
func (r *Recorder) OnFrame(frame audio.Frame) {
	r.assembler.Begin(frame.TimestampMs)
	r.assembler.OnFrame(frame)

	r.rawBus.Emit("raw", frame)

	if r.speechActive {
		r.speechBus.Emit("speech", frame)
	}

	if r.normalizer != nil {
		normalized := r.normalizer.Normalize(frame)
		r.replayBuf = append(r.replayBuf, normalized)
		if len(r.replayBuf) > lateSubscriberReplay {
			r.replayBuf = r.replayBuf[len(r.replayBuf)-lateSubscriberReplay:]
		}
		r.normalizedBus.Emit("normalized", normalized)
	}

	if !r.readyFired {
		r.readyFired = true
		r.readyBus.Emit("ready", nil)
	}

	r.pipeline.Push(frame)
}

// Start subscribes to the capture source.
func (r *Recorder) Start() {
	if r.unsubSrc != nil {
		return
	}
	r.unsubSrc = r.source.OnFrame(r.OnFrame)
}

// Stop unsubscribes from the capture source without resetting accumulated
// state.
func (r *Recorder) Stop() {
	if r.unsubSrc != nil {
		r.unsubSrc()
		r.unsubSrc = nil
	}
}

// Reset tears down and recreates the pipeline and assembler, clearing all
// accumulated recording state, then reapplies the current configuration.
func (r *Recorder) Reset() error {
	r.Stop()
	r.pipeline.Dispose()
	r.assembler = recording.New(r.cfg.Produce)
	r.speechActive = false
	r.readyFired = false
	r.replayBuf = nil
	r.pipeline = pipeline.New()
	r.pipeline.Bus().On("speechStart", func(any) { r.speechActive = true; r.assembler.SetSpeechActive(true) })
	r.pipeline.Bus().On("speechEnd", func(any) { r.speechActive = false; r.assembler.SetSpeechActive(false) })
	r.pipeline.Bus().On("segment", func(payload any) {
		if seg, ok := payload.(transcript.Segment); ok {
			r.assembler.OnSegment(seg.PCM)
		}
	})
	return r.refreshPipeline()
}

// Dispose tears down the pipeline and detaches from the source permanently.
func (r *Recorder) Dispose() {
	r.Stop()
	r.pipeline.Dispose()
}

// Bus returns the pipeline's shared event bus, for subscribing to vad,
// segment, and error events.
func (r *Recorder) Bus() *eventbus.Bus {
	return r.pipeline.Bus()
}

// OnRaw subscribes to every inbound frame, unconverted.
func (r *Recorder) OnRaw(handler func(audio.Frame)) eventbus.Unsubscribe {
	return r.rawBus.On("raw", func(p any) { handler(p.(audio.Frame)) })
}

// OnSpeech subscribes to frames observed while a segment is active.
func (r *Recorder) OnSpeech(handler func(audio.Frame)) eventbus.Unsubscribe {
	return r.speechBus.On("speech", func(p any) { handler(p.(audio.Frame)) })
}

// OnNormalized subscribes to normalized frames. The subscriber is
// immediately replayed up to the last lateSubscriberReplay frames before
// receiving live updates.
func (r *Recorder) OnNormalized(handler func(audio.NormalizedFrame)) eventbus.Unsubscribe {
	for _, f := range r.replayBuf {
		handler(f)
	}
	return r.normalizedBus.On("normalized", func(p any) { handler(p.(audio.NormalizedFrame)) })
}

// OnReady registers a handler fired exactly once, the first time a frame
// is observed. If a frame has already been observed, handler fires
// immediately.
func (r *Recorder) OnReady(handler func()) {
	if r.readyFired {
		handler()
		return
	}
	var unsub eventbus.Unsubscribe
	unsub = r.readyBus.On("ready", func(any) {
		handler()
		unsub()
	})
}

// OnVAD subscribes to "vad" events on the pipeline bus.
func (r *Recorder) OnVAD(handler func(transcript.VADScore)) eventbus.Unsubscribe {
	return r.Bus().On("vad", func(p any) {
		if score, ok := p.(transcript.VADScore); ok {
			handler(score)
		}
	})
}

// OnSegment subscribes to "segment" events on the pipeline bus.
func (r *Recorder) OnSegment(handler func(transcript.Segment)) eventbus.Unsubscribe {
	return r.Bus().On("segment", func(p any) {
		if seg, ok := p.(transcript.Segment); ok {
			handler(seg)
		}
	})
}

// OnError subscribes to "error" events on the pipeline bus.
func (r *Recorder) OnError(handler func(error)) eventbus.Unsubscribe {
	return r.Bus().On("error", func(p any) {
		if err, ok := p.(error); ok {
			handler(err)
		}
	})
}

// Recordings returns the cleaned/full/masked WAV exports.
func (r *Recorder) Recordings() Recordings {
	return Recordings{assembler: r.assembler}
}

// Recordings exposes the cleaned/full/masked accumulators as WAV bytes plus
// a duration in milliseconds.
type Recordings struct {
	assembler *recording.Assembler
}

// Full returns the full recording's WAV bytes and duration, or ok=false if
// the accumulator is disabled.
func (r Recordings) Full() (wav []byte, durationMs int64, ok bool) {
	return export(r.assembler.Full())
}

// Masked returns the masked recording's WAV bytes and duration, or
// ok=false if the accumulator is disabled.
func (r Recordings) Masked() (wav []byte, durationMs int64, ok bool) {
	return export(r.assembler.Masked())
}

// Cleaned returns the cleaned recording's WAV bytes and duration, or
// ok=false if the accumulator is disabled.
func (r Recordings) Cleaned() (wav []byte, durationMs int64, ok bool) {
	return export(r.assembler.Cleaned())
}

func export(snap *recording.Snapshot) ([]byte, int64, bool) {
	if snap == nil {
		return nil, 0, false
	}
	channels := snap.Channels
	if channels <= 0 {
		channels = 1
	}
	var durationMs int64
	if snap.SampleRate > 0 {
		durationMs = int64(float64(len(snap.PCM)) / float64(channels) / float64(snap.SampleRate) * 1000)
	}
	return audio.EncodeWAV(snap.PCM, snap.SampleRate, snap.Channels), durationMs, true
}
