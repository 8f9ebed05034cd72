// Package sttchunk implements the HTTP chunking aggregator (spec §4.6):
// for providers without a persistent stream, it accumulates normalized
// PCM16 frames and flushes them as WAV-wrapped batches to a provider's
// batch endpoint on an interval/size trigger, with overlap-windowed
// continuity and bounded in-flight concurrency.
package sttchunk

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/teunlao/saraudio-sub000/internal/o11y"
	"github.com/teunlao/saraudio-sub000/pkg/audio"
	"github.com/teunlao/saraudio-sub000/pkg/transcript"
)

// Config configures an Aggregator.
type Config struct {
	// Client performs the batch HTTP submission. Defaults to
	// http.DefaultClient.
	Client *http.Client
	// Endpoint is the provider's batch transcription URL.
	Endpoint string
	// BuildRequest customizes the outgoing *http.Request (headers, auth).
	// Defaults to a POST of wavBody with Content-Type audio/wav.
	BuildRequest func(ctx context.Context, endpoint string, wavBody []byte) (*http.Request, error)
	// ParseResponse extracts a TranscriptUpdate from a successful response.
	// Required. The aggregator forces Finalize=true on the result.
	ParseResponse func(*http.Response) (transcript.TranscriptUpdate, error)

	IntervalMs    int
	MinDurationMs int
	OverlapMs     int
	MaxInFlight   int
	TimeoutMs     int

	Logger *o11y.Logger
	// Clock is injectable for deterministic tests; defaults to time.Now.
	Clock func() time.Time
}

func (c Config) normalize() Config {
	if c.Client == nil {
		c.Client = http.DefaultClient
	}
	if c.BuildRequest == nil {
		c.BuildRequest = defaultBuildRequest
	}
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = 1
	}
	if c.TimeoutMs <= 0 {
		c.TimeoutMs = 10000
	}
	if c.Logger == nil {
		c.Logger = o11y.NewLogger()
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return c
}

func defaultBuildRequest(ctx context.Context, endpoint string, wavBody []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(wavBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "audio/wav")
	return req, nil
}

// Aggregator accumulates normalized frames and submits WAV-wrapped batches.
type Aggregator struct {
	cfg Config

	mu            sync.Mutex
	buffered      []int16
	bufferedMs    float64
	sampleRate    int
	channels      int
	prevTail      []int16
	closed        bool

	inFlight chan struct{}

	OnUpdate func(transcript.TranscriptUpdate)
	OnError  func(error)
}

// New returns an Aggregator configured with cfg (defaults applied).
func New(cfg Config) *Aggregator {
	cfg = cfg.normalize()
	return &Aggregator{
		cfg:      cfg,
		inFlight: make(chan struct{}, cfg.MaxInFlight),
	}
}

// Push appends a normalized frame's PCM16 to the rolling buffer, triggering
// an automatic flush once the buffered duration reaches both IntervalMs and
// MinDurationMs. Push may backpressure the caller on MaxInFlight when an
// automatic flush fires (spec §5 suspension point).
func (a *Aggregator) Push(frame audio.NormalizedFrame) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.sampleRate = frame.SampleRate
	a.channels = frame.Channels
	a.buffered = append(a.buffered, frame.PCM16...)

	channels := frame.Channels
	if channels <= 0 {
		channels = 1
	}
	if frame.SampleRate > 0 {
		a.bufferedMs += float64(len(frame.PCM16)) / float64(channels) / float64(frame.SampleRate) * 1000
	}

	shouldFlush := a.bufferedMs >= float64(a.cfg.IntervalMs) && a.bufferedMs >= float64(a.cfg.MinDurationMs)
	a.mu.Unlock()

	if shouldFlush {
		a.flush()
	}
}

// ForceFlush flushes the current buffer immediately, regardless of
// interval/minDuration thresholds.
func (a *Aggregator) ForceFlush() {
	a.flush()
}

// Close stops accepting further Push calls. If drainIfPossible is true and
// the buffer is non-empty, one final flush is performed regardless of
// interval.
func (a *Aggregator) Close(drainIfPossible bool) {
	a.mu.Lock()
	a.closed = true
	hasBuffered := len(a.buffered) > 0
	a.mu.Unlock()

	if drainIfPossible && hasBuffered {
		a.flush()
	}
}

func (a *Aggregator) flush() {
	a.mu.Lock()
	if len(a.buffered) == 0 {
		a.mu.Unlock()
		return
	}

	overlapSamples := overlapSampleCount(a.prevTail, a.cfg.OverlapMs, a.sampleRate, a.channels)
	body := make([]int16, 0, overlapSamples+len(a.buffered))
	if overlapSamples > 0 {
		body = append(body, a.prevTail[len(a.prevTail)-overlapSamples:]...)
	}
	body = append(body, a.buffered...)

	sampleRate, channels := a.sampleRate, a.channels
	a.prevTail = append([]int16(nil), a.buffered...)
	a.buffered = nil
	a.bufferedMs = 0
	a.mu.Unlock()

	wav := audio.EncodeWAV(body, sampleRate, channels)

	a.inFlight <- struct{}{}
	go a.submit(wav)
}

func overlapSampleCount(tail []int16, overlapMs, sampleRate, channels int) int {
	if overlapMs <= 0 || sampleRate <= 0 || len(tail) == 0 {
		return 0
	}
	if channels <= 0 {
		channels = 1
	}
	n := sampleRate * channels * overlapMs / 1000
	if n > len(tail) {
		n = len(tail)
	}
	return n
}

func (a *Aggregator) submit(wav []byte) {
	defer func() { <-a.inFlight }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(a.cfg.TimeoutMs)*time.Millisecond)
	defer cancel()

	req, err := a.cfg.BuildRequest(ctx, a.cfg.Endpoint, wav)
	if err != nil {
		a.reportError(err)
		return
	}

	resp, err := a.cfg.Client.Do(req)
	if err != nil {
		a.reportError(err)
		return
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 300 {
		a.reportError(transcript.NewProvider("flush", "", "", resp.StatusCode, nil))
		return
	}

	update, err := a.cfg.ParseResponse(resp)
	if err != nil {
		a.reportError(err)
		return
	}
	update.Finalize = true

	if a.OnUpdate != nil {
		a.OnUpdate(update)
	}
}

func (a *Aggregator) reportError(err error) {
	a.cfg.Logger.Warn(context.Background(), "sttchunk: flush failed", "error", err)
	if a.OnError != nil {
		a.OnError(err)
	}
}
