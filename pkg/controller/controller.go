package controller

import (
	"context"
	"sync"
	"time"

	"github.com/teunlao/saraudio-sub000/internal/o11y"
	"github.com/teunlao/saraudio-sub000/internal/retryutil"
	"github.com/teunlao/saraudio-sub000/pkg/audio"
	"github.com/teunlao/saraudio-sub000/pkg/eventbus"
	"github.com/teunlao/saraudio-sub000/pkg/transcript"
)

// State is the controller's connection lifecycle state (spec §4.7).
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateReady
	StateRetrying
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReady:
		return "ready"
	case StateRetrying:
		return "retrying"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

const (
	defaultPreconnectBufferMs = 120
	minPreconnectBufferMs     = 0
	maxPreconnectBufferMs     = 250
	forceEndpointCooldown     = 200 * time.Millisecond
)

// RecorderSource is the capture collaborator a Controller subscribes to: a
// Recorder (or any equivalent) producing normalized frames and segment
// boundaries.
type RecorderSource interface {
	OnNormalized(handler func(audio.NormalizedFrame)) eventbus.Unsubscribe
	OnSegment(handler func(transcript.Segment)) eventbus.Unsubscribe
}

// Retry configures the controller's reconnect-on-drop behavior.
type Retry struct {
	Enabled     bool
	MaxAttempts int
	Policy      retryutil.Policy
}

func (r Retry) normalize() Retry {
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = 5
	}
	if r.Policy == (retryutil.Policy{}) {
		r.Policy = retryutil.DefaultPolicy()
	}
	return r
}

// Config configures a Controller.
type Config struct {
	// PreconnectBufferMs bounds how much audio is buffered before the
	// transport is connected. Defaults to 120ms, clamped to [0, 250]ms.
	PreconnectBufferMs int
	// FlushOnSegmentEnd requests a provider force-endpoint at each segment
	// boundary, subject to a 200ms cooldown and provider capability.
	FlushOnSegmentEnd bool
	Retry             Retry
	Logger            *o11y.Logger
}

func (c Config) normalize() Config {
	if c.PreconnectBufferMs == 0 {
		c.PreconnectBufferMs = defaultPreconnectBufferMs
	}
	if c.PreconnectBufferMs < minPreconnectBufferMs {
		c.PreconnectBufferMs = minPreconnectBufferMs
	}
	if c.PreconnectBufferMs > maxPreconnectBufferMs {
		c.PreconnectBufferMs = maxPreconnectBufferMs
	}
	c.Retry = c.Retry.normalize()
	if c.Logger == nil {
		c.Logger = o11y.NewLogger()
	}
	return c
}

type bufferedFrame struct {
	frame      audio.NormalizedFrame
	durationMs float64
}

// Controller is the transcription controller (spec §4.7): it owns a
// Transport, subscribes to a RecorderSource, and routes frames to the
// transport once connected, buffering audio captured before the transport
// comes up and retrying dropped connections with backoff.
type Controller struct {
	cfg       Config
	transport Transport
	source    RecorderSource

	mu           sync.Mutex
	state        State
	attempts     int
	preconnect   []bufferedFrame
	preconnectMs float64
	subscribed   bool
	unsubNorm    eventbus.Unsubscribe
	unsubSeg     eventbus.Unsubscribe
	connectingCh chan struct{}
	lastForceAt  time.Time
	retryTimer   *time.Timer
	retryGen     int
	lastErr      *transcript.Error

	segmentEndedAt time.Time

	OnTranscript  func(transcript.TranscriptUpdate)
	OnError       func(*transcript.Error)
	OnStateChange func(State)
}

// New returns a Controller bound to transport and source, with cfg defaults
// applied. The recorder subscription is attached immediately (spec §4.7:
// "attached on construction").
func New(transport Transport, source RecorderSource, cfg Config) *Controller {
	c := &Controller{
		cfg:       cfg.normalize(),
		transport: transport,
		source:    source,
		state:     StateIdle,
	}
	c.attach()
	wireTransportCallbacks(c, transport)
	return c
}

func wireTransportCallbacks(c *Controller, t Transport) {
	if t.stream != nil {
		t.stream.OnTranscript = func(u transcript.TranscriptUpdate) {
			c.recordEndpointLatency()
			if c.OnTranscript != nil {
				c.OnTranscript(u)
			}
		}
		t.stream.OnReady = func() {
			c.setState(StateReady)
		}
		t.stream.OnError = func(err *transcript.Error) {
			c.handleTransportError(err)
		}
	}
	if t.chunk != nil {
		t.chunk.OnUpdate = func(u transcript.TranscriptUpdate) {
			c.recordEndpointLatency()
			if c.OnTranscript != nil {
				c.OnTranscript(u)
			}
		}
		t.chunk.OnError = func(err error) {
			c.handleTransportError(toControllerError(err))
		}
	}
}

// recordEndpointLatency reports the elapsed time since the most recent
// segment boundary, if one is pending, then clears it so only the first
// transcript update following a segment is measured.
func (c *Controller) recordEndpointLatency() {
	c.mu.Lock()
	since := c.segmentEndedAt
	c.segmentEndedAt = time.Time{}
	c.mu.Unlock()

	if since.IsZero() {
		return
	}
	o11y.RecordEndpointLatency(context.Background(), float64(time.Since(since).Milliseconds()))
}

func toControllerError(err error) *transcript.Error {
	if terr, ok := err.(*transcript.Error); ok {
		return terr
	}
	return transcript.Wrap(transcript.KindProvider, "transport", err)
}

// State returns the controller's current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	if c.OnStateChange != nil {
		c.OnStateChange(s)
	}
}

// attach subscribes to the RecorderSource's normalized-frame and segment
// streams, if not already subscribed (spec §4.7: single-subscription
// enforcement).
func (c *Controller) attach() {
	c.mu.Lock()
	if c.subscribed || c.source == nil {
		c.mu.Unlock()
		return
	}
	c.subscribed = true
	c.mu.Unlock()

	c.unsubNorm = c.source.OnNormalized(c.routeFrame)
	c.unsubSeg = c.source.OnSegment(func(transcript.Segment) { c.onSegmentBoundary() })
}

func (c *Controller) detach() {
	c.mu.Lock()
	if !c.subscribed {
		c.mu.Unlock()
		return
	}
	c.subscribed = false
	unN, unS := c.unsubNorm, c.unsubSeg
	c.mu.Unlock()
	if unN != nil {
		unN()
	}
	if unS != nil {
		unS()
	}
}

// routeFrame dispatches a captured frame per the controller's current state
// (spec §4.7): buffered while not connected, forwarded to the transport
// once connected or ready.
func (c *Controller) routeFrame(frame audio.NormalizedFrame) {
	c.mu.Lock()
	connected := c.state == StateConnected || c.state == StateReady
	c.mu.Unlock()

	if connected {
		c.transport.send(frame)
		return
	}
	c.bufferPreconnect(frame)
}

func (c *Controller) bufferPreconnect(frame audio.NormalizedFrame) {
	channels := frame.Channels
	if channels <= 0 {
		channels = 1
	}
	var durationMs float64
	if frame.SampleRate > 0 {
		durationMs = float64(len(frame.PCM16)) / float64(channels) / float64(frame.SampleRate) * 1000
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.preconnect = append(c.preconnect, bufferedFrame{frame: frame, durationMs: durationMs})
	c.preconnectMs += durationMs

	capMs := float64(c.cfg.PreconnectBufferMs)
	for c.preconnectMs > capMs && len(c.preconnect) > 1 {
		dropped := c.preconnect[0]
		c.preconnect = c.preconnect[1:]
		c.preconnectMs -= dropped.durationMs
		c.cfg.Logger.Warn(context.Background(), "controller: preconnect buffer over cap, dropping oldest frame",
			"capMs", c.cfg.PreconnectBufferMs)
	}
}

func (c *Controller) drainPreconnect() {
	c.mu.Lock()
	buffered := c.preconnect
	c.preconnect = nil
	c.preconnectMs = 0
	c.mu.Unlock()

	for _, b := range buffered {
		c.transport.send(b.frame)
	}
}

// onSegmentBoundary asks the transport to force-endpoint, subject to a
// 200ms cooldown and the transport declaring support (spec §4.7).
func (c *Controller) onSegmentBoundary() {
	c.mu.Lock()
	c.segmentEndedAt = time.Now()
	c.mu.Unlock()

	if !c.cfg.FlushOnSegmentEnd {
		return
	}
	if !c.transport.forceEndpointSupported() {
		c.cfg.Logger.Debug(context.Background(), "controller: force-endpoint requested but transport does not support it")
		return
	}

	c.mu.Lock()
	now := time.Now()
	if now.Sub(c.lastForceAt) < forceEndpointCooldown {
		c.mu.Unlock()
		return
	}
	c.lastForceAt = now
	c.mu.Unlock()

	c.transport.forceEndpoint()
}

// Connect opens the transport, attaching the recorder subscription if it
// was previously detached. Two concurrent Connect calls coalesce into one
// underlying attempt. On success, any preconnect-buffered audio drains to
// the transport in order.
func (c *Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateConnected || c.state == StateReady {
		c.mu.Unlock()
		return nil
	}
	if c.connectingCh != nil {
		ch := c.connectingCh
		c.mu.Unlock()
		select {
		case <-ch:
			return errOrNil(c.LastError())
		case <-ctx.Done():
			return transcript.NewAborted("connect", "cancelled while awaiting in-flight connect")
		}
	}
	ch := make(chan struct{})
	c.connectingCh = ch
	c.state = StateConnecting
	c.mu.Unlock()

	c.attach()

	err := c.transport.connect(ctx)

	c.mu.Lock()
	close(ch)
	c.connectingCh = nil
	if err != nil {
		c.lastErr = toControllerError(err)
		c.state = StateDisconnected
	} else {
		c.attempts = 0
		c.lastErr = nil
		c.state = StateConnected
	}
	c.mu.Unlock()

	if err == nil {
		c.drainPreconnect()
	}
	return err
}

// LastError returns the most recent terminal transport error, if any.
func (c *Controller) LastError() *transcript.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func errOrNil(e *transcript.Error) error {
	if e == nil {
		return nil
	}
	return e
}

// Disconnect tears down the transport fully (including any chunking
// aggregator) and cancels any pending retry. The recorder subscription
// remains attached; incoming frames continue to buffer into the preconnect
// queue.
func (c *Controller) Disconnect(ctx context.Context) error {
	c.cancelRetry()
	err := c.transport.disconnect(ctx)
	c.setState(StateDisconnected)
	return err
}

// Dispose detaches from the recorder source and cancels any pending retry.
// It does not close the transport; callers should Disconnect first.
func (c *Controller) Dispose() {
	c.cancelRetry()
	c.detach()
}

func (c *Controller) handleTransportError(err *transcript.Error) {
	c.mu.Lock()
	c.lastErr = err
	c.state = StateDisconnected
	c.mu.Unlock()

	if c.OnError != nil {
		c.OnError(err)
	}

	if err != nil && err.Retryable() && c.cfg.Retry.Enabled {
		c.scheduleRetry(err)
	}
}

func (c *Controller) scheduleRetry(err *transcript.Error) {
	c.mu.Lock()
	c.attempts++
	attempt := c.attempts
	if attempt > c.cfg.Retry.MaxAttempts {
		c.mu.Unlock()
		return
	}
	c.retryGen++
	gen := c.retryGen
	c.state = StateRetrying
	c.mu.Unlock()

	o11y.RecordReconnectAttempt(context.Background())

	delay := c.cfg.Retry.Policy.Delay(attempt)
	if err.RetryAfterMs != nil {
		// A server-supplied RetryAfterMs overrides the computed backoff
		// outright, regardless of attempt number (spec §4.7).
		delay = time.Duration(*err.RetryAfterMs) * time.Millisecond
	}

	c.mu.Lock()
	if c.retryTimer != nil {
		c.retryTimer.Stop()
	}
	c.retryTimer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		stale := gen != c.retryGen
		c.mu.Unlock()
		if stale {
			return
		}
		_ = c.Connect(context.Background())
	})
	c.mu.Unlock()
}

func (c *Controller) cancelRetry() {
	c.mu.Lock()
	c.retryGen++
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	c.mu.Unlock()
}
