// Package sttstream implements the provider streaming session (spec §4.5):
// a persistent websocket-based transcription session with a duration-
// bounded outbound send queue, keepalive, inbound message parsing, and
// close-code-to-error-kind mapping.
package sttstream

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teunlao/saraudio-sub000/internal/o11y"
	"github.com/teunlao/saraudio-sub000/internal/wsutil"
	"github.com/teunlao/saraudio-sub000/pkg/transcript"
)

// State is the session's connection lifecycle state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateReady
	StateDisconnected
	StateError
)

func clampDuration(v, lo, hi time.Duration) time.Duration {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Config configures a Session.
type Config struct {
	// Dial returns the URL and subprotocols to connect with. Required.
	Dial func(ctx context.Context) (wsutil.DialConfig, error)

	// KeepaliveInterval defaults to 8s, clamped to [1s, 30s].
	KeepaliveInterval time.Duration
	// SendQueueBudget defaults to 200ms, clamped to [100ms, 500ms].
	SendQueueBudget time.Duration

	// ForceEndpointSupported declares whether this provider accepts a
	// force-endpoint control message (spec §4.7).
	ForceEndpointSupported bool
	// ForceEndpointPayload is the text control frame sent when a segment
	// boundary asks the provider to finalize early. Defaults to a generic
	// Finalize message; provider adapters override it to match their wire
	// protocol.
	ForceEndpointPayload string

	Logger *o11y.Logger
}

func (c Config) normalize() Config {
	if c.KeepaliveInterval <= 0 {
		c.KeepaliveInterval = 8 * time.Second
	}
	c.KeepaliveInterval = clampDuration(c.KeepaliveInterval, time.Second, 30*time.Second)

	if c.SendQueueBudget <= 0 {
		c.SendQueueBudget = 200 * time.Millisecond
	}
	c.SendQueueBudget = clampDuration(c.SendQueueBudget, 100*time.Millisecond, 500*time.Millisecond)

	if c.Logger == nil {
		c.Logger = o11y.NewLogger()
	}
	if c.ForceEndpointPayload == "" {
		c.ForceEndpointPayload = `{"type":"Finalize"}`
	}
	return c
}

type queuedFrame struct {
	pcm        []int16
	durationMs float64
}

// Session is one live provider streaming-socket transcription session.
type Session struct {
	cfg Config

	mu           sync.Mutex
	state        State
	conn         *websocket.Conn
	connectingCh chan struct{}
	lastErr      *transcript.Error
	readyFired   bool

	sendMu      sync.Mutex
	sendQueue   []queuedFrame
	queuedMs    float64

	keepaliveStop chan struct{}
	readDone      chan struct{}

	OnTranscript func(transcript.TranscriptUpdate)
	OnError      func(*transcript.Error)
	OnReady      func()
}

// New returns a Session configured with cfg (defaults applied/clamped).
func New(cfg Config) *Session {
	return &Session{cfg: cfg.normalize()}
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastError returns the last terminal error, or nil if the session has not
// errored (or has since reconnected successfully).
func (s *Session) LastError() *transcript.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// ForceEndpointSupported reports whether this session's provider accepts a
// force-endpoint control message.
func (s *Session) ForceEndpointSupported() bool {
	return s.cfg.ForceEndpointSupported
}

// Connect opens the underlying socket. Two concurrent Connect calls result
// in exactly one dial attempt; the second awaits the first. A cancellation
// signal already fired before connect fails with Aborted without dialing.
func (s *Session) Connect(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return transcript.NewAborted("connect", "cancelled before connect")
	default:
	}

	s.mu.Lock()
	if s.state == StateConnected || s.state == StateReady {
		s.mu.Unlock()
		return nil
	}
	if s.connectingCh != nil {
		ch := s.connectingCh
		s.mu.Unlock()
		select {
		case <-ch:
			return errOrNil(s.LastError())
		case <-ctx.Done():
			return transcript.NewAborted("connect", "cancelled while awaiting in-flight connect")
		}
	}
	ch := make(chan struct{})
	s.connectingCh = ch
	s.state = StateConnecting
	s.lastErr = nil
	s.mu.Unlock()

	err := s.doConnect(ctx)

	s.mu.Lock()
	close(ch)
	s.connectingCh = nil
	if err != nil {
		s.state = StateError
		s.lastErr = toTranscriptError("connect", err)
	} else {
		s.state = StateConnected
	}
	s.mu.Unlock()

	return err
}

func (s *Session) doConnect(ctx context.Context) error {
	dialCfg, err := s.cfg.Dial(ctx)
	if err != nil {
		return err
	}
	conn, _, err := wsutil.Dial(ctx, dialCfg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.readyFired = false
	s.mu.Unlock()

	s.readDone = make(chan struct{})
	go s.readLoop(conn)

	s.startKeepalive()
	return nil
}

// Disconnect performs a client-initiated close: sends a terminal text
// message (best-effort), then closes with code 1000. Redundant disconnects
// are no-ops.
func (s *Session) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.state = StateDisconnected
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	s.stopKeepalive()
	_ = wsutil.WriteText(conn, `{"type":"CloseStream"}`)
	return wsutil.CloseNormal(conn, "")
}

// ForceEndpoint asks the provider to finalize the current utterance early,
// if it declared support for it and the socket is open. A no-op otherwise.
func (s *Session) ForceEndpoint() {
	if !s.cfg.ForceEndpointSupported {
		return
	}
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}
	_ = wsutil.WriteText(conn, s.cfg.ForceEndpointPayload)
}

func errOrNil(e *transcript.Error) error {
	if e == nil {
		return nil
	}
	return e
}
