package sttstream

import (
	"context"
	"encoding/binary"

	"github.com/gorilla/websocket"

	"github.com/teunlao/saraudio-sub000/internal/o11y"
	"github.com/teunlao/saraudio-sub000/pkg/audio"
)

// Send enqueues a frame for transmission and attempts to flush the send
// queue. It never suspends: it enqueues and returns (spec §5).
func (s *Session) Send(frame audio.NormalizedFrame) {
	if len(frame.PCM16) == 0 {
		return
	}

	channels := frame.Channels
	if channels <= 0 {
		channels = 1
	}
	sampleRate := frame.SampleRate
	var durationMs float64
	if sampleRate > 0 {
		durationMs = float64(len(frame.PCM16)) / float64(channels) / float64(sampleRate) * 1000
	}

	s.sendMu.Lock()
	s.sendQueue = append(s.sendQueue, queuedFrame{pcm: frame.PCM16, durationMs: durationMs})
	s.queuedMs += durationMs

	budgetMs := float64(s.cfg.SendQueueBudget.Milliseconds())
	for s.queuedMs > budgetMs && len(s.sendQueue) > 1 {
		dropped := s.sendQueue[0]
		s.sendQueue = s.sendQueue[1:]
		s.queuedMs -= dropped.durationMs
		s.cfg.Logger.Warn(context.Background(), "sttstream: dropping oldest queued frame over send-queue budget",
			"queued_ms", s.queuedMs, "budget_ms", budgetMs)
		o11y.RecordFrameDropped(context.Background(), "send_queue_budget")
	}
	s.sendMu.Unlock()

	s.flush()
}

// flush transmits queued frames as binary websocket frames while the
// socket is open and the queue is non-empty. On a send failure it logs
// and aborts this flush pass, leaving the remainder queued.
func (s *Session) flush() {
	s.mu.Lock()
	conn := s.conn
	state := s.state
	s.mu.Unlock()

	if conn == nil || (state != StateConnected && state != StateReady) {
		return
	}

	for {
		s.sendMu.Lock()
		if len(s.sendQueue) == 0 {
			s.sendMu.Unlock()
			return
		}
		head := s.sendQueue[0]
		s.sendMu.Unlock()

		buf := make([]byte, len(head.pcm)*2)
		for i, v := range head.pcm {
			binary.LittleEndian.PutUint16(buf[i*2:i*2+2], uint16(v))
		}

		if err := conn.WriteMessage(websocket.BinaryMessage, buf); err != nil {
			s.cfg.Logger.Warn(context.Background(), "sttstream: binary send failed", "error", err)
			return
		}

		s.sendMu.Lock()
		s.sendQueue = s.sendQueue[1:]
		s.queuedMs -= head.durationMs
		s.sendMu.Unlock()
	}
}
