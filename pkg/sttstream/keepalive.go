package sttstream

import (
	"context"
	"time"

	"github.com/teunlao/saraudio-sub000/internal/wsutil"
)

// startKeepalive installs a periodic timer that sends a literal keepalive
// text message while the socket is open. Disabled on any lifecycle exit.
func (s *Session) startKeepalive() {
	s.keepaliveStop = make(chan struct{})
	ticker := time.NewTicker(s.cfg.KeepaliveInterval)

	go func(stop chan struct{}) {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.mu.Lock()
				conn := s.conn
				state := s.state
				s.mu.Unlock()
				if conn == nil || (state != StateConnected && state != StateReady) {
					continue
				}
				if err := wsutil.WriteText(conn, `{"type":"KeepAlive"}`); err != nil {
					s.cfg.Logger.Warn(context.Background(), "sttstream: keepalive send failed", "error", err)
				}
			}
		}
	}(s.keepaliveStop)
}

func (s *Session) stopKeepalive() {
	if s.keepaliveStop != nil {
		close(s.keepaliveStop)
		s.keepaliveStop = nil
	}
}
