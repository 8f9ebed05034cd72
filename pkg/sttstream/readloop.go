package sttstream

import (
	"github.com/gorilla/websocket"

	"github.com/teunlao/saraudio-sub000/internal/wsutil"
)

// readLoop reads inbound messages from conn until it closes or errors,
// dispatching each to message. On exit it maps the close/error to a
// transcript.Error (spec §4.5.2) and reports it via OnError, transitioning
// the session to disconnected/error.
func (s *Session) readLoop(conn *websocket.Conn) {
	defer close(s.readDone)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			s.onReadLoopExit(err)
			return
		}
		s.message(msgType, data)
	}
}

func (s *Session) onReadLoopExit(err error) {
	s.stopKeepalive()

	s.mu.Lock()
	wasClientDisconnect := s.state == StateDisconnected
	s.mu.Unlock()
	if wasClientDisconnect {
		return
	}

	info, ok := wsutil.IsCloseError(err)
	if !ok {
		info = wsutil.CloseInfo{Code: websocket.CloseAbnormalClosure, Clean: false}
	}

	mapped := mapCloseToError(info)

	s.mu.Lock()
	s.conn = nil
	if mapped != nil {
		s.state = StateError
		s.lastErr = mapped
	} else {
		s.state = StateDisconnected
	}
	s.mu.Unlock()

	if mapped != nil && s.OnError != nil {
		s.OnError(mapped)
	}
}
