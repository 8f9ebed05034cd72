// Package wsutil provides the gorilla/websocket dial and frame helpers
// shared by pkg/sttstream's provider streaming session.
package wsutil

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// DialConfig configures Dial.
type DialConfig struct {
	URL              string
	Subprotocols     []string
	Header           http.Header
	HandshakeTimeout time.Duration
}

// Dial opens a websocket connection per cfg, honoring ctx for cancellation
// during the handshake.
func Dial(ctx context.Context, cfg DialConfig) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{
		Subprotocols:     cfg.Subprotocols,
		HandshakeTimeout: cfg.HandshakeTimeout,
	}
	return dialer.DialContext(ctx, cfg.URL, cfg.Header)
}

// WriteBinary sends data as a single binary frame.
func WriteBinary(conn *websocket.Conn, data []byte) error {
	return conn.WriteMessage(websocket.BinaryMessage, data)
}

// WriteText sends text as a single text frame.
func WriteText(conn *websocket.Conn, text string) error {
	return conn.WriteMessage(websocket.TextMessage, []byte(text))
}

// CloseNormal performs a client-initiated close with the normal closure
// code (1000), best-effort: send failures are ignored by the caller.
func CloseNormal(conn *websocket.Conn, reason string) error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return conn.Close()
}

// CloseInfo describes a received close frame's code and reason, used by
// the close-code-to-error-kind mapping in pkg/sttstream.
type CloseInfo struct {
	Code   int
	Reason string
	// Clean is false for abnormal closure (code 1006) or any close this
	// process did not negotiate via a standard close handshake.
	Clean bool
}

// IsCloseError reports whether err is (or wraps) a *websocket.CloseError,
// returning its decoded CloseInfo.
func IsCloseError(err error) (CloseInfo, bool) {
	if err == nil {
		return CloseInfo{}, false
	}
	var ce *websocket.CloseError
	if !errors.As(err, &ce) {
		return CloseInfo{}, false
	}
	return CloseInfo{
		Code:   ce.Code,
		Reason: ce.Text,
		Clean:  ce.Code != websocket.CloseAbnormalClosure,
	}, true
}
