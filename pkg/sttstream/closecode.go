package sttstream

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/teunlao/saraudio-sub000/internal/wsutil"
	"github.com/teunlao/saraudio-sub000/pkg/transcript"
)

// errorFromWireMessage maps an error-shaped wireMessage to a *transcript.Error
// per the status-code rules shared with mapCloseToError.
func errorFromWireMessage(msg wireMessage) *transcript.Error {
	status := statusOf(msg.Status)
	if status == 429 {
		return transcript.NewRateLimit("message", msg.Message, retryAfterMsOf(msg.RetryAfter))
	}
	return errorFromStatus(status, stringify(msg.Code), msg.Message)
}

// retryAfterMsOf parses a retry-after field that may be a string or number
// of seconds, returning it converted to milliseconds.
func retryAfterMsOf(v any) *int64 {
	var seconds float64
	switch t := v.(type) {
	case float64:
		seconds = t
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return nil
		}
		seconds = f
	default:
		return nil
	}
	ms := int64(seconds * 1000)
	return &ms
}

func errorFromStatus(status int, code, message string) *transcript.Error {
	switch {
	case status == 401 || status == 402 || status == 403:
		return transcript.NewAuthentication("message", message)
	case status == 429:
		return transcript.NewRateLimit("message", message, nil)
	case status >= 500:
		return transcript.NewProvider("message", "", code, status, message)
	default:
		return transcript.NewProvider("message", "", code, status, message)
	}
}

// mapCloseToError implements spec §4.5.2: a normal closure (1000) maps to
// no error, whichever side initiated it; a reason beginning with "{" that
// parses as an error-shaped message maps by its status as in
// errorFromWireMessage; otherwise non-clean/1006 closes map to a transient
// Network error, and any other code maps to a Provider error carrying that
// code.
func mapCloseToError(info wsutil.CloseInfo) *transcript.Error {
	if info.Code == websocket.CloseNormalClosure {
		return nil
	}

	reason := strings.TrimSpace(info.Reason)
	if strings.HasPrefix(reason, "{") {
		var msg wireMessage
		if err := json.Unmarshal([]byte(reason), &msg); err == nil && msg.isErrorShaped() {
			return errorFromWireMessage(msg)
		}
	}

	if !info.Clean || info.Code == websocket.CloseAbnormalClosure {
		return transcript.NewNetwork("connect", "connection closed unexpectedly", true)
	}

	return transcript.NewProvider("connect", "", strconv.Itoa(info.Code), 0, info.Reason)
}

func statusOf(v any) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case int:
		return t
	case string:
		n, _ := strconv.Atoi(t)
		return n
	default:
		return 0
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

// toTranscriptError wraps a generic dial/io error as a Network error,
// preserving an existing *transcript.Error's kind rather than re-wrapping
// it blindly.
func toTranscriptError(op string, err error) *transcript.Error {
	if err == nil {
		return nil
	}
	if terr, ok := err.(*transcript.Error); ok {
		return terr
	}
	return transcript.Wrap(transcript.KindNetwork, op, err)
}
