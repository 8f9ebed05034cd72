package sttstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teunlao/saraudio-sub000/internal/wsutil"
	"github.com/teunlao/saraudio-sub000/pkg/audio"
	"github.com/teunlao/saraudio-sub000/pkg/transcript"
)

// mockServer is a minimal websocket test server grounded on the teacher's
// testutils.NewMockWebSocketServer pattern (stt/providers/deepgram
// websocket_test.go): it upgrades incoming connections, records every
// received binary/text message, and optionally replays scripted responses.
type mockServer struct {
	*httptest.Server

	mu       sync.Mutex
	messages [][]byte
	conn     *websocket.Conn
	connCh   chan struct{}
}

func newMockServer(t *testing.T) *mockServer {
	upgrader := websocket.Upgrader{}
	m := &mockServer{connCh: make(chan struct{}, 1)}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		m.mu.Lock()
		m.conn = conn
		m.mu.Unlock()
		m.connCh <- struct{}{}

		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt == websocket.BinaryMessage || mt == websocket.TextMessage {
				m.mu.Lock()
				m.messages = append(m.messages, append([]byte(nil), data...))
				m.mu.Unlock()
			}
		}
	}))
	return m
}

func (m *mockServer) waitForConnection(t *testing.T) {
	select {
	case <-m.connCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server connection")
	}
}

func (m *mockServer) send(t *testing.T, payload string) {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	require.NotNil(t, conn)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(payload)))
}

func (m *mockServer) getMessages() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.messages))
	copy(out, m.messages)
	return out
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func TestSession_ConnectAndSendTransmitsBinaryFrame(t *testing.T) {
	server := newMockServer(t)
	defer server.Close()

	sess := New(Config{
		Dial: func(ctx context.Context) (wsutil.DialConfig, error) {
			return wsutil.DialConfig{URL: wsURL(server.URL)}, nil
		},
	})

	require.NoError(t, sess.Connect(context.Background()))
	server.waitForConnection(t)

	sess.Send(audio.NormalizedFrame{PCM16: []int16{1, 2, 3}, SampleRate: 16000, Channels: 1})

	require.Eventually(t, func() bool {
		return len(server.getMessages()) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestSession_SendZeroLengthFrameIsIgnored(t *testing.T) {
	server := newMockServer(t)
	defer server.Close()

	sess := New(Config{
		Dial: func(ctx context.Context) (wsutil.DialConfig, error) {
			return wsutil.DialConfig{URL: wsURL(server.URL)}, nil
		},
	})
	require.NoError(t, sess.Connect(context.Background()))
	server.waitForConnection(t)

	sess.Send(audio.NormalizedFrame{PCM16: nil, SampleRate: 16000, Channels: 1})

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, server.getMessages())
}

func TestSession_ReceivesResultsAndFiresOnTranscript(t *testing.T) {
	server := newMockServer(t)
	defer server.Close()

	sess := New(Config{
		Dial: func(ctx context.Context) (wsutil.DialConfig, error) {
			return wsutil.DialConfig{URL: wsURL(server.URL)}, nil
		},
	})

	updates := make(chan string, 1)
	sess.OnTranscript = func(u transcript.TranscriptUpdate) {
		if len(u.Tokens) > 0 {
			updates <- u.Tokens[0].Text
		}
	}

	require.NoError(t, sess.Connect(context.Background()))
	server.waitForConnection(t)

	server.send(t, `{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"hello"}]}}`)

	select {
	case text := <-updates:
		assert.Equal(t, "hello", text)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for transcript update")
	}
}

func TestSession_ConnectCoalescesConcurrentCalls(t *testing.T) {
	server := newMockServer(t)
	defer server.Close()

	var dialCount int
	var mu sync.Mutex
	sess := New(Config{
		Dial: func(ctx context.Context) (wsutil.DialConfig, error) {
			mu.Lock()
			dialCount++
			mu.Unlock()
			return wsutil.DialConfig{URL: wsURL(server.URL)}, nil
		},
	})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = sess.Connect(context.Background())
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, dialCount)
}

func TestSession_ConnectFailsFastOnAlreadyCancelledContext(t *testing.T) {
	sess := New(Config{
		Dial: func(ctx context.Context) (wsutil.DialConfig, error) {
			t.Fatal("dial must not be attempted when context is already cancelled")
			return wsutil.DialConfig{}, nil
		},
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sess.Connect(ctx)
	require.Error(t, err)
}
