package sttchunk

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teunlao/saraudio-sub000/pkg/audio"
	"github.com/teunlao/saraudio-sub000/pkg/transcript"
)

func parseTestResponse(resp *http.Response) (transcript.TranscriptUpdate, error) {
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return transcript.TranscriptUpdate{}, err
	}
	return transcript.TranscriptUpdate{Tokens: []transcript.TranscriptToken{{Text: body.Text}}}, nil
}

func TestAggregator_FlushesOnceIntervalAndMinDurationReached(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"hi"}`))
	}))
	defer server.Close()

	var gotUpdate transcript.TranscriptUpdate
	var mu sync.Mutex
	agg := New(Config{
		Endpoint:      server.URL,
		ParseResponse: parseTestResponse,
		IntervalMs:    100,
		MinDurationMs: 50,
	})
	agg.OnUpdate = func(u transcript.TranscriptUpdate) {
		mu.Lock()
		gotUpdate = u
		mu.Unlock()
	}

	// 8000 samples at 16kHz mono = 500ms buffered, over both thresholds.
	samples := make([]int16, 8000)
	agg.Push(audio.NormalizedFrame{PCM16: samples, SampleRate: 16000, Channels: 1})

	require.Eventually(t, func() bool { return atomic.LoadInt32(&requests) == 1 }, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, gotUpdate.Finalize, "aggregator must force finalize=true on success")
	assert.Equal(t, "hi", gotUpdate.Tokens[0].Text)
}

func TestAggregator_BelowMinDurationDoesNotFlush(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
	}))
	defer server.Close()

	agg := New(Config{
		Endpoint:      server.URL,
		ParseResponse: parseTestResponse,
		IntervalMs:    100,
		MinDurationMs: 10000,
	})

	agg.Push(audio.NormalizedFrame{PCM16: make([]int16, 1600), SampleRate: 16000, Channels: 1})
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&requests))
}

func TestAggregator_ForceFlushBypassesThresholds(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		_, _ = w.Write([]byte(`{"text":"x"}`))
	}))
	defer server.Close()

	agg := New(Config{
		Endpoint:      server.URL,
		ParseResponse: parseTestResponse,
		IntervalMs:    100000,
		MinDurationMs: 100000,
	})
	agg.Push(audio.NormalizedFrame{PCM16: []int16{1, 2, 3}, SampleRate: 16000, Channels: 1})
	agg.ForceFlush()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&requests) == 1 }, time.Second, 10*time.Millisecond)
}

func TestAggregator_CloseDrainsOutstandingBuffer(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		_, _ = w.Write([]byte(`{"text":"x"}`))
	}))
	defer server.Close()

	agg := New(Config{
		Endpoint:      server.URL,
		ParseResponse: parseTestResponse,
		IntervalMs:    100000,
		MinDurationMs: 100000,
	})
	agg.Push(audio.NormalizedFrame{PCM16: []int16{1, 2}, SampleRate: 16000, Channels: 1})
	agg.Close(true)

	require.Eventually(t, func() bool { return atomic.LoadInt32(&requests) == 1 }, time.Second, 10*time.Millisecond)
}

func TestAggregator_ErrorResponseInvokesOnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	errCh := make(chan error, 1)
	agg := New(Config{
		Endpoint:      server.URL,
		ParseResponse: parseTestResponse,
		IntervalMs:    1,
		MinDurationMs: 1,
	})
	agg.OnError = func(err error) { errCh <- err }

	// 16 samples at 16kHz mono = 1ms, meeting both 1ms thresholds.
	agg.Push(audio.NormalizedFrame{PCM16: make([]int16, 16), SampleRate: 16000, Channels: 1})

	select {
	case err := <-errCh:
		var terr *transcript.Error
		require.ErrorAs(t, err, &terr)
		assert.Equal(t, transcript.KindProvider, terr.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected OnError to fire")
	}
}

func TestAggregator_OverlapPrependsPreviousTail(t *testing.T) {
	var bodies [][]byte
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, buf)
		mu.Unlock()
		_, _ = w.Write([]byte(`{"text":"x"}`))
	}))
	defer server.Close()

	agg := New(Config{
		Endpoint:      server.URL,
		ParseResponse: parseTestResponse,
		IntervalMs:    1,
		MinDurationMs: 1,
		OverlapMs:     1000,
	})

	// 16 samples at 16kHz mono = 1ms per push, meeting both 1ms thresholds.
	agg.Push(audio.NormalizedFrame{PCM16: make([]int16, 16), SampleRate: 16000, Channels: 1})
	require.Eventually(t, func() bool { mu.Lock(); defer mu.Unlock(); return len(bodies) == 1 }, time.Second, 10*time.Millisecond)

	agg.Push(audio.NormalizedFrame{PCM16: make([]int16, 16), SampleRate: 16000, Channels: 1})
	require.Eventually(t, func() bool { mu.Lock(); defer mu.Unlock(); return len(bodies) == 2 }, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	// second flush's WAV data section should be longer than its 16 raw
	// samples because the first flush's tail is prepended as overlap.
	assert.Greater(t, len(bodies[1]), 44+16*2)
}
