// Package controller implements the transcription controller (spec §4.7):
// it wires a provider transport and an optional capture source (via the
// recorder façade) together, manages connect/reconnect with retry, bridges
// preconnect audio, and surfaces a unified TranscriptUpdate/error lifecycle.
package controller

import (
	"context"

	"github.com/teunlao/saraudio-sub000/pkg/audio"
	"github.com/teunlao/saraudio-sub000/pkg/sttchunk"
	"github.com/teunlao/saraudio-sub000/pkg/sttstream"
)

// Transport is a tagged variant over the two live-transcription transports
// (spec §9 open question): a persistent streaming session, or a chunked
// HTTP aggregator. Exactly one of the two is set.
type Transport struct {
	stream *sttstream.Session
	chunk  *sttchunk.Aggregator
}

// StreamingTransport wraps a provider streaming session as a Transport.
func StreamingTransport(s *sttstream.Session) Transport {
	return Transport{stream: s}
}

// ChunkedTransport wraps an HTTP chunking aggregator as a Transport.
func ChunkedTransport(a *sttchunk.Aggregator) Transport {
	return Transport{chunk: a}
}

// IsStreaming reports whether this Transport wraps a streaming session.
func (t Transport) IsStreaming() bool {
	return t.stream != nil
}

// IsChunked reports whether this Transport wraps a chunked aggregator.
func (t Transport) IsChunked() bool {
	return t.chunk != nil
}

func (t Transport) connect(ctx context.Context) error {
	if t.stream != nil {
		return t.stream.Connect(ctx)
	}
	return nil
}

func (t Transport) disconnect(ctx context.Context) error {
	if t.stream != nil {
		return t.stream.Disconnect(ctx)
	}
	if t.chunk != nil {
		t.chunk.Close(false)
	}
	return nil
}

func (t Transport) send(frame audio.NormalizedFrame) {
	if t.stream != nil {
		t.stream.Send(frame)
		return
	}
	if t.chunk != nil {
		t.chunk.Push(frame)
	}
}

func (t Transport) forceEndpointSupported() bool {
	return t.stream != nil && t.stream.ForceEndpointSupported()
}

func (t Transport) forceEndpoint() {
	if t.stream != nil {
		t.stream.ForceEndpoint()
	}
}
