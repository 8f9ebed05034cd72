package sttstream

import (
	"context"

	"github.com/gorilla/websocket"

	"github.com/teunlao/saraudio-sub000/pkg/transcript"
)

// message parses and dispatches one inbound frame per spec §4.5 step 2.
// Only text messages are parsed; non-text (binary) messages are ignored.
func (s *Session) message(messageType int, raw []byte) {
	if messageType != websocket.TextMessage {
		return
	}

	msg, err := parseWireMessage(raw)
	if err != nil {
		s.cfg.Logger.Warn(context.Background(), "sttstream: failed to parse inbound message", "error", err)
		return
	}

	switch {
	case msg.isErrorShaped():
		terr := errorFromWireMessage(msg)
		s.mu.Lock()
		s.lastErr = terr
		s.mu.Unlock()
		if s.OnError != nil {
			s.OnError(terr)
		}

	case msg.isReadyShaped():
		s.markReady()

	case msg.isResultsShaped():
		update, ok := resultsToUpdate(msg)
		if !ok {
			return
		}
		s.markReady()
		if s.OnTranscript != nil {
			s.OnTranscript(update)
		}

	case msg.isUtteranceEndShaped():
		update := transcript.TranscriptUpdate{
			Tokens:   nil,
			Finalize: true,
			Metadata: map[string]any{
				"type":          "UtteranceEnd",
				"channel_index": msg.ChannelIndex,
			},
		}
		if msg.LastWordEnd != nil {
			update.SpanEnd = msToPtr(*msg.LastWordEnd)
		}
		if s.OnTranscript != nil {
			s.OnTranscript(update)
		}
	}
}

func (s *Session) markReady() {
	s.mu.Lock()
	if s.readyFired {
		s.mu.Unlock()
		return
	}
	s.readyFired = true
	s.state = StateReady
	s.mu.Unlock()
	if s.OnReady != nil {
		s.OnReady()
	}
}

// resultsToUpdate implements spec §4.5.1: take the first alternative of the
// first channel. If it has a word list, emit one token per word; else, if
// it has non-empty transcript text, emit a single token. If neither, and
// the message is not a terminal signal, drop the update entirely.
func resultsToUpdate(msg wireMessage) (transcript.TranscriptUpdate, bool) {
	update := transcript.TranscriptUpdate{
		Metadata: map[string]any{
			"type":          msg.Type,
			"channel_index": msg.ChannelIndex,
			"is_final":      msg.IsFinal,
			"speech_final":  msg.SpeechFinal,
		},
	}
	if msg.RequestID != "" {
		update.Metadata["request_id"] = msg.RequestID
	}

	if msg.Channel == nil || len(msg.Channel.Alternatives) == 0 {
		return update, false
	}
	alt := msg.Channel.Alternatives[0]
	update.Language = alt.Language

	if len(alt.Words) > 0 {
		for _, w := range alt.Words {
			text := w.PunctuatedWord
			if text == "" {
				text = w.Word
			}
			text, marked := stripMarkers(text)
			if marked {
				update.Finalize = true
			}
			if text == "" && marked {
				continue
			}
			token := transcript.TranscriptToken{
				Text:       text + " ",
				IsFinal:    msg.IsFinal,
				StartMs:    msToPtr(w.Start),
				EndMs:      msToPtr(w.End),
				Confidence: w.Confidence,
			}
			if w.Speaker != nil {
				token.SpeakerID = w.Speaker
			}
			update.Tokens = append(update.Tokens, token)
		}
		if len(update.Tokens) > 0 || update.Finalize {
			return update, true
		}
		return update, false
	}

	if alt.Transcript != "" {
		text, marked := stripMarkers(alt.Transcript)
		if marked {
			update.Finalize = true
		}
		if text == "" {
			return update, update.Finalize
		}
		update.Tokens = []transcript.TranscriptToken{{
			Text:       text,
			IsFinal:    msg.IsFinal,
			Confidence: alt.Confidence,
		}}
		return update, true
	}

	return update, false
}
