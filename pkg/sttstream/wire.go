package sttstream

import (
	"encoding/json"
	"math"
	"regexp"
	"strings"
)

// wireMessage covers every inbound shape the parser must recognize (spec
// §6.2): error, ready/metadata, results, and utterance-end. Dispatch is by
// shape, not by Type alone.
type wireMessage struct {
	Type string `json:"type"`

	Code       any    `json:"code,omitempty"`
	Status     any    `json:"status,omitempty"`
	Message    string `json:"message,omitempty"`
	RetryAfter any    `json:"retry_after,omitempty"`

	Channel      *wireChannel `json:"channel,omitempty"`
	ChannelIndex []int        `json:"channel_index,omitempty"`
	IsFinal      bool         `json:"is_final,omitempty"`
	SpeechFinal  bool         `json:"speech_final,omitempty"`
	RequestID    string       `json:"request_id,omitempty"`
	LastWordEnd  *float64     `json:"last_word_end,omitempty"`
}

type wireChannel struct {
	Alternatives []wireAlternative `json:"alternatives"`
}

type wireAlternative struct {
	Transcript string     `json:"transcript"`
	Confidence *float64   `json:"confidence,omitempty"`
	Language   string     `json:"language,omitempty"`
	Words      []wireWord `json:"words,omitempty"`
}

type wireWord struct {
	Word           string   `json:"word"`
	PunctuatedWord string   `json:"punctuated_word,omitempty"`
	Start          float64  `json:"start"`
	End            float64  `json:"end"`
	Confidence     *float64 `json:"confidence,omitempty"`
	Speaker        *int     `json:"speaker,omitempty"`
}

// isErrorShaped reports whether msg carries error code/status fields
// (whatever its Type tag) or is tagged "Error".
func (m wireMessage) isErrorShaped() bool {
	return m.Code != nil || m.Status != nil || m.Type == "Error"
}

// isReadyShaped reports whether msg marks the stream ready.
func (m wireMessage) isReadyShaped() bool {
	return m.Type == "Metadata" || m.Type == "Ready"
}

// isResultsShaped reports whether msg carries a transcription result.
func (m wireMessage) isResultsShaped() bool {
	return m.Type == "Results" || m.Channel != nil
}

// isUtteranceEndShaped reports whether msg signals utterance end.
func (m wireMessage) isUtteranceEndShaped() bool {
	return m.Type == "UtteranceEnd"
}

func parseWireMessage(raw []byte) (wireMessage, error) {
	var m wireMessage
	err := json.Unmarshal(raw, &m)
	return m, err
}

// markerPattern matches Soniox-style inline markers such as "<fin>" or
// "<end>" embedded in transcript text (spec.md §9 Open Questions: markers
// are excluded from token text and finalize the enclosing update).
var markerPattern = regexp.MustCompile(`<[a-zA-Z][a-zA-Z0-9_]*>`)

// stripMarkers removes any inline markers from text and reports whether at
// least one was found.
func stripMarkers(text string) (stripped string, found bool) {
	if !strings.Contains(text, "<") {
		return text, false
	}
	stripped = markerPattern.ReplaceAllString(text, "")
	return stripped, stripped != text
}

func msToPtr(seconds float64) *int64 {
	v := int64(math.Round(seconds * 1000))
	return &v
}
