// Package transcript holds the data model shared between the segmenter,
// provider streaming session, HTTP chunking aggregator, and transcription
// controller: Segment, VADScore, TranscriptToken/Update, and the structured
// Error taxonomy (spec §3, §7).
package transcript

// Segment is a bounded speech segment produced by the segmenter.
// Invariants: EndMs >= StartMs; DurationMs == EndMs - StartMs; when PCM is
// present, len(PCM)/Channels/SampleRate*1000 approximates DurationMs within
// one frame.
type Segment struct {
	ID         string
	StartMs    int64
	EndMs      int64
	DurationMs int64
	SampleRate int
	Channels   int
	PCM        []int16
}

// VADScore is a single voice-activity-detection observation.
type VADScore struct {
	TimestampMs int64
	Score       float64
	Speech      bool
}

// TranscriptToken is one recognized unit of speech within a TranscriptUpdate.
type TranscriptToken struct {
	Text       string
	IsFinal    bool
	StartMs    *int64
	EndMs      *int64
	Confidence *float64
	SpeakerID  *int
	Metadata   map[string]any
}

// TranscriptUpdate is the unit of output the controller surfaces to its
// caller, built from provider wire messages (§6.2) or aggregator responses.
type TranscriptUpdate struct {
	ProviderID string
	Tokens     []TranscriptToken
	Finalize   bool
	SpanStart  *int64
	SpanEnd    *int64
	Language   string
	TurnID     string
	Metadata   map[string]any
	Raw        any
}
