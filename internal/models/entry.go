package models

// TranscriptEntryEvent is published once a transcript entry is complete.
type TranscriptEntryEvent struct {
	EventType string `json:"eventType"`
	SessionID string `json:"sessionId"`
	Sequence  int    `json:"sequence"`
	From      string `json:"from"`
	Verbose   bool   `json:"verbose,omitempty"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// EventTypeTranscriptEntry is the eventType of TranscriptEntryEvent.
const EventTypeTranscriptEntry = "chat.transcript.entry"
