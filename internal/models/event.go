// Package models defines the wire structures exchanged over the chat socket.
package models

import (
	"encoding/json"
)

// Inbound event types sent by the chat backend.
const (
	EventContentBlockStart = "content_block_start"
	EventContentBlockDelta = "content_block_delta"
	EventContentBlockStop  = "content_block_stop"
	EventMessageStop       = "message_stop"
	EventErrorMessage      = "error_message"
	EventFilterInfo        = "filter_info"
	EventVerboseInfo       = "verbose_info"
	EventFullResponse      = "full_response"
	EventSourceText        = "source_text"
)

// DeltaTypeText marks a delta carrying assistant text.
const DeltaTypeText = "text_delta"

// ChatRequest is the outbound envelope carrying user text.
type ChatRequest struct {
	Message string `json:"message"`
}

// Delta is an incremental fragment of a streamed content block.
type Delta struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Event is a single inbound frame. Text is kept raw because source_text
// carries an array of strings while the other types carry a string.
type Event struct {
	Type    string          `json:"type"`
	Index   int             `json:"index,omitempty"`
	Delta   *Delta          `json:"delta,omitempty"`
	Text    json.RawMessage `json:"text,omitempty"`
	Metrics Metrics         `json:"amazon-bedrock-invocationMetrics,omitempty"`
}

// NewTextEvent builds an event whose text payload is a single string.
func NewTextEvent(eventType, text string) Event {
	raw, _ := json.Marshal(text)
	return Event{Type: eventType, Text: raw}
}

// NewSourceEvent builds a source_text event.
func NewSourceEvent(texts []string) Event {
	if texts == nil {
		texts = []string{}
	}
	raw, _ := json.Marshal(texts)
	return Event{Type: EventSourceText, Text: raw}
}

// TextString decodes the text payload as a string.
func (e Event) TextString() (string, error) {
	var s string
	err := json.Unmarshal(e.Text, &s)
	return s, err
}

// TextList decodes the text payload as a list of strings.
func (e Event) TextList() ([]string, error) {
	var list []string
	err := json.Unmarshal(e.Text, &list)
	return list, err
}
