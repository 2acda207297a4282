// Package schema validates inbound chat events before they reach the transcript.
package schema

import (
	"errors"
	"fmt"
	"strings"

	"genai-chat-client/internal/models"
)

var (
	ErrMissingType  = errors.New("event has no type")
	ErrMissingDelta = errors.New("delta event has no delta")
	ErrInvalidText  = errors.New("event text has the wrong shape")
	ErrEmptyMessage = errors.New("chat request has no message")
)

type Validator struct{}

func New() *Validator {
	return &Validator{}
}

// Validate checks the payload shape required by the event type.
// Unknown types pass; the dispatcher decides what to do with them.
func (v *Validator) Validate(ev models.Event) error {
	switch ev.Type {
	case "":
		return ErrMissingType
	case models.EventContentBlockDelta:
		if ev.Delta == nil {
			return ErrMissingDelta
		}
	case models.EventErrorMessage, models.EventFilterInfo, models.EventVerboseInfo, models.EventFullResponse:
		if _, err := ev.TextString(); err != nil {
			return fmt.Errorf("%s: %w", ev.Type, ErrInvalidText)
		}
	case models.EventSourceText:
		if _, err := ev.TextList(); err != nil {
			return fmt.Errorf("%s: %w", ev.Type, ErrInvalidText)
		}
	}
	return nil
}

// ValidateRequest checks an inbound chat request on the server side.
func (v *Validator) ValidateRequest(req models.ChatRequest) error {
	if strings.TrimSpace(req.Message) == "" {
		return ErrEmptyMessage
	}
	return nil
}
