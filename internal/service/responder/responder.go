// Package responder defines the interface for chat backends that answer one
// user message with a sequence of socket events.
package responder

import (
	"context"

	"genai-chat-client/internal/models"
)

// Emit delivers one event to the client. An error stops the reply.
type Emit func(models.Event) error

// Responder answers chat messages for a single connection. Implementations
// may keep per-connection conversation state.
type Responder interface {
	// Respond emits the events answering message, in order.
	Respond(ctx context.Context, message string, emit Emit) error
}

// Factory creates a Responder for each new connection.
type Factory func() Responder
