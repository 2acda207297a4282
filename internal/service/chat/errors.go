package chat

import "errors"

var (
	// ErrNotConnected is returned by Send when no socket is open. The message is not queued.
	ErrNotConnected = errors.New("chat: connection is not open")
	// ErrBlankMessage is returned by Send for empty or whitespace-only input.
	ErrBlankMessage = errors.New("chat: message is blank")
	// ErrSessionRunning is returned when Run is called on a session that is already running.
	ErrSessionRunning = errors.New("chat: session already running")
)
