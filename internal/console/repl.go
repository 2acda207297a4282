package console

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/rs/zerolog/log"

	"genai-chat-client/internal/service/chat"
	"genai-chat-client/internal/service/transcript"
)

// Session is the part of chat.Session the console drives.
type Session interface {
	Send(text string) error
	Status() chat.Status
	Sources() chat.SourceContext
	ToggleSources() chat.SourceContext
	Transcript() *transcript.Transcript
}

// REPL reads lines from in, runs slash commands and sends everything else.
type REPL struct {
	session  Session
	renderer *Renderer
	in       io.Reader
}

func NewREPL(session Session, renderer *Renderer, in io.Reader) *REPL {
	return &REPL{session: session, renderer: renderer, in: in}
}

// Run processes input until /quit, end of input, or ctx cancellation.
// The reader goroutine may outlive Run when in blocks.
func (r *REPL) Run(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)

	go func() {
		scanner := bufio.NewScanner(r.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case line := <-lines:
			if r.Execute(line) {
				return nil
			}
		}
	}
}

// Execute handles one input line and reports whether the user asked to quit.
func (r *REPL) Execute(line string) (quit bool) {
	cmd := strings.TrimSpace(line)
	switch cmd {
	case "":
		return false
	case "/quit", "/exit":
		return true
	case "/verbose":
		on := !r.renderer.Verbose()
		r.renderer.SetVerbose(on)
		r.renderer.Notice("verbose %s", onOff(on))
	case "/sources":
		r.renderer.ShowSources(r.session.ToggleSources())
	case "/status":
		r.renderer.Notice("%s", r.session.Status())
	case "/history":
		r.renderer.ShowHistory(r.session.Transcript().Entries())
	case "/help":
		r.renderer.Notice("commands: /verbose /sources /status /history /quit")
	default:
		if strings.HasPrefix(cmd, "/") {
			r.renderer.Notice("unknown command %s, try /help", cmd)
			return false
		}
		r.send(line)
	}
	return false
}

func (r *REPL) send(text string) {
	err := r.session.Send(text)
	switch {
	case err == nil:
	case errors.Is(err, chat.ErrNotConnected):
		r.renderer.Notice("not connected (%s), message not sent", r.session.Status())
	default:
		log.Error().Err(err).Msg("Send failed")
		r.renderer.Notice("send failed: %v", err)
	}
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
