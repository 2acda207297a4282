// Package console renders a chat session to a terminal and reads user input.
package console

import (
	"fmt"
	"io"
	"sync"

	"genai-chat-client/internal/service/chat"
	"genai-chat-client/internal/service/transcript"
)

const noLine = -1

// Renderer prints transcript changes as they happen. Streamed text is written
// onto the entry's open line; an interleaved entry closes that line first.
type Renderer struct {
	mu      sync.Mutex
	out     io.Writer
	verbose bool
	open    int // entry index whose line is unterminated
	status  chat.Status
	started bool
}

func NewRenderer(out io.Writer, verbose bool) *Renderer {
	return &Renderer{out: out, verbose: verbose, open: noLine}
}

// Verbose reports whether Verbose entries are shown.
func (r *Renderer) Verbose() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.verbose
}

// SetVerbose toggles display of Verbose entries for future output.
func (r *Renderer) SetVerbose(on bool) {
	r.mu.Lock()
	r.verbose = on
	r.mu.Unlock()
}

// OnChange is a transcript.Observer.
func (r *Renderer) OnChange(c transcript.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.Entry.From == transcript.SenderVerbose && !r.verbose {
		return
	}

	switch c.Kind {
	case transcript.Added:
		r.closeLineLocked()
		fmt.Fprintf(r.out, "%s: %s", label(c.Entry), c.Entry.Text)
		r.open = c.Index
	case transcript.Extended:
		if r.open != c.Index {
			r.closeLineLocked()
			fmt.Fprintf(r.out, "%s: ", label(c.Entry))
			r.open = c.Index
		}
		io.WriteString(r.out, c.Delta)
	case transcript.Completed:
		if r.open == c.Index {
			r.closeLineLocked()
		}
	}
}

// OnStatus prints status transitions.
func (r *Renderer) OnStatus(st chat.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started && st == r.status {
		return
	}
	r.started = true
	r.status = st
	r.closeLineLocked()
	fmt.Fprintf(r.out, "[%s]\n", st)
}

// OnSources announces newly arrived source passages without printing them.
func (r *Renderer) OnSources(sc chat.SourceContext) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closeLineLocked()
	fmt.Fprintf(r.out, "[%d source passages received, /sources to show]\n", len(sc.Texts))
}

// ShowSources prints the source panel when it is open.
func (r *Renderer) ShowSources(sc chat.SourceContext) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closeLineLocked()
	if !sc.Open {
		io.WriteString(r.out, "[sources hidden]\n")
		return
	}
	if len(sc.Texts) == 0 {
		io.WriteString(r.out, "[no sources]\n")
		return
	}
	for i, text := range sc.Texts {
		fmt.Fprintf(r.out, "--- source %d ---\n%s\n", i+1, text)
	}
}

// ShowHistory reprints the visible transcript.
func (r *Renderer) ShowHistory(entries []transcript.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closeLineLocked()
	for _, e := range entries {
		if e.From == transcript.SenderVerbose && !r.verbose {
			continue
		}
		fmt.Fprintf(r.out, "%s: %s\n", label(e), e.Text)
	}
}

// Notice prints a one-line message from the console itself.
func (r *Renderer) Notice(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closeLineLocked()
	fmt.Fprintf(r.out, "[%s]\n", fmt.Sprintf(format, args...))
}

func (r *Renderer) closeLineLocked() {
	if r.open != noLine {
		io.WriteString(r.out, "\n")
		r.open = noLine
	}
}

func label(e transcript.Entry) string {
	return string(e.From)
}
