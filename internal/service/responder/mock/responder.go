// Package mock provides a scripted chat backend for running the client without
// the retrieval and model services. It replays canned replies in the same
// event order the real backend uses.
package mock

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"genai-chat-client/internal/models"
	"genai-chat-client/internal/service/responder"
)

// Reply is one canned answer.
type Reply struct {
	Index      string   // searched index, e.g. "notary_texas"
	SearchType string   // "semantic" or "lexical"
	Sources    []string // passages shown in the source panel
	Chunks     []string // streamed answer fragments; empty means the index is missing
	LatencyMs  int
}

// DefaultReplies provides sample replies, cycled in order per connection.
var DefaultReplies = []Reply{
	{
		Index:      "notary_texas",
		SearchType: "semantic",
		Sources: []string{
			"Sec. 406.014. NOTARY RECORDS.\n\n(a) A notary public shall keep in a book a record of each notarial act.\n",
			"The record must include the date of each instrument\n\n\nand the name of the signer.",
		},
		Chunks:    []string{"A Texas notary ", "must keep a record book ", "listing the date, signer ", "and type of each notarial act."},
		LatencyMs: 2140,
	},
	{
		Index:      "notary_*",
		SearchType: "lexical",
		Sources: []string{
			"Most states require notaries to verify signer identity\n\nwith satisfactory evidence.",
		},
		Chunks:    []string{"In most states ", "you must present ", "a current government-issued photo ID."},
		LatencyMs: 1730,
	},
	{
		Index:      "notary_guam",
		SearchType: "semantic",
	},
}

const historySeparator = "\n---------------------------------------------------------\n\n"

// Options controls how replies are delivered.
type Options struct {
	Streaming  bool          // false sends one full_response instead of block events
	DeltaDelay time.Duration // pause between streamed deltas
	Replies    []Reply       // defaults to DefaultReplies
}

// Responder implements responder.Responder with canned replies.
type Responder struct {
	opts Options

	mu      sync.Mutex
	next    int
	history []string
}

var _ responder.Responder = (*Responder)(nil)

// New creates a mock responder.
func New(opts Options) *Responder {
	if len(opts.Replies) == 0 {
		opts.Replies = DefaultReplies
	}
	return &Responder{opts: opts}
}

// NewFactory returns a factory creating one responder per connection.
func NewFactory(opts Options) responder.Factory {
	return func() responder.Responder {
		return New(opts)
	}
}

// Respond replays the next canned reply for message.
func (r *Responder) Respond(ctx context.Context, message string, emit responder.Emit) error {
	r.mu.Lock()
	reply := r.opts.Replies[r.next%len(r.opts.Replies)]
	r.next++
	history := append([]string(nil), r.history...)
	r.mu.Unlock()

	send := func(ev models.Event) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return emit(ev)
	}

	steps := []models.Event{
		models.NewTextEvent(models.EventVerboseInfo, "Prompt to Generate Semantic or Lexical retriever\n\n"+retrieverPrompt(message, history)),
		models.NewTextEvent(models.EventVerboseInfo, fmt.Sprintf("Generated Retriever of type %s\n\n%s", reply.SearchType, retrieverQuery(message, reply))),
	}
	for _, ev := range steps {
		if err := send(ev); err != nil {
			return err
		}
	}

	state := stateOf(reply.Index)
	if len(reply.Chunks) == 0 {
		return send(models.NewTextEvent(models.EventErrorMessage,
			fmt.Sprintf("I'm sorry but I don't seem to have Notary info for %s.", state)))
	}

	if err := send(models.NewSourceEvent(reply.Sources)); err != nil {
		return err
	}
	if err := send(models.NewTextEvent(models.EventVerboseInfo,
		"Context gathered from Elasticsearch"+historySeparator+strings.Join(reply.Sources, historySeparator))); err != nil {
		return err
	}

	answer := strings.Join(reply.Chunks, "")
	if r.opts.Streaming {
		if err := r.stream(ctx, reply, send); err != nil {
			return err
		}
	} else if err := send(models.NewTextEvent(models.EventFullResponse, answer)); err != nil {
		return err
	}

	if state == "*" {
		state = "All States"
	}
	if err := send(models.NewTextEvent(models.EventVerboseInfo, "Response gathered from "+state)); err != nil {
		return err
	}

	r.mu.Lock()
	r.history = append(r.history, "user: "+message, "assistant: "+answer)
	history = append([]string(nil), r.history...)
	r.mu.Unlock()

	return send(models.NewTextEvent(models.EventVerboseInfo,
		"Conversation history updated:\n\n"+strings.Join(history, historySeparator)))
}

func (r *Responder) stream(ctx context.Context, reply Reply, send responder.Emit) error {
	if err := send(models.Event{Type: models.EventContentBlockStart}); err != nil {
		return err
	}

	outputTokens := 0
	for _, chunk := range reply.Chunks {
		if r.opts.DeltaDelay > 0 {
			timer := time.NewTimer(r.opts.DeltaDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		ev := models.Event{
			Type:  models.EventContentBlockDelta,
			Delta: &models.Delta{Type: models.DeltaTypeText, Text: chunk},
		}
		if err := send(ev); err != nil {
			return err
		}
		outputTokens += len(strings.Fields(chunk))
	}

	if err := send(models.Event{Type: models.EventContentBlockStop}); err != nil {
		return err
	}

	inputTokens := 0
	for _, s := range reply.Sources {
		inputTokens += len(strings.Fields(s))
	}
	return send(models.Event{
		Type: models.EventMessageStop,
		Metrics: models.Metrics{
			models.NumberField("inputTokenCount", float64(inputTokens)),
			models.NumberField("outputTokenCount", float64(outputTokens)),
			models.NumberField("invocationLatency", float64(reply.LatencyMs)),
			models.NumberField("firstByteLatency", float64(reply.LatencyMs/8)),
		},
	})
}

func retrieverPrompt(message string, history []string) string {
	var b strings.Builder
	b.WriteString("Given the conversation so far, choose a semantic or lexical retriever for the question.\n")
	if len(history) > 0 {
		b.WriteString("\nHistory:\n")
		b.WriteString(strings.Join(history, "\n"))
		b.WriteString("\n")
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(message)
	return b.String()
}

func retrieverQuery(message string, reply Reply) string {
	return fmt.Sprintf(`{"index": %q, "query": {"match": {"passage": %q}}}`, reply.Index, message)
}

// stateOf extracts the state from an index named notary_<state>.
func stateOf(index string) string {
	if _, state, ok := strings.Cut(index, "_"); ok {
		return state
	}
	return index
}
