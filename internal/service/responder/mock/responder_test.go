package mock

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"genai-chat-client/internal/models"
)

type recorder struct {
	events []models.Event
}

func (r *recorder) emit(ev models.Event) error {
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) types() []string {
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestResponder_StreamingEventOrder(t *testing.T) {
	r := New(Options{Streaming: true, Replies: DefaultReplies[:1]})
	rec := &recorder{}

	if err := r.Respond(context.Background(), "what records must a notary keep?", rec.emit); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		models.EventVerboseInfo,
		models.EventVerboseInfo,
		models.EventSourceText,
		models.EventVerboseInfo,
		models.EventContentBlockStart,
	}
	for range DefaultReplies[0].Chunks {
		want = append(want, models.EventContentBlockDelta)
	}
	want = append(want,
		models.EventContentBlockStop,
		models.EventMessageStop,
		models.EventVerboseInfo,
		models.EventVerboseInfo,
	)

	if got := rec.types(); !equalStrings(got, want) {
		t.Fatalf("event order mismatch\n got: %v\nwant: %v", got, want)
	}
}

func TestResponder_DeltasConcatenateToAnswer(t *testing.T) {
	r := New(Options{Streaming: true, Replies: DefaultReplies[:1]})
	rec := &recorder{}

	_ = r.Respond(context.Background(), "q", rec.emit)

	var b strings.Builder
	for _, ev := range rec.events {
		if ev.Type == models.EventContentBlockDelta {
			if ev.Delta.Type != models.DeltaTypeText {
				t.Errorf("expected text delta, got %s", ev.Delta.Type)
			}
			b.WriteString(ev.Delta.Text)
		}
	}
	if want := strings.Join(DefaultReplies[0].Chunks, ""); b.String() != want {
		t.Errorf("expected %q, got %q", want, b.String())
	}
}

func TestResponder_MessageStopCarriesMetrics(t *testing.T) {
	r := New(Options{Streaming: true, Replies: DefaultReplies[:1]})
	rec := &recorder{}

	_ = r.Respond(context.Background(), "q", rec.emit)

	for _, ev := range rec.events {
		if ev.Type != models.EventMessageStop {
			continue
		}
		keys := make([]string, len(ev.Metrics))
		for i, f := range ev.Metrics {
			keys[i] = f.Key
		}
		want := []string{"inputTokenCount", "outputTokenCount", "invocationLatency", "firstByteLatency"}
		if !equalStrings(keys, want) {
			t.Errorf("expected metric keys %v, got %v", want, keys)
		}
		return
	}
	t.Fatal("no message_stop emitted")
}

func TestResponder_NonStreamingSendsFullResponse(t *testing.T) {
	r := New(Options{Streaming: false, Replies: DefaultReplies[:1]})
	rec := &recorder{}

	_ = r.Respond(context.Background(), "q", rec.emit)

	found := false
	for _, ev := range rec.events {
		switch ev.Type {
		case models.EventContentBlockStart, models.EventContentBlockDelta, models.EventMessageStop:
			t.Errorf("unexpected streaming event %s", ev.Type)
		case models.EventFullResponse:
			found = true
			text, _ := ev.TextString()
			if text != strings.Join(DefaultReplies[0].Chunks, "") {
				t.Errorf("unexpected full response %q", text)
			}
		}
	}
	if !found {
		t.Error("expected a full_response event")
	}
}

func TestResponder_MissingIndexSendsErrorMessage(t *testing.T) {
	r := New(Options{Streaming: true, Replies: []Reply{{Index: "notary_guam", SearchType: "semantic"}}})
	rec := &recorder{}

	if err := r.Respond(context.Background(), "q", rec.emit); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	last := rec.events[len(rec.events)-1]
	if last.Type != models.EventErrorMessage {
		t.Fatalf("expected error_message last, got %s", last.Type)
	}
	text, _ := last.TextString()
	if text != "I'm sorry but I don't seem to have Notary info for guam." {
		t.Errorf("unexpected error text %q", text)
	}
}

func TestResponder_CyclesReplies(t *testing.T) {
	r := New(Options{Streaming: false})

	var states []string
	for i := 0; i < len(DefaultReplies)+1; i++ {
		rec := &recorder{}
		_ = r.Respond(context.Background(), "q", rec.emit)
		text, _ := rec.events[1].TextString()
		states = append(states, text)
	}

	if states[0] != states[len(DefaultReplies)] {
		t.Error("expected replies to cycle back to the first")
	}
	if states[0] == states[1] {
		t.Error("expected consecutive replies to differ")
	}
}

func TestResponder_HistoryAccumulates(t *testing.T) {
	r := New(Options{Streaming: false, Replies: DefaultReplies[:1]})

	_ = r.Respond(context.Background(), "first question", (&recorder{}).emit)
	rec := &recorder{}
	_ = r.Respond(context.Background(), "second question", rec.emit)

	prompt, _ := rec.events[0].TextString()
	if !strings.Contains(prompt, "user: first question") {
		t.Errorf("expected prompt to include history, got %q", prompt)
	}
	last, _ := rec.events[len(rec.events)-1].TextString()
	if !strings.HasPrefix(last, "Conversation history updated:") || !strings.Contains(last, "user: second question") {
		t.Errorf("unexpected history event %q", last)
	}
}

func TestResponder_StateLabel(t *testing.T) {
	tests := []struct {
		index string
		want  string
	}{
		{"notary_texas", "Response gathered from texas"},
		{"notary_*", "Response gathered from All States"},
	}

	for _, tt := range tests {
		reply := DefaultReplies[0]
		reply.Index = tt.index
		r := New(Options{Replies: []Reply{reply}})
		rec := &recorder{}
		_ = r.Respond(context.Background(), "q", rec.emit)

		got, _ := rec.events[len(rec.events)-2].TextString()
		if got != tt.want {
			t.Errorf("index %s: expected %q, got %q", tt.index, tt.want, got)
		}
	}
}

func TestResponder_EmitErrorStops(t *testing.T) {
	r := New(Options{Streaming: true, Replies: DefaultReplies[:1]})
	boom := errors.New("socket gone")
	calls := 0

	err := r.Respond(context.Background(), "q", func(models.Event) error {
		calls++
		if calls == 3 {
			return boom
		}
		return nil
	})

	if !errors.Is(err, boom) {
		t.Errorf("expected emit error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected emission to stop after failure, got %d calls", calls)
	}
}

func TestResponder_CancelDuringStream(t *testing.T) {
	r := New(Options{Streaming: true, DeltaDelay: time.Hour, Replies: DefaultReplies[:1]})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- r.Respond(ctx, "q", func(ev models.Event) error {
			if ev.Type == models.EventContentBlockStart {
				cancel()
			}
			return nil
		})
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Respond did not return after cancel")
	}
}

func TestNewFactory_CreatesIndependentResponders(t *testing.T) {
	f := NewFactory(Options{})
	a, b := f(), f()
	if a == b {
		t.Error("expected a fresh responder per call")
	}
}
