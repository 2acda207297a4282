package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genai-chat-client/internal/models"
	"genai-chat-client/internal/observability/metrics"
	"genai-chat-client/internal/service/transcript"
)

func newOfflineSession(t *testing.T, opts Options) (*Session, *metrics.Metrics) {
	t.Helper()
	m := metrics.NewMetrics(nil)
	opts.URL = "ws://127.0.0.1:1/ws"
	opts.Metrics = m
	return NewSession(opts), m
}

func feed(s *Session, frames ...string) {
	for _, f := range frames {
		s.HandleFrame([]byte(f))
	}
}

func deltaFrame(text string) string {
	return fmt.Sprintf(`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":%q}}`, text)
}

func TestHandleFrame_StartThenDeltasConcatenate(t *testing.T) {
	for n := 0; n <= 20; n++ {
		s, _ := newOfflineSession(t, Options{})
		feed(s, `{"type":"content_block_start","index":0}`)

		var want strings.Builder
		for i := 0; i < n; i++ {
			frag := fmt.Sprintf("tok%d ", i)
			want.WriteString(frag)
			feed(s, deltaFrame(frag))
		}

		last, ok := s.Transcript().Last()
		require.True(t, ok)
		assert.Equal(t, want.String(), last.Text, "n=%d", n)
		assert.Equal(t, transcript.SenderAI, last.From)
	}
}

func TestHandleFrame_SourceTextNormalizedAndReplaced(t *testing.T) {
	s, _ := newOfflineSession(t, Options{})

	feed(s, `{"type":"source_text","text":["old"]}`)
	require.True(t, s.ToggleSources().Open)

	feed(s, `{"type":"source_text","text":["a\n\nb\n"," c "]}`)

	sources := s.Sources()
	assert.Equal(t, []string{"a\nb", "c"}, sources.Texts)
	assert.False(t, sources.Open, "source panel collapses on new source text")
	assert.Zero(t, s.Transcript().Len())
}

func TestHandleFrame_MessageStopFormatsMetrics(t *testing.T) {
	s, _ := newOfflineSession(t, Options{})

	feed(s, `{"type":"message_stop","amazon-bedrock-invocationMetrics":{"x":1,"y":2}}`)

	assert.Equal(t, []transcript.Entry{
		{Text: "x: 1\ny: 2", From: transcript.SenderVerbose, Verbose: true},
	}, s.Transcript().Entries())
}

func TestHandleFrame_MessageStopWithoutMetrics(t *testing.T) {
	s, _ := newOfflineSession(t, Options{})

	feed(s,
		`{"type":"content_block_start","index":0}`,
		deltaFrame("answer"),
		`{"type":"message_stop"}`,
	)

	assert.Equal(t, 1, s.Transcript().Len())
	assert.False(t, s.Transcript().Streaming())
}

func TestHandleFrame_TextEvents(t *testing.T) {
	tests := []struct {
		frame string
		want  transcript.Entry
	}{
		{`{"type":"error_message","text":"no info for that state"}`, transcript.Entry{Text: "no info for that state", From: transcript.SenderAI}},
		{`{"type":"filter_info","text":"filtered"}`, transcript.Entry{Text: "filtered", From: transcript.SenderAI}},
		{`{"type":"full_response","text":"complete answer"}`, transcript.Entry{Text: "complete answer", From: transcript.SenderAI}},
		{`{"type":"verbose_info","text":"retriever query"}`, transcript.Entry{Text: "retriever query", From: transcript.SenderVerbose, Verbose: true}},
	}

	for _, tt := range tests {
		s, _ := newOfflineSession(t, Options{})
		feed(s, tt.frame)
		assert.Equal(t, []transcript.Entry{tt.want}, s.Transcript().Entries(), tt.frame)
	}
}

func TestHandleFrame_DroppedFramesLeaveTranscriptUntouched(t *testing.T) {
	tests := []struct {
		name   string
		frame  string
		reason string
	}{
		{"unknown type", `{"type":"ping","text":"x"}`, "unknown_type"},
		{"malformed json", `{"type":`, "malformed"},
		{"not an object", `"hello"`, "malformed"},
		{"missing type", `{"text":"x"}`, "invalid"},
		{"delta without payload", `{"type":"content_block_delta"}`, "invalid"},
		{"source text as string", `{"type":"source_text","text":"x"}`, "invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, m := newOfflineSession(t, Options{})
			feed(s, `{"type":"full_response","text":"before"}`)
			before := s.Transcript().Entries()

			feed(s, tt.frame)

			assert.Equal(t, before, s.Transcript().Entries())
			assert.Equal(t, float64(1), testutil.ToFloat64(m.FramesDropped.WithLabelValues(tt.reason)))
		})
	}
}

func TestHandleFrame_ContentBlockStopIsNoop(t *testing.T) {
	s, _ := newOfflineSession(t, Options{})

	feed(s,
		`{"type":"content_block_start","index":0}`,
		deltaFrame("a"),
		`{"type":"content_block_stop","index":0}`,
		deltaFrame("b"),
	)

	entries := s.Transcript().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "ab", entries[0].Text)
}

func TestHandleFrame_NonTextDeltaIgnored(t *testing.T) {
	s, _ := newOfflineSession(t, Options{})

	feed(s,
		`{"type":"content_block_start","index":0}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","text":"{}"}}`,
	)

	last, _ := s.Transcript().Last()
	assert.Equal(t, "", last.Text)
}

func TestHandleFrame_DeltaWithoutStartSynthesizesEntry(t *testing.T) {
	s, _ := newOfflineSession(t, Options{})

	feed(s, `{"type":"full_response","text":"earlier answer"}`, deltaFrame("orphan"))

	entries := s.Transcript().Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "earlier answer", entries[0].Text, "previous entry must not receive the delta")
	assert.Equal(t, transcript.Entry{Text: "orphan", From: transcript.SenderAI}, entries[1])
}

func TestHandleFrame_FramesCountedByType(t *testing.T) {
	s, m := newOfflineSession(t, Options{})

	feed(s, `{"type":"content_block_start","index":0}`, deltaFrame("a"), deltaFrame("bc"))

	assert.Equal(t, float64(2), testutil.ToFloat64(m.FramesReceived.WithLabelValues(models.EventContentBlockDelta)))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.DeltaBytes))
}

type fakePublisher struct {
	mu     sync.Mutex
	keys   []string
	events []models.TranscriptEntryEvent
}

func (p *fakePublisher) PublishEntry(_ context.Context, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	p.events = append(p.events, event.(models.TranscriptEntryEvent))
	return nil
}

func TestSession_PublishesCompletedEntries(t *testing.T) {
	pub := &fakePublisher{}
	s, _ := newOfflineSession(t, Options{Publisher: pub})

	feed(s,
		`{"type":"verbose_info","text":"prompt"}`,
		`{"type":"content_block_start","index":0}`,
		deltaFrame("streamed "),
		deltaFrame("answer"),
		`{"type":"content_block_stop","index":0}`,
		`{"type":"message_stop","amazon-bedrock-invocationMetrics":{"inputTokenCount":5}}`,
	)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.events, 3)

	assert.Equal(t, "prompt", pub.events[0].Text)
	assert.True(t, pub.events[0].Verbose)

	assert.Equal(t, "streamed answer", pub.events[1].Text, "streamed entries publish once, when complete")
	assert.Equal(t, "AI", pub.events[1].From)
	assert.Equal(t, 1, pub.events[1].Sequence)

	assert.Equal(t, "inputTokenCount: 5", pub.events[2].Text)
	for i, ev := range pub.events {
		assert.Equal(t, models.EventTypeTranscriptEntry, ev.EventType)
		assert.Equal(t, s.ID(), ev.SessionID)
		assert.Equal(t, s.ID(), pub.keys[i])
	}
}

func TestSession_OnChangeSeesDeltas(t *testing.T) {
	var deltas []string
	s, _ := newOfflineSession(t, Options{
		OnChange: func(c transcript.Change) {
			if c.Kind == transcript.Extended {
				deltas = append(deltas, c.Delta)
			}
		},
	})

	feed(s, `{"type":"content_block_start","index":0}`, deltaFrame("a"), deltaFrame("b"))

	assert.Equal(t, []string{"a", "b"}, deltas)
}
